package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapMsgKeepsCode(t *testing.T) {
	err := ErrStoreUnavailable.WrapMsg("set session", "key", "token:abc")
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.Contains(t, err.Error(), "set session")
	assert.Contains(t, err.Error(), "key=token:abc")

	// 原始对象不被污染
	assert.Empty(t, ErrStoreUnavailable.Detail)
}

func TestIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ErrSessionCheck.WrapMsg("list tokens"))
	assert.True(t, errors.Is(wrapped, ErrSessionCheck))
	assert.False(t, errors.Is(wrapped, ErrStatusSync))
}

func TestWithDetailAccumulates(t *testing.T) {
	e := ErrArgs.WithDetail("first").WithDetail("second")
	assert.Equal(t, "first, second", e.Detail)
}
