package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Age      int    `json:"age"`
}

func TestDecodeMap(t *testing.T) {
	p, err := DecodeMap[samplePayload](map[string]any{
		"email":    "a@x.com",
		"password": "secret",
		"age":      float64(30), // JSON 数字解出来是 float64
	})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", p.Email)
	assert.Equal(t, 30, p.Age)
}

func TestDecodeMapWeakTyping(t *testing.T) {
	p, err := DecodeMap[samplePayload](map[string]any{"age": "42"})
	require.NoError(t, err)
	assert.Equal(t, 42, p.Age)
}

func TestDecodeMapNil(t *testing.T) {
	_, err := DecodeMap[samplePayload](nil)
	assert.Error(t, err)
}

func TestReadString(t *testing.T) {
	s, err := ReadString(map[string]any{"token": "abc"}, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", s)

	_, err = ReadString(map[string]any{}, "token")
	assert.Error(t, err)
}
