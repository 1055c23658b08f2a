package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 需要本地 Redis；连不上就跳过。用 DB 15 避免碰业务数据。
func testStore(t *testing.T) *SessionStore {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379", DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return NewSessionStore(rdb)
}

func testIdentity() Identity {
	return Identity{
		ID:    uuid.NewString(),
		Email: uuid.NewString() + "@x.com",
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	id := testIdentity()
	token := "tok-" + uuid.NewString()

	require.NoError(t, s.SaveSession(ctx, id, token, 24*time.Hour))
	t.Cleanup(func() { _ = s.RemoveSession(ctx, token) })

	got := s.GetIdentityByToken(ctx, token)
	require.NotNil(t, got)
	assert.Equal(t, id.ID, got.ID)
	assert.Equal(t, id.Email, got.Email)

	assert.Equal(t, []string{token}, s.ListIdentitySessions(ctx, id.Email))
	assert.True(t, s.GetOnline(ctx, id.ID))
	assert.NotZero(t, s.GetLastActivity(ctx, token))

	require.NoError(t, s.RemoveSession(ctx, token))
	assert.Nil(t, s.GetIdentityByToken(ctx, token))
	assert.Empty(t, s.ListIdentitySessions(ctx, id.Email))
	assert.Zero(t, s.GetLastActivity(ctx, token))
}

// 删除幂等：重复删除不报错，会话集合里也不残留
func TestRemoveSessionIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	id := testIdentity()
	token := "tok-" + uuid.NewString()

	require.NoError(t, s.SaveSession(ctx, id, token, time.Hour))
	require.NoError(t, s.RemoveSession(ctx, token))
	require.NoError(t, s.RemoveSession(ctx, token))

	assert.Empty(t, s.ListIdentitySessions(ctx, id.Email))
}

func TestSessionExpiresWithTTL(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	id := testIdentity()
	token := "tok-" + uuid.NewString()

	require.NoError(t, s.SaveSession(ctx, id, token, 150*time.Millisecond))
	require.NotNil(t, s.GetIdentityByToken(ctx, token))

	time.Sleep(300 * time.Millisecond)
	assert.Nil(t, s.GetIdentityByToken(ctx, token))
	// 记录被 TTL 驱逐后集合成员要靠清理任务摘除，这里只收尾
	_ = s.RemoveSession(ctx, token)
}

func TestListAllTokensAndHasSessions(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	id := testIdentity()
	token := "tok-" + uuid.NewString()

	require.NoError(t, s.SaveSession(ctx, id, token, time.Hour))
	t.Cleanup(func() { _ = s.RemoveSession(ctx, token) })

	tokens, err := s.ListAllTokens(ctx)
	require.NoError(t, err)
	assert.Contains(t, tokens, token)

	has, err := s.HasSessions(ctx)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestOnlineFlagDefaultsToFalse(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	assert.False(t, s.GetOnline(ctx, uuid.NewString()))

	id := uuid.NewString()
	require.NoError(t, s.SetOnline(ctx, id, true))
	assert.True(t, s.GetOnline(ctx, id))
	require.NoError(t, s.SetOnline(ctx, id, false))
	assert.False(t, s.GetOnline(ctx, id))
}

func TestMultipleSessionsPerIdentity(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	id := testIdentity()
	tok1 := "tok-" + uuid.NewString()
	tok2 := "tok-" + uuid.NewString()

	require.NoError(t, s.SaveSession(ctx, id, tok1, time.Hour))
	require.NoError(t, s.SaveSession(ctx, id, tok2, time.Hour))
	t.Cleanup(func() {
		_ = s.RemoveSession(ctx, tok1)
		_ = s.RemoveSession(ctx, tok2)
	})

	assert.ElementsMatch(t, []string{tok1, tok2}, s.ListIdentitySessions(ctx, id.Email))

	require.NoError(t, s.RemoveSession(ctx, tok1))
	assert.Equal(t, []string{tok2}, s.ListIdentitySessions(ctx, id.Email))
	// 另一个会话不受影响
	require.NotNil(t, s.GetIdentityByToken(ctx, tok2))
}
