package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMutex(t *testing.T) (*Mutex, redismock.ClientMock) {
	t.Helper()
	original := newLockToken
	t.Cleanup(func() { newLockToken = original })
	newLockToken = func() string { return "token-1" }

	db, mock := redismock.NewClientMock()
	return NewMutex(NewClientWithRDB(db, "scentiq", nil), "prewarm:user-1", 10*time.Second), mock
}

func TestMutex_TryLockAndUnlock(t *testing.T) {
	m, mock := newTestMutex(t)
	ctx := context.Background()

	mock.ExpectSetNX("scentiq:lock:prewarm:user-1", "token-1", 10*time.Second).SetVal(true)
	mock.ExpectEvalSha(unlockScript.Hash(), []string{"scentiq:lock:prewarm:user-1"}, "token-1").SetVal(int64(1))

	ok, err := m.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, m.Unlock(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutex_Contention(t *testing.T) {
	m, mock := newTestMutex(t)
	ctx := context.Background()

	mock.ExpectSetNX("scentiq:lock:prewarm:user-1", "token-1", 10*time.Second).SetVal(false)
	mock.ExpectSetNX("scentiq:lock:prewarm:user-1", "token-1", 10*time.Second).SetVal(false)

	err := m.Lock(ctx, 2, time.Millisecond)
	assert.Equal(t, ErrLockNotAcquired, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutex_UnlockNotHeld(t *testing.T) {
	m, mock := newTestMutex(t)
	mock.ExpectEvalSha(unlockScript.Hash(), []string{"scentiq:lock:prewarm:user-1"}, "token-1").SetVal(int64(0))

	assert.Equal(t, ErrLockNotHeld, m.Unlock(context.Background()))
}

func TestMutex_Extend(t *testing.T) {
	m, mock := newTestMutex(t)
	mock.ExpectEvalSha(extendScript.Hash(), []string{"scentiq:lock:prewarm:user-1"}, "token-1", int64(20000)).SetVal(int64(1))

	ok, err := m.Extend(context.Background(), 20*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
