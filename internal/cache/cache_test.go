package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledger interface {
	HasSeen(ctx context.Context, url string) (bool, error)
	MarkSeen(ctx context.Context, url string) (bool, error)
}

func exerciseLedger(t *testing.T, l ledger, url string) {
	ctx := context.Background()

	seen, err := l.HasSeen(ctx, url)
	require.NoError(t, err)
	assert.False(t, seen)

	inserted, err := l.MarkSeen(ctx, url)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = l.MarkSeen(ctx, url)
	require.NoError(t, err)
	assert.False(t, inserted)

	seen, err = l.HasSeen(ctx, url)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryLedger(t *testing.T) {
	l := NewMemoryLedger()
	exerciseLedger(t, l, "https://example.com/a")
	assert.Equal(t, 1, l.Len())
}

// Runs against a real server when TEST_REDIS_URL is set.
func TestRedisLedger(t *testing.T) {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	prefix := fmt.Sprintf("newsbot:test:%d:", time.Now().UnixNano())
	l, err := NewRedisLedger(context.Background(), redisURL, prefix)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	exerciseLedger(t, l, "https://example.com/a")
}

func TestNewRedisLedgerBadURL(t *testing.T) {
	_, err := NewRedisLedger(context.Background(), "not a url", "p:")
	assert.Error(t, err)
}
