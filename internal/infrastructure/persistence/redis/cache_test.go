package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "clinical-hours:summary:s1", HoursKey("s1"))
	assert.Equal(t, "clinical-hours:lock:reconcile", LockKey("reconcile"))
}

func TestConfigOptions(t *testing.T) {
	opts, err := DefaultConfig().Options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 3*time.Second, opts.ReadTimeout)

	cfg := Config{URL: "redis://:secret@cache.internal:6380/2", PoolSize: 4}
	opts, err = cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 4, opts.PoolSize)

	_, err = Config{URL: "http://nope"}.Options()
	assert.Error(t, err)
}

func TestHoursSummaryCacheDefaultTTL(t *testing.T) {
	c := NewHoursSummaryCache(nil, 0)
	assert.Equal(t, TTLHoursSummary, c.ttl)
}
