package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis 只实现 Get 和 Set，其余方法调用会 panic
type fakeRedis struct {
	redis.Cmdable
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.data[key] = strconv.FormatFloat(value.(float64), 'f', -1, 64)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestBaseScoreKey(t *testing.T) {
	s := NewBaseScoreStore(nil, "linucb", time.Second)
	assert.Equal(t, "linucb:3:42:sewing", s.key(3, 42, "sewing"))
}

func TestBaseScoreRoundTrip(t *testing.T) {
	rdb := newFakeRedis()
	s := NewBaseScoreStore(rdb, "linucb", time.Second)

	require.NoError(t, s.SetBaseScore(3, 42, "sewing", 0.72, time.Hour))
	assert.Equal(t, time.Hour, rdb.ttls["linucb:3:42:sewing"])

	score, err := s.BaseScore(3, 42, "sewing")
	require.NoError(t, err)
	assert.InDelta(t, 0.72, score, 1e-9)
}

func TestBaseScoreMissing(t *testing.T) {
	s := NewBaseScoreStore(newFakeRedis(), "linucb", time.Second)

	_, err := s.BaseScore(3, 42, "cutting")
	assert.ErrorIs(t, err, redis.Nil)
}
