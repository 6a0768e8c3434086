package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BaseScoreStore 读写外部上下文 bandit（LinUCB）写入 redis 的基础分估计。
// 键格式为 {prefix}:{factoryID}:{workerID}:{taskType}
type BaseScoreStore struct {
	client  redis.Cmdable
	prefix  string
	timeout time.Duration
}

func NewBaseScoreStore(client redis.Cmdable, prefix string, timeout time.Duration) *BaseScoreStore {
	return &BaseScoreStore{
		client:  client,
		prefix:  prefix,
		timeout: timeout,
	}
}

func (s *BaseScoreStore) key(factoryID, workerID int64, taskType string) string {
	return fmt.Sprintf("%s:%d:%d:%s", s.prefix, factoryID, workerID, taskType)
}

// BaseScore 在键不存在时返回 redis.Nil，由调用方退回到候选自带的期望收益
func (s *BaseScoreStore) BaseScore(factoryID, workerID int64, taskType string) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	return s.client.Get(ctx, s.key(factoryID, workerID, taskType)).Float64()
}

// SetBaseScore 写入估计值，ttl 为 0 表示不过期
func (s *BaseScoreStore) SetBaseScore(factoryID, workerID int64, taskType string, score float64, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	return s.client.Set(ctx, s.key(factoryID, workerID, taskType), score, ttl).Err()
}
