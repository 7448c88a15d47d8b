package store

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const codeKeyPrefix = "planni:code:"

var (
	// ErrCodeNotFound 联系方式名下没有存活的验证码（未发过或已过期）。
	ErrCodeNotFound = errors.New("code introuvable")
	// ErrCodeMismatch 提交的验证码不匹配。
	ErrCodeMismatch = errors.New("code invalide")
)

// CodeStore 把一次性验证码存在 Redis 里：一个联系方式最多一条存活记录
// （SET 直接覆盖旧码），TTL 到期自动作废。
type CodeStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCodeStore 创建验证码存储。ttl<=0 时取 10 分钟。
func NewCodeStore(rdb *redis.Client, ttl time.Duration) *CodeStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CodeStore{rdb: rdb, ttl: ttl}
}

// Save 写入（或覆盖）联系方式名下的验证码。
func (s *CodeStore) Save(ctx context.Context, contact string, code string) error {
	if err := s.rdb.Set(ctx, codeKeyPrefix+contact, code, s.ttl).Err(); err != nil {
		return fmt.Errorf("save code: %w", err)
	}
	return nil
}

// Get 读取联系方式名下的验证码。
func (s *CodeStore) Get(ctx context.Context, contact string) (string, error) {
	val, err := s.rdb.Get(ctx, codeKeyPrefix+contact).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCodeNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get code: %w", err)
	}
	return val, nil
}

// Consume 校验并消费验证码：匹配才删除，一次性使用。
//
// 比较用 subtle.ConstantTimeCompare，避免字符串比较的时序侧信道。
func (s *CodeStore) Consume(ctx context.Context, contact string, code string) error {
	stored, err := s.Get(ctx, contact)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return ErrCodeMismatch
	}
	if err := s.rdb.Del(ctx, codeKeyPrefix+contact).Err(); err != nil {
		return fmt.Errorf("delete code: %w", err)
	}
	return nil
}

// Delete 删除联系方式名下的验证码。
func (s *CodeStore) Delete(ctx context.Context, contact string) error {
	if err := s.rdb.Del(ctx, codeKeyPrefix+contact).Err(); err != nil {
		return fmt.Errorf("delete code: %w", err)
	}
	return nil
}
