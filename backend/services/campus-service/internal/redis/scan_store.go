package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"campuswallet/backend/services/campus-service/internal/service"
)

// ScanStore keeps the last card scan in redis so every instance serves the same answer
// to the "current student" pull query.
type ScanStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ service.ScanCache = (*ScanStore)(nil)

// NewScanStore returns a redis-backed scan cache.
func NewScanStore(client *redis.Client, prefix string, ttl time.Duration) *ScanStore {
	if prefix == "" {
		prefix = "campus"
	}
	return &ScanStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *ScanStore) key() string {
	return fmt.Sprintf("%s:rfid:current", s.prefix)
}

// Save caches the scan with the configured TTL.
func (s *ScanStore) Save(ctx context.Context, record service.ScanRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(), data, s.ttl).Err()
}

// Current returns the cached scan or service.ErrNoScan.
func (s *ScanStore) Current(ctx context.Context) (*service.ScanRecord, error) {
	result, err := s.client.Get(ctx, s.key()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, service.ErrNoScan
		}
		return nil, err
	}
	var record service.ScanRecord
	if err := json.Unmarshal([]byte(result), &record); err != nil {
		return nil, err
	}
	return &record, nil
}
