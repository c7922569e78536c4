package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotStore keeps the attempt snapshot under one key per profile so several
// terminals of the same user share progress.
// Stored as: SET quiz-attempts:{profile} <json> [EX ttl]
type SnapshotStore struct {
	client  *redis.Client
	profile string
	ttl     time.Duration
}

// NewSnapshotStore builds a store; ttl <= 0 keeps the snapshot forever.
func NewSnapshotStore(client *redis.Client, profile string, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, profile: profile, ttl: ttl}
}

func (s *SnapshotStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

func (s *SnapshotStore) Save(ctx context.Context, data []byte) error {
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, s.key(), data, ttl).Err()
}

func (s *SnapshotStore) key() string {
	return "quiz-attempts:" + s.profile
}
