package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRepository stores each record as one JSON value, which keeps every write atomic.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

type redisRecord struct {
	User
	PasswordDigest []byte `json:"passwordDigest"`
}

// NewRedisRepository constructs a Redis backed repository.
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client, prefix: "mfa:user:"}
}

// Insert stores the record with SET NX.
func (r *RedisRepository) Insert(ctx context.Context, user User) error {
	payload, err := encodeRecord(user)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, r.key(user.Email), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("credentials: redis insert: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

// Get loads the record for email.
func (r *RedisRepository) Get(ctx context.Context, email string) (User, bool, error) {
	payload, err := r.client.Get(ctx, r.key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return User{}, false, nil
		}
		return User{}, false, fmt.Errorf("credentials: redis get: %w", err)
	}
	var rec redisRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return User{}, false, fmt.Errorf("credentials: decode user: %w", err)
	}
	user := rec.User
	user.PasswordDigest = rec.PasswordDigest
	return user, true, nil
}

// Replace overwrites an existing record with SET XX.
func (r *RedisRepository) Replace(ctx context.Context, user User) error {
	payload, err := encodeRecord(user)
	if err != nil {
		return err
	}
	ok, err := r.client.SetXX(ctx, r.key(user.Email), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("credentials: redis replace: %w", err)
	}
	if !ok {
		return ErrNoSuchUser
	}
	return nil
}

func (r *RedisRepository) key(email string) string {
	return r.prefix + email
}

func encodeRecord(user User) ([]byte, error) {
	data, err := json.Marshal(redisRecord{User: user, PasswordDigest: user.PasswordDigest})
	if err != nil {
		return nil, fmt.Errorf("credentials: encode user: %w", err)
	}
	return data, nil
}

var _ Repository = (*RedisRepository)(nil)
