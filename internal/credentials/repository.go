package credentials

import (
	"context"
	"sync"
)

// Repository persists whole user records keyed by normalized email.
// Each call must be atomic on the full record.
type Repository interface {
	Insert(ctx context.Context, user User) error
	Get(ctx context.Context, email string) (User, bool, error)
	Replace(ctx context.Context, user User) error
}

// MemoryRepository keeps records in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	byEmail map[string]User
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byEmail: make(map[string]User)}
}

// Insert stores a new record, failing with ErrAlreadyExists on duplicates.
func (r *MemoryRepository) Insert(ctx context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[user.Email]; exists {
		return ErrAlreadyExists
	}
	r.byEmail[user.Email] = user.Clone()
	return nil
}

// Get returns a copy of the record for email.
func (r *MemoryRepository) Get(ctx context.Context, email string) (User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byEmail[email]
	if !ok {
		return User{}, false, nil
	}
	return user.Clone(), true, nil
}

// Replace overwrites an existing record.
func (r *MemoryRepository) Replace(ctx context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[user.Email]; !exists {
		return ErrNoSuchUser
	}
	r.byEmail[user.Email] = user.Clone()
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
