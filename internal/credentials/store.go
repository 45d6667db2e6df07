package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-mfa/internal/shared"
)

// Store owns user records. Writes to one email are serialised through the Locker;
// reads return whole-record snapshots and never observe a partial write.
type Store struct {
	repo   Repository
	locker shared.Locker
	hasher Hasher
	now    func() time.Time
}

// NewStore constructs a Store. A nil locker falls back to an in-process KeyedMutex.
func NewStore(repo Repository, locker shared.Locker, hasher Hasher) *Store {
	if locker == nil {
		locker = shared.NewKeyedMutex()
	}
	return &Store{repo: repo, locker: locker, hasher: hasher, now: time.Now}
}

// Create registers a new user with a hashed password.
func (s *Store) Create(ctx context.Context, email, password string) (User, error) {
	key := NormalizeEmail(email)
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return User{}, err
	}

	unlock, err := s.locker.Lock(ctx, shared.UserLockKey(key))
	if err != nil {
		return User{}, err
	}
	defer unlock()

	now := s.now().UTC()
	user := User{
		ID:             uuid.NewString(),
		Email:          key,
		PasswordDigest: digest,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, user); err != nil {
		return User{}, err
	}
	return user.Clone(), nil
}

// Lookup returns the record for email; the bool is false on a miss.
func (s *Store) Lookup(ctx context.Context, email string) (User, bool, error) {
	return s.repo.Get(ctx, NormalizeEmail(email))
}

// Update replaces the full record keyed by its normalized email.
func (s *Store) Update(ctx context.Context, user User) error {
	user.Email = NormalizeEmail(user.Email)
	unlock, err := s.locker.Lock(ctx, shared.UserLockKey(user.Email))
	if err != nil {
		return err
	}
	defer unlock()
	user.UpdatedAt = s.now().UTC()
	return s.repo.Replace(ctx, user)
}

// Mutation computes the next version of a record. Returning changed=false or an error skips the write.
type Mutation func(ctx context.Context, current User) (next User, changed bool, err error)

// WithUser runs fn on the current record while holding the per-user lock, then writes the
// result once. Missing users yield ErrNoSuchUser.
func (s *Store) WithUser(ctx context.Context, email string, fn Mutation) (User, error) {
	key := NormalizeEmail(email)
	unlock, err := s.locker.Lock(ctx, shared.UserLockKey(key))
	if err != nil {
		return User{}, err
	}
	defer unlock()

	current, ok, err := s.repo.Get(ctx, key)
	if err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, ErrNoSuchUser
	}

	next, changed, err := fn(ctx, current.Clone())
	if err != nil {
		return current, err
	}
	if !changed {
		return current, nil
	}
	if next.ID != current.ID || NormalizeEmail(next.Email) != key {
		return current, fmt.Errorf("credentials: mutation changed identity of %s", key)
	}
	next.Email = key
	next.UpdatedAt = s.now().UTC()
	if err := s.repo.Replace(ctx, next); err != nil {
		return current, err
	}
	return next.Clone(), nil
}

// CheckPassword reports whether password matches the user's digest.
func (s *Store) CheckPassword(user User, password string) bool {
	return s.hasher.Verify(password, user.PasswordDigest)
}
