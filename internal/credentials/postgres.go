package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PostgreSQL repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert creates the users row.
func (r *PGRepository) Insert(ctx context.Context, user User) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO users (id, email, password_digest, face_identity_ref, voice_identity_ref, face_enrolled, voice_enrolled, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Email, user.PasswordDigest,
		nullText(user.FaceIdentityRef), nullText(user.VoiceIdentityRef),
		user.FaceEnrolled, user.VoiceEnrolled, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("credentials: insert user: %w", err)
	}
	return nil
}

// Get fetches a user by normalized email.
func (r *PGRepository) Get(ctx context.Context, email string) (User, bool, error) {
	var (
		user      User
		faceRef   pgtype.Text
		voiceRef  pgtype.Text
		createdAt time.Time
		updatedAt time.Time
	)
	err := r.pool.QueryRow(ctx, `SELECT id, email, password_digest, face_identity_ref, voice_identity_ref, face_enrolled, voice_enrolled, created_at, updated_at
FROM users WHERE email = $1`, email).Scan(
		&user.ID, &user.Email, &user.PasswordDigest, &faceRef, &voiceRef,
		&user.FaceEnrolled, &user.VoiceEnrolled, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, false, nil
		}
		return User{}, false, fmt.Errorf("credentials: get user: %w", err)
	}
	user.FaceIdentityRef = faceRef.String
	user.VoiceIdentityRef = voiceRef.String
	user.CreatedAt = createdAt.UTC()
	user.UpdatedAt = updatedAt.UTC()
	return user, true, nil
}

// Replace rewrites every mutable column of the row in one statement.
func (r *PGRepository) Replace(ctx context.Context, user User) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_digest = $2, face_identity_ref = $3, voice_identity_ref = $4,
face_enrolled = $5, voice_enrolled = $6, updated_at = $7 WHERE email = $1`,
		user.Email, user.PasswordDigest, nullText(user.FaceIdentityRef), nullText(user.VoiceIdentityRef),
		user.FaceEnrolled, user.VoiceEnrolled, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("credentials: replace user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoSuchUser
	}
	return nil
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ Repository = (*PGRepository)(nil)
