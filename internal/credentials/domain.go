package credentials

import (
	"time"

	"github.com/odyssey-erp/odyssey-mfa/internal/shared"
)

var (
	// ErrNoSuchUser indicates no record exists for the normalized email.
	ErrNoSuchUser = shared.NewError(shared.ErrNotFound, "no_user")
	// ErrAlreadyExists indicates the normalized email is already registered.
	ErrAlreadyExists = shared.NewError(shared.ErrConflict, "user_exists")
)

// User is the stored credential record of one account.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	PasswordDigest   []byte    `json:"-"`
	FaceIdentityRef  string    `json:"faceIdentityRef,omitempty"`
	VoiceIdentityRef string    `json:"voiceIdentityRef,omitempty"`
	FaceEnrolled     bool      `json:"faceEnrolled"`
	VoiceEnrolled    bool      `json:"voiceEnrolled"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers never alias stored state.
func (u User) Clone() User {
	out := u
	if u.PasswordDigest != nil {
		out.PasswordDigest = append([]byte(nil), u.PasswordDigest...)
	}
	return out
}
