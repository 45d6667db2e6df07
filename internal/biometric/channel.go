// Package biometric defines the provider boundary for face and voice factors.
//
// Face and voice are deliberately separate capabilities: the face provider needs a
// person group and an explicit training step before verification works, the voice
// provider does not.
package biometric

import (
	"context"

	"github.com/odyssey-erp/odyssey-mfa/internal/shared"
)

var (
	// ErrProviderUnavailable covers transport failures, timeouts, 5xx responses and missing configuration.
	ErrProviderUnavailable = shared.NewError(shared.ErrUpstream, "provider_unavailable")
	// ErrSampleRejected means the provider understood the request but could not use the sample.
	ErrSampleRejected = shared.NewError(shared.ErrUnprocessable, "sample_rejected")
)

// Signal is the outcome of one verification call. The zero value is the fail-closed result.
type Signal struct {
	OK    bool
	Score float64
}

// FaceChannel is the face provider capability.
type FaceChannel interface {
	// EnsureGroup creates the person group; an existing group is not an error.
	EnsureGroup(ctx context.Context) error
	CreatePerson(ctx context.Context, name string) (personID string, err error)
	AddFace(ctx context.Context, personID string, image []byte) error
	// Train finalises the group and returns once training has succeeded.
	Train(ctx context.Context) error
	// Detect returns the provider's transient face id; found is false when no face is present.
	Detect(ctx context.Context, image []byte) (faceID string, found bool, err error)
	Verify(ctx context.Context, faceID, personID string) (Signal, error)
}

// VoiceChannel is the speaker verification capability.
type VoiceChannel interface {
	CreateProfile(ctx context.Context) (profileID string, err error)
	Enroll(ctx context.Context, profileID string, audio []byte) error
	// Verify reports OK only when the provider explicitly accepted the sample.
	Verify(ctx context.Context, profileID string, audio []byte) (Signal, error)
}
