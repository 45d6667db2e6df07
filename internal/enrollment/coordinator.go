// Package enrollment binds local users to remote face and voice identities.
package enrollment

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/odyssey-erp/odyssey-mfa/internal/audit"
	"github.com/odyssey-erp/odyssey-mfa/internal/biometric"
	"github.com/odyssey-erp/odyssey-mfa/internal/credentials"
	"github.com/odyssey-erp/odyssey-mfa/internal/shared"
)

// Channels.
const (
	ChannelFace  = "face"
	ChannelVoice = "voice"
)

// ErrEmptySample is returned when no sample bytes were supplied.
var ErrEmptySample = shared.NewError(shared.ErrValidation, "empty_sample")

// UserMutator applies a locked read-modify-write to one user record.
type UserMutator interface {
	WithUser(ctx context.Context, email string, fn credentials.Mutation) (credentials.User, error)
}

// Observer receives enrollment results.
type Observer interface {
	ObserveEnrollment(channel string, err error)
}

// Params groups the Coordinator's collaborators. Face and Voice may be nil when a provider is not
// configured; enrollment on that channel then fails with biometric.ErrProviderUnavailable.
type Params struct {
	Users    UserMutator
	Face     biometric.FaceChannel
	Voice    biometric.VoiceChannel
	Logger   *slog.Logger
	Observer Observer
	Audit    audit.Recorder
}

// Coordinator drives face and voice enrollment. The user record is written once, after every
// remote step succeeded; any failure leaves it untouched.
type Coordinator struct {
	users    UserMutator
	face     biometric.FaceChannel
	voice    biometric.VoiceChannel
	logger   *slog.Logger
	observer Observer
	audit    audit.Recorder
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(p Params) *Coordinator {
	if p.Logger == nil {
		p.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{
		users:    p.Users,
		face:     p.Face,
		voice:    p.Voice,
		logger:   p.Logger,
		observer: p.Observer,
		audit:    p.Audit,
	}
}

// EnrollFace attaches sample to the user's face identity, creating it on first use, and
// trains the group. It returns the remote person id.
func (c *Coordinator) EnrollFace(ctx context.Context, email string, sample []byte) (string, error) {
	user, err := c.enroll(ctx, ChannelFace, email, sample, func(ctx context.Context, current credentials.User) (credentials.User, bool, error) {
		if c.face == nil {
			return current, false, fmt.Errorf("%w: face provider not configured", biometric.ErrProviderUnavailable)
		}
		personID := current.FaceIdentityRef
		if personID == "" {
			if err := c.face.EnsureGroup(ctx); err != nil {
				return current, false, fmt.Errorf("enrollment: ensure group: %w", err)
			}
			created, err := c.face.CreatePerson(ctx, current.Email)
			if err != nil {
				return current, false, fmt.Errorf("enrollment: create person: %w", err)
			}
			personID = created
		}
		if err := c.face.AddFace(ctx, personID, sample); err != nil {
			return current, false, fmt.Errorf("enrollment: add face: %w", err)
		}
		if err := c.face.Train(ctx); err != nil {
			return current, false, fmt.Errorf("enrollment: train: %w", err)
		}
		current.FaceIdentityRef = personID
		current.FaceEnrolled = true
		return current, true, nil
	})
	if err != nil {
		return "", err
	}
	return user.FaceIdentityRef, nil
}

// EnrollVoice submits sample to the user's voice profile, creating it on first use.
// Voice has no training step. It returns the remote profile id.
func (c *Coordinator) EnrollVoice(ctx context.Context, email string, sample []byte) (string, error) {
	user, err := c.enroll(ctx, ChannelVoice, email, sample, func(ctx context.Context, current credentials.User) (credentials.User, bool, error) {
		if c.voice == nil {
			return current, false, fmt.Errorf("%w: voice provider not configured", biometric.ErrProviderUnavailable)
		}
		profileID := current.VoiceIdentityRef
		if profileID == "" {
			created, err := c.voice.CreateProfile(ctx)
			if err != nil {
				return current, false, fmt.Errorf("enrollment: create profile: %w", err)
			}
			profileID = created
		}
		if err := c.voice.Enroll(ctx, profileID, sample); err != nil {
			return current, false, fmt.Errorf("enrollment: enroll voice: %w", err)
		}
		current.VoiceIdentityRef = profileID
		current.VoiceEnrolled = true
		return current, true, nil
	})
	if err != nil {
		return "", err
	}
	return user.VoiceIdentityRef, nil
}

func (c *Coordinator) enroll(ctx context.Context, channel, email string, sample []byte, fn credentials.Mutation) (credentials.User, error) {
	event := audit.Event{Type: eventType(channel), Email: credentials.NormalizeEmail(email), Outcome: audit.OutcomeAccept}
	var user credentials.User
	err := func() error {
		if len(sample) == 0 {
			return ErrEmptySample
		}
		var err error
		user, err = c.users.WithUser(ctx, email, fn)
		return err
	}()

	if c.observer != nil {
		c.observer.ObserveEnrollment(channel, err)
	}
	event.UserID = user.ID
	if err != nil {
		event.Outcome, event.Reason = audit.OutcomeError, shared.CodeOf(err)
		c.logger.Warn("enrollment failed",
			slog.String("channel", channel),
			slog.String("email", event.Email),
			slog.Any("error", err),
		)
	}
	audit.Emit(ctx, c.audit, c.logger, event)
	if err != nil {
		return credentials.User{}, err
	}
	return user, nil
}

func eventType(channel string) string {
	if channel == ChannelFace {
		return audit.TypeEnrollFace
	}
	return audit.TypeEnrollVoice
}
