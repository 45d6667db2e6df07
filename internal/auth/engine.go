// Package auth decides logins from a password and optional face and voice samples.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-mfa/internal/audit"
	"github.com/odyssey-erp/odyssey-mfa/internal/biometric"
	"github.com/odyssey-erp/odyssey-mfa/internal/credentials"
)

// Credentials is the read side of the credential store used at login.
type Credentials interface {
	Lookup(ctx context.Context, email string) (credentials.User, bool, error)
	CheckPassword(user credentials.User, password string) bool
}

// TokenIssuer turns an accepted decision into a session token.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// DecisionObserver receives every completed decision.
type DecisionObserver interface {
	ObserveDecision(outcome, reason string, faceScore float64, faceSampled bool)
}

// LoginInput is one login attempt. Empty samples mean the channel was not offered.
type LoginInput struct {
	Email       string
	Password    string
	FaceSample  []byte
	VoiceSample []byte
}

// EngineParams groups the Engine's collaborators. Face, Voice, Observer and Audit are optional.
type EngineParams struct {
	Credentials Credentials
	Face        biometric.FaceChannel
	Voice       biometric.VoiceChannel
	Issuer      TokenIssuer
	Policy      Policy
	Logger      *slog.Logger
	Observer    DecisionObserver
	Audit       audit.Recorder
}

// Engine evaluates logins.
type Engine struct {
	creds    Credentials
	face     biometric.FaceChannel
	voice    biometric.VoiceChannel
	issuer   TokenIssuer
	policy   Policy
	logger   *slog.Logger
	observer DecisionObserver
	audit    audit.Recorder
}

// NewEngine constructs an Engine. A zero policy threshold falls back to DefaultFaceThreshold.
func NewEngine(p EngineParams) *Engine {
	if p.Policy.FaceThreshold <= 0 {
		p.Policy = DefaultPolicy()
	}
	if p.Logger == nil {
		p.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		creds:    p.Credentials,
		face:     p.Face,
		voice:    p.Voice,
		issuer:   p.Issuer,
		policy:   p.Policy,
		logger:   p.Logger,
		observer: p.Observer,
		audit:    p.Audit,
	}
}

// Authenticate evaluates in and returns the decision. Unknown users yield credentials.ErrNoSuchUser;
// rejections return the decision together with a *RejectionError. Provider failures never surface
// as errors here: they count as a failed channel.
func (e *Engine) Authenticate(ctx context.Context, in LoginInput) (Decision, error) {
	user, ok, err := e.creds.Lookup(ctx, in.Email)
	if err != nil {
		return Decision{}, fmt.Errorf("auth: lookup: %w", err)
	}
	if !ok {
		e.record(ctx, audit.Event{Type: audit.TypeLogin, Email: credentials.NormalizeEmail(in.Email),
			Outcome: audit.OutcomeReject, Reason: credentials.ErrNoSuchUser.Code})
		return Decision{}, credentials.ErrNoSuchUser
	}

	decision := Decision{UserID: user.ID, PasswordOK: e.creds.CheckPassword(user, in.Password)}
	faceSampled := false
	// A wrong password is final; skip the provider round trips.
	if decision.PasswordOK {
		faceSampled = len(in.FaceSample) > 0 && user.FaceIdentityRef != ""
		face, voice := e.collectSignals(ctx, user, in)
		decision.FaceScore = face.Score
		decision.VoiceOK = voice.OK
	}
	decision = e.policy.Evaluate(decision)

	if decision.Accepted() {
		token, err := e.issuer.Issue(user.ID)
		if err != nil {
			return Decision{}, fmt.Errorf("auth: issue session: %w", err)
		}
		decision.Token = token
	}

	if e.observer != nil {
		e.observer.ObserveDecision(decision.Outcome, decision.Reason, decision.FaceScore, faceSampled)
	}
	e.record(ctx, audit.Event{
		Type:      audit.TypeLogin,
		UserID:    user.ID,
		Email:     user.Email,
		Outcome:   decision.Outcome,
		Reason:    decision.Reason,
		FaceScore: decision.FaceScore,
		VoiceOK:   decision.VoiceOK,
	})

	if !decision.Accepted() {
		return decision, rejection(decision)
	}
	return decision, nil
}

// collectSignals runs the face and voice checks concurrently. Errors from either channel are
// mapped to the zero Signal here and nowhere else.
func (e *Engine) collectSignals(ctx context.Context, user credentials.User, in LoginInput) (face, voice biometric.Signal) {
	var g errgroup.Group
	g.Go(func() error {
		signal, err := e.verifyFace(ctx, user, in.FaceSample)
		if err != nil {
			e.logChannelFailure(ctx, "face", user, err)
			signal = biometric.Signal{}
		}
		face = signal
		return nil
	})
	g.Go(func() error {
		signal, err := e.verifyVoice(ctx, user, in.VoiceSample)
		if err != nil {
			e.logChannelFailure(ctx, "voice", user, err)
			signal = biometric.Signal{}
		}
		voice = signal
		return nil
	})
	_ = g.Wait()
	return face, voice
}

func (e *Engine) verifyFace(ctx context.Context, user credentials.User, sample []byte) (biometric.Signal, error) {
	if len(sample) == 0 || user.FaceIdentityRef == "" {
		return biometric.Signal{}, nil
	}
	if e.face == nil {
		return biometric.Signal{}, biometric.ErrProviderUnavailable
	}
	faceID, found, err := e.face.Detect(ctx, sample)
	if err != nil {
		return biometric.Signal{}, err
	}
	if !found {
		return biometric.Signal{}, nil
	}
	return e.face.Verify(ctx, faceID, user.FaceIdentityRef)
}

func (e *Engine) verifyVoice(ctx context.Context, user credentials.User, sample []byte) (biometric.Signal, error) {
	if len(sample) == 0 || user.VoiceIdentityRef == "" {
		return biometric.Signal{}, nil
	}
	if e.voice == nil {
		return biometric.Signal{}, biometric.ErrProviderUnavailable
	}
	return e.voice.Verify(ctx, user.VoiceIdentityRef, sample)
}

func (e *Engine) logChannelFailure(ctx context.Context, channel string, user credentials.User, err error) {
	level := slog.LevelWarn
	if errors.Is(err, biometric.ErrSampleRejected) {
		level = slog.LevelInfo
	}
	e.logger.Log(ctx, level, "biometric check failed closed",
		slog.String("channel", channel),
		slog.String("user_id", user.ID),
		slog.Any("error", err),
	)
}

func (e *Engine) record(ctx context.Context, event audit.Event) {
	audit.Emit(ctx, e.audit, e.logger, event)
}
