package auth

import (
	"fmt"

	"github.com/odyssey-erp/odyssey-mfa/internal/shared"
)

// DefaultFaceThreshold is the minimum face confidence that satisfies the second factor.
const DefaultFaceThreshold = 0.7

// Outcomes.
const (
	OutcomeAccept = "accept"
	OutcomeReject = "reject"
)

// Reason codes.
const (
	ReasonOK                    = "ok"
	ReasonBadPassword           = "bad_password"
	ReasonInsufficientBiometric = "insufficient_biometric"
)

// Policy combines the password gate with the biometric OR-rule.
type Policy struct {
	FaceThreshold float64
}

// DefaultPolicy returns the policy with DefaultFaceThreshold.
func DefaultPolicy() Policy {
	return Policy{FaceThreshold: DefaultFaceThreshold}
}

// Decision is the ephemeral outcome of one login attempt.
type Decision struct {
	UserID     string  `json:"-"`
	PasswordOK bool    `json:"passwordOk"`
	FaceScore  float64 `json:"faceScore"`
	VoiceOK    bool    `json:"voiceOk"`
	Outcome    string  `json:"outcome"`
	Reason     string  `json:"reason"`
	Token      string  `json:"token,omitempty"`
}

// Accepted reports whether the decision grants a session.
func (d Decision) Accepted() bool {
	return d.Outcome == OutcomeAccept
}

// Evaluate fills Outcome and Reason. A wrong password rejects regardless of biometrics;
// otherwise either a face score at or above the threshold or a voice accept suffices.
func (p Policy) Evaluate(d Decision) Decision {
	switch {
	case !d.PasswordOK:
		d.Outcome, d.Reason = OutcomeReject, ReasonBadPassword
	case d.FaceScore >= p.FaceThreshold || d.VoiceOK:
		d.Outcome, d.Reason = OutcomeAccept, ReasonOK
	default:
		d.Outcome, d.Reason = OutcomeReject, ReasonInsufficientBiometric
	}
	return d
}

// RejectionError carries a rejected decision. It matches shared.ErrUnauthorized.
type RejectionError struct {
	Reason    string
	FaceScore float64
	VoiceOK   bool
}

func (e *RejectionError) Error() string {
	if e.Reason == ReasonInsufficientBiometric {
		return fmt.Sprintf("%s (faceScore=%.4f voiceOk=%t)", e.Reason, e.FaceScore, e.VoiceOK)
	}
	return e.Reason
}

func (e *RejectionError) Unwrap() error {
	return shared.ErrUnauthorized
}

func rejection(d Decision) *RejectionError {
	return &RejectionError{Reason: d.Reason, FaceScore: d.FaceScore, VoiceOK: d.VoiceOK}
}
