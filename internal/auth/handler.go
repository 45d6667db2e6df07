package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-mfa/internal/audit"
	"github.com/odyssey-erp/odyssey-mfa/internal/credentials"
	"github.com/odyssey-erp/odyssey-mfa/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-mfa/internal/shared"
)

// Registrar creates users.
type Registrar interface {
	Create(ctx context.Context, email, password string) (credentials.User, error)
}

// Authenticator decides logins.
type Authenticator interface {
	Authenticate(ctx context.Context, in LoginInput) (Decision, error)
}

// Handler wires HTTP endpoints for registration and login.
type Handler struct {
	logger         *slog.Logger
	registrar      Registrar
	engine         Authenticator
	audit          audit.Recorder
	validator      *validator.Validate
	maxUploadBytes int64
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, registrar Registrar, engine Authenticator, recorder audit.Recorder, maxUploadBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		registrar:      registrar,
		engine:         engine,
		audit:          recorder,
		validator:      validator.New(),
		maxUploadBytes: maxUploadBytes,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type registerResponse struct {
	OK     bool   `json:"ok"`
	UserID string `json:"userId"`
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type loginResponse struct {
	Token     string  `json:"token"`
	FaceScore float64 `json:"faceScore"`
	VoiceOK   bool    `json:"voiceOk"`
}

type rejectionProblem struct {
	httpx.ProblemDetail
	FaceScore *float64 `json:"faceScore,omitempty"`
	VoiceOK   *bool    `json:"voiceOk,omitempty"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := h.validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	user, err := h.registrar.Create(r.Context(), req.Email, req.Password)
	event := audit.Event{Type: audit.TypeRegister, Email: credentials.NormalizeEmail(req.Email), Outcome: audit.OutcomeAccept}
	if err != nil {
		event.Outcome, event.Reason = audit.OutcomeReject, shared.CodeOf(err)
		audit.Emit(r.Context(), h.audit, h.logger, event)
		h.respondError(w, "register", err)
		return
	}
	event.UserID = user.ID
	audit.Emit(r.Context(), h.audit, h.logger, event)
	httpx.JSON(w, http.StatusCreated, registerResponse{OK: true, UserID: user.ID})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := httpx.ParseForm(w, r, h.maxUploadBytes); err != nil {
		httpx.RespondError(w, err)
		return
	}
	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	if err := h.validate(form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	face, _, err := httpx.FormFile(r, "face")
	if err != nil {
		h.respondError(w, "read face sample", err)
		return
	}
	voice, _, err := httpx.FormFile(r, "voice")
	if err != nil {
		h.respondError(w, "read voice sample", err)
		return
	}

	decision, err := h.engine.Authenticate(r.Context(), LoginInput{
		Email:       form.Email,
		Password:    form.Password,
		FaceSample:  face,
		VoiceSample: voice,
	})
	if err != nil {
		var rejected *RejectionError
		if errors.As(err, &rejected) {
			h.respondRejection(w, rejected)
			return
		}
		h.respondError(w, "authenticate", err)
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{
		Token:     decision.Token,
		FaceScore: decision.FaceScore,
		VoiceOK:   decision.VoiceOK,
	})
}

func (h *Handler) respondRejection(w http.ResponseWriter, rejected *RejectionError) {
	body := rejectionProblem{ProblemDetail: httpx.ProblemDetail{
		Title:  "Unauthorized",
		Status: http.StatusUnauthorized,
		Detail: rejected.Reason,
	}}
	if rejected.Reason == ReasonInsufficientBiometric {
		body.FaceScore = &rejected.FaceScore
		body.VoiceOK = &rejected.VoiceOK
	}
	httpx.JSON(w, http.StatusUnauthorized, body)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if status, _ := httpx.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) validate(v any) error {
	if err := h.validator.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			return fmt.Errorf("%w: %s %s", shared.ErrValidation, strings.ToLower(first.Field()), first.Tag())
		}
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return nil
}
