package enrollment

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-mfa/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-mfa/internal/shared"
)

// Enroller is the behaviour the handler needs from a Coordinator.
type Enroller interface {
	EnrollFace(ctx context.Context, email string, sample []byte) (string, error)
	EnrollVoice(ctx context.Context, email string, sample []byte) (string, error)
}

// Handler exposes enrollment over HTTP.
type Handler struct {
	logger         *slog.Logger
	enroller       Enroller
	validator      *validator.Validate
	maxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, enroller Enroller, maxUploadBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, enroller: enroller, validator: validator.New(), maxUploadBytes: maxUploadBytes}
}

// MountRoutes registers enrollment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/enroll", func(r chi.Router) {
		r.Post("/face", h.handleFace)
		r.Post("/voice", h.handleVoice)
	})
}

type enrollForm struct {
	Email string `validate:"required,email"`
}

type faceResponse struct {
	OK       bool   `json:"ok"`
	PersonID string `json:"personId"`
}

type voiceResponse struct {
	OK        bool   `json:"ok"`
	ProfileID string `json:"profileId"`
}

func (h *Handler) handleFace(w http.ResponseWriter, r *http.Request) {
	email, sample, ok := h.readRequest(w, r)
	if !ok {
		return
	}
	personID, err := h.enroller.EnrollFace(r.Context(), email, sample)
	if err != nil {
		h.respondError(w, "enroll face", err)
		return
	}
	httpx.JSON(w, http.StatusOK, faceResponse{OK: true, PersonID: personID})
}

func (h *Handler) handleVoice(w http.ResponseWriter, r *http.Request) {
	email, sample, ok := h.readRequest(w, r)
	if !ok {
		return
	}
	profileID, err := h.enroller.EnrollVoice(r.Context(), email, sample)
	if err != nil {
		h.respondError(w, "enroll voice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, voiceResponse{OK: true, ProfileID: profileID})
}

func (h *Handler) readRequest(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	if err := httpx.ParseForm(w, r, h.maxUploadBytes); err != nil {
		httpx.RespondError(w, err)
		return "", nil, false
	}
	form := enrollForm{Email: strings.TrimSpace(r.PostFormValue("email"))}
	if err := h.validator.Struct(form); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: email", shared.ErrValidation))
		return "", nil, false
	}
	sample, present, err := httpx.FormFile(r, "file")
	if err != nil {
		httpx.RespondError(w, err)
		return "", nil, false
	}
	if !present {
		httpx.RespondError(w, fmt.Errorf("%w: file", shared.ErrValidation))
		return "", nil, false
	}
	return form.Email, sample, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if status, _ := httpx.StatusFor(err); status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
