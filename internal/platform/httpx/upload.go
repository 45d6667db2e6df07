package httpx

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-mfa/internal/shared"
)

// DefaultMaxUploadBytes bounds a request body carrying biometric samples.
const DefaultMaxUploadBytes = 10 << 20

// ErrBodyTooLarge is returned when a request exceeds the upload limit.
var ErrBodyTooLarge = shared.NewError(shared.ErrValidation, "body_too_large")

// ParseForm parses a multipart or urlencoded body capped at maxBytes.
func ParseForm(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if strings.HasPrefix(mediaType, "multipart/") {
		err = r.ParseMultipartForm(maxBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return ErrBodyTooLarge
		}
		return fmt.Errorf("%w: malformed form: %v", shared.ErrValidation, err)
	}
	return nil
}

// FormFile reads an optional uploaded file. The bool is false when the field is absent.
func FormFile(r *http.Request, field string) ([]byte, bool, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, false, nil
	}
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", shared.ErrValidation, field, err)
	}
	defer func() {
		_ = file.Close()
	}()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, false, fmt.Errorf("httpx: read %s: %w", field, err)
	}
	return data, true, nil
}
