package httpx

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-mfa/internal/shared"
)

func multipartRequest(t *testing.T, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	for name, data := range files {
		part, err := writer.CreateFormFile(name, name+".bin")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestParseFormMultipart(t *testing.T) {
	req := multipartRequest(t, map[string]string{"email": "a@x.com"}, map[string][]byte{"face": []byte("jpeg")})
	require.NoError(t, ParseForm(httptest.NewRecorder(), req, 1<<20))
	assert.Equal(t, "a@x.com", req.PostFormValue("email"))

	data, ok, err := FormFile(req, "face")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("jpeg"), data)

	_, ok, err = FormFile(req, "voice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseFormURLEncoded(t *testing.T) {
	form := url.Values{"email": {"a@x.com"}, "password": {"pw"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	require.NoError(t, ParseForm(httptest.NewRecorder(), req, 0))
	assert.Equal(t, "pw", req.PostFormValue("password"))

	_, ok, err := FormFile(req, "face")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseFormTooLarge(t *testing.T) {
	req := multipartRequest(t, nil, map[string][]byte{"face": bytes.Repeat([]byte("x"), 4096)})
	err := ParseForm(httptest.NewRecorder(), req, 512)
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, "body_too_large", shared.CodeOf(err))
}
