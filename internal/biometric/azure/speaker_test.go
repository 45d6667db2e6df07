package azure

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-mfa/internal/biometric"
)

func newSpeakerServer(t *testing.T, mux *http.ServeMux) *SpeakerClient {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewSpeakerClient(SpeakerConfig{Endpoint: srv.URL, Key: "speech-key"})
}

func TestSpeakerCreateProfileAndEnroll(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /spid/v1.0/verificationProfiles", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "speech-key", r.Header.Get(keyHeader))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "en-US", body["locale"])
		_, _ = io.WriteString(w, `{"verificationProfileId":"v-1"}`)
	})
	mux.HandleFunc("POST /spid/v1.0/verificationProfiles/v-1/enroll", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "audio/wav", r.Header.Get("Content-Type"))
		_, _ = io.WriteString(w, `{"enrollmentStatus":"Enrolling"}`)
	})
	client := newSpeakerServer(t, mux)
	ctx := context.Background()

	profileID, err := client.CreateProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v-1", profileID)
	require.NoError(t, client.Enroll(ctx, profileID, []byte("RIFF")))
}

func TestSpeakerCreateProfileAcceptsProfileID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /spid/v1.0/verificationProfiles", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"profileId":"v-2"}`)
	})
	client := newSpeakerServer(t, mux)

	profileID, err := client.CreateProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v-2", profileID)
}

func TestSpeakerVerify(t *testing.T) {
	cases := []struct {
		result string
		wantOK bool
	}{
		{result: "Accept", wantOK: true},
		{result: "Reject", wantOK: false},
		{result: "accept", wantOK: false},
	}
	for _, tc := range cases {
		t.Run(tc.result, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /spid/v1.0/verify", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "v-1", r.URL.Query().Get("verificationProfileId"))
				_, _ = io.WriteString(w, `{"result":"`+tc.result+`","confidence":"High"}`)
			})
			client := newSpeakerServer(t, mux)

			signal, err := client.Verify(context.Background(), "v-1", []byte("RIFF"))
			require.NoError(t, err)
			assert.Equal(t, tc.wantOK, signal.OK)
		})
	}
}

func TestSpeakerEnrollRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /spid/v1.0/verificationProfiles/v-1/enroll", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":"InvalidAudioFormat","message":"bad"}}`)
	})
	client := newSpeakerServer(t, mux)

	err := client.Enroll(context.Background(), "v-1", []byte("junk"))
	require.ErrorIs(t, err, biometric.ErrSampleRejected)
}

func TestSpeakerRegionEndpoint(t *testing.T) {
	client := NewSpeakerClient(SpeakerConfig{Region: "westus", Key: "k"})
	assert.Equal(t, "https://westus.api.cognitive.microsoft.com", client.t.baseURL)
	assert.Equal(t, "en-US", client.locale)

	unconfigured := NewSpeakerClient(SpeakerConfig{})
	_, err := unconfigured.CreateProfile(context.Background())
	require.ErrorIs(t, err, biometric.ErrProviderUnavailable)
}
