package azure

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-mfa/internal/biometric"
)

type recordedCall struct {
	channel, op string
	err         error
}

type observerStub struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (o *observerStub) ObserveProviderCall(channel, op string, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, recordedCall{channel: channel, op: op, err: err})
}

func newFaceServer(t *testing.T, mux *http.ServeMux) (*FaceClient, *observerStub) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(keyHeader) != "face-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	obs := &observerStub{}
	client := NewFaceClient(FaceConfig{
		Endpoint:      srv.URL,
		Key:           "face-key",
		PersonGroupID: "grp",
		PollInterval:  5 * time.Millisecond,
		Timeout:       2 * time.Second,
		Observer:      obs,
	})
	return client, obs
}

func TestFaceEnsureGroupToleratesConflictAndCachesSuccess(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /face/v1.0/persongroups/grp", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"error":{"code":"PersonGroupExists","message":"exists"}}`)
	})
	client, _ := newFaceServer(t, mux)

	require.NoError(t, client.EnsureGroup(context.Background()))
	require.NoError(t, client.EnsureGroup(context.Background()))
	assert.Equal(t, int32(1), hits.Load())
}

func TestFaceEnrollmentFlow(t *testing.T) {
	var trainPolls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /face/v1.0/persongroups/grp/persons", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@x.com", body["name"])
		_, _ = io.WriteString(w, `{"personId":"p-1"}`)
	})
	mux.HandleFunc("POST /face/v1.0/persongroups/grp/persons/p-1/persistedFaces", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		assert.Equal(t, []byte("jpeg"), data)
		_, _ = io.WriteString(w, `{"persistedFaceId":"f-1"}`)
	})
	mux.HandleFunc("POST /face/v1.0/persongroups/grp/train", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /face/v1.0/persongroups/grp/training", func(w http.ResponseWriter, r *http.Request) {
		if trainPolls.Add(1) < 3 {
			_, _ = io.WriteString(w, `{"status":"running"}`)
			return
		}
		_, _ = io.WriteString(w, `{"status":"succeeded"}`)
	})
	client, obs := newFaceServer(t, mux)
	ctx := context.Background()

	personID, err := client.CreatePerson(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "p-1", personID)
	require.NoError(t, client.AddFace(ctx, personID, []byte("jpeg")))
	require.NoError(t, client.Train(ctx))
	assert.Equal(t, int32(3), trainPolls.Load())

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.NotEmpty(t, obs.calls)
	assert.Equal(t, "face", obs.calls[0].channel)
	assert.Equal(t, "create_person", obs.calls[0].op)
}

func TestFaceTrainFailureIsReported(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /face/v1.0/persongroups/grp/train", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /face/v1.0/persongroups/grp/training", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"failed","message":"no faces"}`)
	})
	client, _ := newFaceServer(t, mux)

	err := client.Train(context.Background())
	require.ErrorIs(t, err, biometric.ErrProviderUnavailable)
}

func TestFaceDetectAndVerify(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /face/v1.0/detect", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("returnFaceId"))
		_, _ = io.WriteString(w, `[{"faceId":"d-1"},{"faceId":"d-2"}]`)
	})
	mux.HandleFunc("POST /face/v1.0/verify", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "d-1", body["faceId"])
		assert.Equal(t, "p-1", body["personId"])
		assert.Equal(t, "grp", body["personGroupId"])
		_, _ = io.WriteString(w, `{"isIdentical":true,"confidence":0.83}`)
	})
	client, _ := newFaceServer(t, mux)
	ctx := context.Background()

	faceID, found, err := client.Detect(ctx, []byte("img"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "d-1", faceID)

	signal, err := client.Verify(ctx, faceID, "p-1")
	require.NoError(t, err)
	assert.True(t, signal.OK)
	assert.InDelta(t, 0.83, signal.Score, 1e-9)
}

func TestFaceDetectNoFace(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /face/v1.0/detect", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	client, _ := newFaceServer(t, mux)

	_, found, err := client.Detect(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFaceErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{name: "bad image", status: http.StatusBadRequest, want: biometric.ErrSampleRejected},
		{name: "throttled", status: http.StatusTooManyRequests, want: biometric.ErrProviderUnavailable},
		{name: "server", status: http.StatusInternalServerError, want: biometric.ErrProviderUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /face/v1.0/detect", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, `{"error":{"code":"X","message":"y"}}`)
			})
			client, _ := newFaceServer(t, mux)

			_, _, err := client.Detect(context.Background(), []byte("img"))
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.status, statusOf(err))
		})
	}
}

func TestFaceUnconfigured(t *testing.T) {
	client := NewFaceClient(FaceConfig{})
	_, err := client.CreatePerson(context.Background(), "a@x.com")
	require.ErrorIs(t, err, biometric.ErrProviderUnavailable)
}

func TestFaceTimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	client := NewFaceClient(FaceConfig{Endpoint: srv.URL, Key: "k", Timeout: 50 * time.Millisecond})

	_, _, err := client.Detect(context.Background(), []byte("img"))
	require.ErrorIs(t, err, biometric.ErrProviderUnavailable)
}
