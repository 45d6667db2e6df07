package azure

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/odyssey-erp/odyssey-mfa/internal/biometric"
)

// FaceConfig configures the Face REST client.
type FaceConfig struct {
	Endpoint      string
	Key           string
	PersonGroupID string
	Timeout       time.Duration
	PollInterval  time.Duration
	HTTPClient    *http.Client
	Observer      CallObserver
}

// FaceClient implements biometric.FaceChannel against Azure Face v1.0.
type FaceClient struct {
	t            transport
	group        string
	pollInterval time.Duration
	timeout      time.Duration
	groupReady   atomic.Bool
}

// NewFaceClient constructs a FaceClient. Missing endpoint or key yields a client whose
// calls fail with biometric.ErrProviderUnavailable.
func NewFaceClient(cfg FaceConfig) *FaceClient {
	if cfg.PersonGroupID == "" {
		cfg.PersonGroupID = "myapp-group"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &FaceClient{
		t:            newTransport("face", cfg.Endpoint, cfg.Key, cfg.Timeout, cfg.HTTPClient, cfg.Observer),
		group:        cfg.PersonGroupID,
		pollInterval: cfg.PollInterval,
		timeout:      cfg.Timeout,
	}
}

func (c *FaceClient) groupPath() string {
	return "/face/v1.0/persongroups/" + url.PathEscape(c.group)
}

// EnsureGroup creates the person group once per process. 409 means it already exists.
func (c *FaceClient) EnsureGroup(ctx context.Context) error {
	if c.groupReady.Load() {
		return nil
	}
	req, err := jsonRequest("create_group", http.MethodPut, c.groupPath(), map[string]string{"name": c.group})
	if err != nil {
		return err
	}
	if err := c.t.do(ctx, req, nil); err != nil && statusOf(err) != http.StatusConflict {
		return err
	}
	c.groupReady.Store(true)
	return nil
}

// CreatePerson registers a person in the group.
func (c *FaceClient) CreatePerson(ctx context.Context, name string) (string, error) {
	req, err := jsonRequest("create_person", http.MethodPost, c.groupPath()+"/persons", map[string]string{"name": name})
	if err != nil {
		return "", err
	}
	var out struct {
		PersonID string `json:"personId"`
	}
	if err := c.t.do(ctx, req, &out); err != nil {
		return "", err
	}
	if out.PersonID == "" {
		return "", fmt.Errorf("%w: face create_person: empty personId", biometric.ErrProviderUnavailable)
	}
	return out.PersonID, nil
}

// AddFace attaches an image to the person.
func (c *FaceClient) AddFace(ctx context.Context, personID string, image []byte) error {
	req := request{
		op:          "add_face",
		method:      http.MethodPost,
		path:        c.groupPath() + "/persons/" + url.PathEscape(personID) + "/persistedFaces",
		contentType: "application/octet-stream",
		body:        image,
	}
	var out struct {
		PersistedFaceID string `json:"persistedFaceId"`
	}
	return c.t.do(ctx, req, &out)
}

// Train starts group training and waits until the provider reports success.
func (c *FaceClient) Train(ctx context.Context) error {
	req := request{op: "train", method: http.MethodPost, path: c.groupPath() + "/train"}
	if err := c.t.do(ctx, req, nil); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		status, err := c.trainingStatus(ctx)
		if err != nil {
			return err
		}
		switch status.Status {
		case "succeeded":
			return nil
		case "failed":
			return fmt.Errorf("%w: face training failed: %s", biometric.ErrProviderUnavailable, status.Message)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: face training still %q: %v", biometric.ErrProviderUnavailable, status.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}

type trainingStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (c *FaceClient) trainingStatus(ctx context.Context) (trainingStatus, error) {
	var out trainingStatus
	req := request{op: "training_status", method: http.MethodGet, path: c.groupPath() + "/training"}
	err := c.t.do(ctx, req, &out)
	return out, err
}

// Detect finds the first face in image.
func (c *FaceClient) Detect(ctx context.Context, image []byte) (string, bool, error) {
	req := request{
		op:          "detect",
		method:      http.MethodPost,
		path:        "/face/v1.0/detect?returnFaceId=true",
		contentType: "application/octet-stream",
		body:        image,
	}
	var faces []struct {
		FaceID string `json:"faceId"`
	}
	if err := c.t.do(ctx, req, &faces); err != nil {
		return "", false, err
	}
	if len(faces) == 0 || faces[0].FaceID == "" {
		return "", false, nil
	}
	return faces[0].FaceID, true, nil
}

// Verify compares a detected face with an enrolled person.
func (c *FaceClient) Verify(ctx context.Context, faceID, personID string) (biometric.Signal, error) {
	req, err := jsonRequest("verify", http.MethodPost, "/face/v1.0/verify", map[string]string{
		"faceId":        faceID,
		"personId":      personID,
		"personGroupId": c.group,
	})
	if err != nil {
		return biometric.Signal{}, err
	}
	var out struct {
		IsIdentical bool    `json:"isIdentical"`
		Confidence  float64 `json:"confidence"`
	}
	if err := c.t.do(ctx, req, &out); err != nil {
		return biometric.Signal{}, err
	}
	score := out.Confidence
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return biometric.Signal{OK: out.IsIdentical, Score: score}, nil
}

var _ biometric.FaceChannel = (*FaceClient)(nil)
