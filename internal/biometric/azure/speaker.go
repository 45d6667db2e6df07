package azure

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/odyssey-erp/odyssey-mfa/internal/biometric"
)

// SpeakerConfig configures the Speaker Recognition client.
type SpeakerConfig struct {
	// Endpoint overrides the regional endpoint derived from Region.
	Endpoint   string
	Region     string
	Key        string
	Locale     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Observer   CallObserver
}

// SpeakerClient implements biometric.VoiceChannel against Speaker Recognition v1.0.
type SpeakerClient struct {
	t      transport
	locale string
}

// NewSpeakerClient constructs a SpeakerClient.
func NewSpeakerClient(cfg SpeakerConfig) *SpeakerClient {
	endpoint := cfg.Endpoint
	if endpoint == "" && cfg.Region != "" {
		endpoint = fmt.Sprintf("https://%s.api.cognitive.microsoft.com", cfg.Region)
	}
	if cfg.Locale == "" {
		cfg.Locale = "en-US"
	}
	return &SpeakerClient{
		t:      newTransport("voice", endpoint, cfg.Key, cfg.Timeout, cfg.HTTPClient, cfg.Observer),
		locale: cfg.Locale,
	}
}

// CreateProfile allocates a verification profile.
func (c *SpeakerClient) CreateProfile(ctx context.Context) (string, error) {
	req, err := jsonRequest("create_profile", http.MethodPost, "/spid/v1.0/verificationProfiles", map[string]string{"locale": c.locale})
	if err != nil {
		return "", err
	}
	var out struct {
		VerificationProfileID string `json:"verificationProfileId"`
		ProfileID             string `json:"profileId"`
	}
	if err := c.t.do(ctx, req, &out); err != nil {
		return "", err
	}
	id := out.VerificationProfileID
	if id == "" {
		id = out.ProfileID
	}
	if id == "" {
		return "", fmt.Errorf("%w: voice create_profile: empty profile id", biometric.ErrProviderUnavailable)
	}
	return id, nil
}

// Enroll submits an enrollment utterance. A 2xx response is the provider's confirmation.
func (c *SpeakerClient) Enroll(ctx context.Context, profileID string, audio []byte) error {
	req := request{
		op:          "enroll",
		method:      http.MethodPost,
		path:        "/spid/v1.0/verificationProfiles/" + url.PathEscape(profileID) + "/enroll",
		contentType: "audio/wav",
		body:        audio,
	}
	return c.t.do(ctx, req, nil)
}

// Verify checks an utterance against the profile.
func (c *SpeakerClient) Verify(ctx context.Context, profileID string, audio []byte) (biometric.Signal, error) {
	req := request{
		op:          "verify",
		method:      http.MethodPost,
		path:        "/spid/v1.0/verify?verificationProfileId=" + url.QueryEscape(profileID),
		contentType: "audio/wav",
		body:        audio,
	}
	var out struct {
		Result     string `json:"result"`
		Confidence string `json:"confidence"`
	}
	if err := c.t.do(ctx, req, &out); err != nil {
		return biometric.Signal{}, err
	}
	if out.Result != "Accept" {
		return biometric.Signal{}, nil
	}
	return biometric.Signal{OK: true, Score: 1}, nil
}

var _ biometric.VoiceChannel = (*SpeakerClient)(nil)
