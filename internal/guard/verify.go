package guard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/elchemista/FormRelay/internal/config"
	errorspkg "github.com/elchemista/FormRelay/internal/errors"
)

const verifyTimeout = 10 * time.Second

// Verifier checks challenge tokens against a siteverify endpoint.
type Verifier struct {
	secret   string
	endpoint string
	field    string
	client   *http.Client
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// NewVerifier builds a verifier from cfg. A nil client uses a default with a
// short timeout.
func NewVerifier(cfg config.Verification, client *http.Client) *Verifier {
	if client == nil {
		client = &http.Client{Timeout: verifyTimeout}
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = config.DefaultVerifyURL
	}
	field := cfg.TokenField
	if field == "" {
		field = config.DefaultVerifyField
	}
	return &Verifier{secret: cfg.Secret, endpoint: endpoint, field: field, client: client}
}

// TokenField is the submission field carrying the challenge token.
func (v *Verifier) TokenField() string {
	if v == nil {
		return ""
	}
	return v.field
}

// Verify posts token to the endpoint and returns VerificationFailed unless
// the provider reports success.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	if v == nil {
		return nil
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return errorspkg.New(errorspkg.VerificationFailed, "verification failed")
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errorspkg.Wrap(errorspkg.VerificationFailed, err, "verification failed")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return errorspkg.Wrap(errorspkg.VerificationFailed, err, "verification failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return errorspkg.New(errorspkg.VerificationFailed, "verification failed")
	}

	var out verifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil {
		return errorspkg.Wrap(errorspkg.VerificationFailed, err, "verification failed")
	}
	if !out.Success {
		return errorspkg.New(errorspkg.VerificationFailed, "verification failed")
	}
	return nil
}
