package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/framelane/api/internal/platform/httpx"
)

const (
	defaultWebhookSignatureHeader = "X-Webhook-Signature"
	defaultWebhookTimestampHeader = "X-Webhook-Timestamp"

	defaultWebhookClockSkew = 5 * time.Minute
	maxWebhookBodySize      = 1 << 20
)

// WebhookVerifier checks that fulfilment status callbacks were signed with
// the provider's shared secret. The signature is an HMAC-SHA256 over
// "<timestamp>.<body>", encoded as hex or base64.
type WebhookVerifier struct {
	secret []byte
	now    func() time.Time

	signatureHeader string
	timestampHeader string
	clockSkew       time.Duration
}

// WebhookOption customises the verifier.
type WebhookOption func(*WebhookVerifier)

// WithWebhookClock injects a custom clock, primarily for tests.
func WithWebhookClock(now func() time.Time) WebhookOption {
	return func(v *WebhookVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithWebhookHeaders overrides the signature and timestamp header names.
func WithWebhookHeaders(signature, timestamp string) WebhookOption {
	return func(v *WebhookVerifier) {
		if signature != "" {
			v.signatureHeader = signature
		}
		if timestamp != "" {
			v.timestampHeader = timestamp
		}
	}
}

// WithWebhookClockSkew adjusts the accepted timestamp skew.
func WithWebhookClockSkew(d time.Duration) WebhookOption {
	return func(v *WebhookVerifier) {
		if d > 0 {
			v.clockSkew = d
		}
	}
}

// NewWebhookVerifier constructs a verifier for the given shared secret.
func NewWebhookVerifier(secret string, opts ...WebhookOption) (*WebhookVerifier, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, errors.New("auth: webhook secret is required")
	}
	v := &WebhookVerifier{
		secret:          []byte(trimmed),
		now:             time.Now,
		signatureHeader: defaultWebhookSignatureHeader,
		timestampHeader: defaultWebhookTimestampHeader,
		clockSkew:       defaultWebhookClockSkew,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v, nil
}

// Require enforces a valid signature before the wrapped handler runs. The
// request body is restored so the handler can read it again.
func (v *WebhookVerifier) Require() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signatureValue := strings.TrimSpace(r.Header.Get(v.signatureHeader))
			if signatureValue == "" {
				httpx.WriteError(r.Context(), w, httpx.NewError("signature_missing", "signature header missing", http.StatusUnauthorized))
				return
			}

			timestampValue := strings.TrimSpace(r.Header.Get(v.timestampHeader))
			timestamp, err := parseWebhookTimestamp(timestampValue)
			if err != nil {
				httpx.WriteError(r.Context(), w, httpx.NewError("timestamp_invalid", "signature timestamp missing or invalid", http.StatusUnauthorized))
				return
			}
			if skew := v.now().Sub(timestamp); skew > v.clockSkew || skew < -v.clockSkew {
				httpx.WriteError(r.Context(), w, httpx.NewError("timestamp_skew", "signature timestamp outside allowed window", http.StatusUnauthorized))
				return
			}

			body, err := readAndRestoreBody(r)
			if err != nil {
				httpx.WriteError(r.Context(), w, httpx.NewError("invalid_body", "unable to read body for signature verification", http.StatusBadRequest))
				return
			}

			signature, err := decodeWebhookSignature(signatureValue)
			if err != nil {
				httpx.WriteError(r.Context(), w, httpx.NewError("signature_invalid", "signature encoding invalid", http.StatusUnauthorized))
				return
			}

			mac := hmac.New(sha256.New, v.secret)
			mac.Write([]byte(timestampValue))
			mac.Write([]byte("."))
			mac.Write(body)
			if !hmac.Equal(signature, mac.Sum(nil)) {
				httpx.WriteError(r.Context(), w, httpx.NewError("signature_mismatch", "signature verification failed", http.StatusUnauthorized))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SignWebhookRequest computes the signature for a payload, used by tests and
// local tooling to produce valid callbacks.
func SignWebhookRequest(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(strings.TrimSpace(secret)))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func decodeWebhookSignature(value string) ([]byte, error) {
	if decoded, err := hex.DecodeString(value); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return nil, errors.New("auth: signature must be hex or base64 encoded")
}

func parseWebhookTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("auth: timestamp empty")
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, errors.New("auth: timestamp must be RFC3339")
}
