// Package webhook verifies Polar webhook deliveries signed with the Standard
// Webhooks scheme.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"

	signatureVersion = "v1"
	defaultTolerance = 5 * time.Minute
)

// ErrInvalidSignature is wrapped by every verification failure.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Verifier checks webhook signatures against a shared secret. Polar signs with
// the secret's raw bytes as the HMAC key.
type Verifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

type Option func(*Verifier)

func WithTolerance(d time.Duration) Option {
	return func(v *Verifier) { v.tolerance = d }
}

func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

func NewVerifier(secret string, opts ...Option) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("webhook secret is not configured")
	}
	v := &Verifier{
		key:       []byte(secret),
		tolerance: defaultTolerance,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify returns the delivery id when body carries a valid signature.
func (v *Verifier) Verify(headers http.Header, body []byte) (string, error) {
	msgID := strings.TrimSpace(headers.Get(HeaderID))
	rawTimestamp := strings.TrimSpace(headers.Get(HeaderTimestamp))
	signatures := strings.TrimSpace(headers.Get(HeaderSignature))
	if msgID == "" || rawTimestamp == "" || signatures == "" {
		return "", fmt.Errorf("%w: missing required headers", ErrInvalidSignature)
	}

	unix, err := strconv.ParseInt(rawTimestamp, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: malformed timestamp", ErrInvalidSignature)
	}
	sentAt := time.Unix(unix, 0)
	now := v.now()
	if sentAt.Before(now.Add(-v.tolerance)) {
		return "", fmt.Errorf("%w: timestamp too old", ErrInvalidSignature)
	}
	if sentAt.After(now.Add(v.tolerance)) {
		return "", fmt.Errorf("%w: timestamp too new", ErrInvalidSignature)
	}

	expected := v.sign(msgID, unix, body)
	for _, candidate := range strings.Fields(signatures) {
		version, sig, ok := strings.Cut(candidate, ",")
		if !ok || version != signatureVersion {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return msgID, nil
		}
	}
	return "", fmt.Errorf("%w: no matching signature", ErrInvalidSignature)
}

// Sign produces a webhook-signature header value for body.
func (v *Verifier) Sign(msgID string, sentAt time.Time, body []byte) string {
	return signatureVersion + "," + base64.StdEncoding.EncodeToString(v.sign(msgID, sentAt.Unix(), body))
}

// SignedHeaders returns the full header set for a delivery of body.
func (v *Verifier) SignedHeaders(msgID string, sentAt time.Time, body []byte) http.Header {
	h := http.Header{}
	h.Set(HeaderID, msgID)
	h.Set(HeaderTimestamp, strconv.FormatInt(sentAt.Unix(), 10))
	h.Set(HeaderSignature, v.Sign(msgID, sentAt, body))
	return h
}

func (v *Verifier) sign(msgID string, unix int64, body []byte) []byte {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(msgID))
	mac.Write([]byte("."))
	mac.Write([]byte(strconv.FormatInt(unix, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}
