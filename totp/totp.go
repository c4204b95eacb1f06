package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/finsig/transaction-approval-backend/interfaces"
)

const (
	// secretBytes is the entropy of a generated secret. 20 bytes is the
	// 160-bit minimum recommended by RFC 4226.
	secretBytes = 20

	// DefaultPeriod is the TOTP time step.
	DefaultPeriod = 30 * time.Second

	// DefaultSkew is the number of time steps accepted on either side of
	// the submission time.
	DefaultSkew = 2

	// DefaultDigits is the code length.
	DefaultDigits = 6

	// DefaultIssuer appears in provisioning URIs and authenticator apps.
	DefaultIssuer = "MultiSigner"
)

// base32NoPadding matches the encoding authenticator apps expect.
var base32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Engine generates enrollment secrets and verifies submitted codes. The
// zero value is not usable; create one with New.
type Engine struct {
	// Issuer is embedded in provisioning URIs.
	Issuer string

	// Period is the time step duration.
	Period time.Duration

	// Skew is the number of steps of clock drift tolerated on either side.
	// The drift window is a usability/security tradeoff owned here, not in
	// callers.
	Skew int

	// Digits is the code length.
	Digits int
}

// New returns an Engine with the default 6-digit, 30-second, two-step-skew
// configuration.
func New() *Engine {
	return &Engine{
		Issuer: DefaultIssuer,
		Period: DefaultPeriod,
		Skew:   DefaultSkew,
		Digits: DefaultDigits,
	}
}

// NewSecret generates a fresh base32-encoded secret with 160 bits of
// entropy. It has no side effects; the caller persists the secret.
func (e *Engine) NewSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate TOTP secret: %w", err)
	}
	return base32NoPadding.EncodeToString(raw), nil
}

// ProvisioningURI formats an otpauth:// URI for authenticator-app scanning,
// embedding the account label and issuer.
func (e *Engine) ProvisioningURI(secret, account string) string {
	label := url.PathEscape(e.Issuer + ":" + account)
	params := url.Values{}
	params.Set("secret", secret)
	params.Set("issuer", e.Issuer)
	params.Set("algorithm", "SHA1")
	params.Set("digits", fmt.Sprintf("%d", e.Digits))
	params.Set("period", fmt.Sprintf("%d", int(e.Period.Seconds())))
	return "otpauth://totp/" + label + "?" + params.Encode()
}

// GenerateCode computes the code for the given secret at the given time.
// It is used during enrollment confirmation and by tests.
func (e *Engine) GenerateCode(secret string, at time.Time) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", interfaces.ErrInvalidCode
	}
	return e.hotp(key, e.counter(at)), nil
}

// Verify checks a submitted code against the secret at the given time,
// accepting codes within the configured skew window. Every failure mode,
// including a malformed code or an undecodable secret, is reported as
// interfaces.ErrInvalidCode so callers cannot distinguish them.
func (e *Engine) Verify(secret, code string, at time.Time) error {
	code = strings.TrimSpace(code)
	if len(code) != e.Digits || !allDigits(code) {
		return interfaces.ErrInvalidCode
	}

	key, err := decodeSecret(secret)
	if err != nil {
		return interfaces.ErrInvalidCode
	}

	base := e.counter(at)
	matched := false
	for offset := -e.Skew; offset <= e.Skew; offset++ {
		counter := base + int64(offset)
		if counter < 0 {
			continue
		}
		candidate := e.hotp(key, counter)
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(code)) == 1 {
			matched = true
		}
	}

	if !matched {
		return interfaces.ErrInvalidCode
	}
	return nil
}

// counter returns the time-step counter for the given time.
func (e *Engine) counter(at time.Time) int64 {
	return at.Unix() / int64(e.Period.Seconds())
}

// hotp computes the RFC 4226 code for a counter value.
func (e *Engine) hotp(key []byte, counter int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	// Dynamic truncation per RFC 4226 section 5.3.
	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	mod := uint32(1)
	for i := 0; i < e.Digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", e.Digits, value%mod)
}

// decodeSecret accepts base32 secrets with or without padding, in either
// case, with incidental whitespace removed.
func decodeSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
	normalized = strings.TrimRight(normalized, "=")
	key, err := base32NoPadding.DecodeString(normalized)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("empty secret")
	}
	return key, nil
}

// allDigits reports whether the string consists only of ASCII digits.
func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
