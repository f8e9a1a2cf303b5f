// Package auth issues and verifies account tokens.
//
// A token is "<accountId>.<expiresUnix>.<mac>" where mac is the hex keyed
// BLAKE2b-256 of the issuer's audience and the first two fields. Login tokens
// use the empty audience; a token only verifies for the audience it was
// issued for.
package auth

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pixil98/go-plaza/internal/storage"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrBadSignature   = errors.New("bad token signature")
	ErrExpiredToken   = errors.New("token expired")
)

// Verifier checks tokens. Implementations must be safe for concurrent use.
type Verifier interface {
	Verify(token string) (accountId string, err error)
}

type HMACOpt func(*HMAC)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) HMACOpt {
	return func(h *HMAC) {
		h.now = now
	}
}

// HMAC signs and verifies tokens with a shared secret.
type HMAC struct {
	key      []byte
	audience string
	now      func() time.Time
}

func NewHMAC(secret string, opts ...HMACOpt) (*HMAC, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("secret must be at least 16 bytes")
	}
	if len(secret) > blake2b.Size {
		return nil, fmt.Errorf("secret must be at most %d bytes", blake2b.Size)
	}

	h := &HMAC{
		key: []byte(secret),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Audience returns a copy of h that issues and verifies tokens for
// audience only.
func (h *HMAC) Audience(audience string) *HMAC {
	c := *h
	c.audience = audience
	return &c
}

// Issue returns a token for accountId valid for ttl.
func (h *HMAC) Issue(accountId string, ttl time.Duration) (string, error) {
	if !storage.ValidId(accountId) {
		return "", fmt.Errorf("invalid account id %q", accountId)
	}
	body := accountId + "." + strconv.FormatInt(h.now().Add(ttl).Unix(), 10)
	return body + "." + h.sign(body), nil
}

func (h *HMAC) Verify(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || !storage.ValidId(parts[0]) {
		return "", ErrMalformedToken
	}

	expires, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", ErrMalformedToken
	}

	body := parts[0] + "." + parts[1]
	if subtle.ConstantTimeCompare([]byte(h.sign(body)), []byte(parts[2])) != 1 {
		return "", ErrBadSignature
	}
	if !h.now().Before(time.Unix(expires, 0)) {
		return "", ErrExpiredToken
	}

	return parts[0], nil
}

func (h *HMAC) sign(body string) string {
	// Only errors for keys longer than blake2b.Size, rejected in NewHMAC.
	mac, _ := blake2b.New256(h.key)
	mac.Write([]byte(h.audience))
	mac.Write([]byte{0})
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

// VoiceAudience is the audience of voice grants for room.
func VoiceAudience(room string) string {
	return "voice:" + room
}

// VoiceIssuer mints voice grants bound to a room. A grant never verifies as
// a login token.
type VoiceIssuer struct {
	h *HMAC
}

func NewVoiceIssuer(h *HMAC) *VoiceIssuer {
	return &VoiceIssuer{h: h}
}

func (v *VoiceIssuer) Issue(accountId, room string, ttl time.Duration) (string, error) {
	return v.h.Audience(VoiceAudience(room)).Issue(accountId, ttl)
}
