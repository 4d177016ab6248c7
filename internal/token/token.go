// Package token issues and validates the short-lived signed tokens that
// mediate all cross-service access. User and system tokens share a wire
// format but follow deliberately different authorization rules.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// System token duration bounds, in seconds.
const (
	DefaultSystemDuration = 300 * time.Second
	MaxSystemDuration     = 3600 * time.Second
)

const (
	// MaxChannelIDs bounds the distinct channel ids one token may carry.
	MaxChannelIDs = 50
	// MaxChannelIDLen bounds each channel id.
	MaxChannelIDLen = 255
)

var (
	// ErrNotAuthorized rejects system-token callers outside the allow-list.
	// Wrapped as "<service> not authorized".
	ErrNotAuthorized = errors.New("not authorized")

	// ErrChannelRequired is returned when no channel id was supplied.
	ErrChannelRequired = errors.New("At least one channelId is required")

	// ErrDurationExceedsMaximum covers every duration violation: negative,
	// zero, and above the cap all produce this one message.
	ErrDurationExceedsMaximum = errors.New("duration exceeds maximum")

	ErrChannelTooLong   = errors.New("channelId exceeds maximum length")
	ErrTooManyChannels  = errors.New("too many channelIds")
	ErrEntityRequired   = errors.New("entity is required")
	ErrAudienceRequired = errors.New("audience is required")
)

// Claims is the token payload: registered claims plus the channel-id list.
type Claims struct {
	Claims []string `json:"claims"`
	jwt.RegisteredClaims
}

// SignedToken is the result of a signing call.
type SignedToken struct {
	Token     string    `json:"token"`
	JTI       string    `json:"jti"`
	Issuer    string    `json:"issuer"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UserTokenRequest signs a token for a human principal. Claims are assumed
// pre-computed by the caller from the channel-sharing permission service; no
// further authorization happens here.
type UserTokenRequest struct {
	Entity       string        `json:"entity"`
	Organization string        `json:"organization"`
	Claims       []string      `json:"claims"`
	Audience     string        `json:"audience"`
	ExpiresIn    time.Duration `json:"expiresIn,omitempty"` // 0 means the configured default
}

// SystemTokenRequest signs a token for an allow-listed service principal.
// ChannelIDs wins entirely over ChannelID when both are set. Duration is in
// seconds; nil means the 300s default.
type SystemTokenRequest struct {
	CallingService string   `json:"callingService"`
	ChannelID      string   `json:"channelId,omitempty"`
	ChannelIDs     []string `json:"channelIds,omitempty"`
	Purpose        string   `json:"purpose,omitempty"`
	Duration       *int64   `json:"duration,omitempty"`
}
