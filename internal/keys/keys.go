// Package keys owns the per-namespace signing keypairs. Private keys never
// leave this package except to the token signer; everything exported to the
// outside world is JWK-shaped public material.
package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Key lifecycle statuses. Exactly one version per namespace is active; verify
// versions remain usable for signature verification until retired.
type Status string

const (
	StatusActive  Status = "active"
	StatusVerify  Status = "verify"
	StatusRetired Status = "retired"
)

var (
	ErrNoActiveKey     = errors.New("keys: no active signing key")
	ErrUnknownKID      = errors.New("keys: kid not found")
	ErrVersionNotFound = errors.New("keys: version not found")
	ErrRetireActive    = errors.New("keys: cannot retire the active version")
)

// Version is one signing keypair generation within a namespace.
type Version struct {
	Namespace string
	Version   int
	KID       string
	Public    ed25519.PublicKey
	Private   ed25519.PrivateKey
	Status    Status
	CreatedAt time.Time
}

// Issuer returns the namespace-scoped issuer string embedding this version.
func (v Version) Issuer() string {
	return Issuer(v.Namespace, v.Version)
}

// Issuer builds a "catalyst:<namespace>:jwt:<version>" issuer string.
func Issuer(namespace string, version int) string {
	return fmt.Sprintf("catalyst:%s:jwt:%d", namespace, version)
}

// IssuerLatest is the issuer alias that always points at the active version.
func IssuerLatest(namespace string) string {
	return fmt.Sprintf("catalyst:%s:jwt:latest", namespace)
}

// IssuerPrefix is the prefix every issuer under a namespace must carry.
// Tokens whose issuer lacks this prefix were signed under another namespace.
func IssuerPrefix(namespace string) string {
	return fmt.Sprintf("catalyst:%s:jwt:", namespace)
}

// KID derives the stable key identifier for a version.
func KID(namespace string, version int) string {
	return fmt.Sprintf("%s-v%d", namespace, version)
}

// JWK is the public half of a key version in RFC 7517 shape.
type JWK struct {
	Kty string `json:"kty"` // "OKP"
	Crv string `json:"crv"` // "Ed25519"
	Kid string `json:"kid"`
	Alg string `json:"alg"` // "EdDSA"
	Use string `json:"use"` // "sig"
	X   string `json:"x"`   // base64url(public key)
}

// JWKS is a JWK set document.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// PublicJWK exports the version's public key. The private key is never
// serialized here.
func (v Version) PublicJWK() JWK {
	return JWK{
		Kty: "OKP",
		Crv: "Ed25519",
		Kid: v.KID,
		Alg: "EdDSA",
		Use: "sig",
		X:   base64.RawURLEncoding.EncodeToString(v.Public),
	}
}

func buildJWKS(versions []Version) ([]byte, error) {
	set := JWKS{Keys: make([]JWK, 0, len(versions))}
	for _, v := range versions {
		if v.Status == StatusRetired {
			continue
		}
		set.Keys = append(set.Keys, v.PublicJWK())
	}
	return json.Marshal(set)
}
