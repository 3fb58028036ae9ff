// Package dispatch routes an inbound bearer credential to the credential
// verifier that can validate it. Routing looks only at the token's structure
// (JWT segment count) and its unverified issuer claim; no claim read here is
// ever trusted for anything beyond selecting a verifier.
package dispatch

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/logx"
)

// Entry registers one verifier with its routing signals.
type Entry struct {
	Provider identity.Provider
	Verifier identity.CredentialVerifier

	// IssuerPrefixes route a JWT directly to this verifier when its
	// unverified iss claim starts with one of them; among overlapping
	// prefixes the longest match wins. A direct match disables fallback: a
	// token that claims an issuer and fails its verifier is rejected, not
	// retried elsewhere.
	IssuerPrefixes []string

	// AcceptsOpaque marks providers that can validate non-JWT bearer tokens
	// (Google access tokens).
	AcceptsOpaque bool
}

// Dispatcher selects exactly one verifier per credential, falling back
// through the registration order only when the token's shape is ambiguous.
type Dispatcher struct {
	entries []Entry
}

// New builds a dispatcher. Registration order is the fallback priority for
// ambiguous tokens: internal providers first, then the external ones.
func New(entries ...Entry) *Dispatcher {
	return &Dispatcher{entries: entries}
}

// Verify routes the token and runs the selected verifier.
func (d *Dispatcher) Verify(ctx context.Context, token string) (*identity.NormalizedClaims, error) {
	if token == "" {
		return nil, identity.ErrUnauthenticated()
	}

	isJWT, issuer := sniff(token)

	if isJWT && issuer != "" {
		if e := d.matchIssuer(issuer); e != nil {
			return e.Verifier.Verify(ctx, token)
		}
	}

	// Ambiguous shape: try candidates in priority order. JWTs may be tried
	// by every verifier; opaque tokens only by providers that accept them.
	var lastErr error
	tried := 0
	for _, e := range d.entries {
		if !isJWT && !e.AcceptsOpaque {
			continue
		}
		tried++
		claims, err := e.Verifier.Verify(ctx, token)
		if err == nil {
			return claims, nil
		}
		lastErr = err
		logx.WithFields(logx.Fields{
			"provider": e.Provider,
		}).Debug("credential rejected, trying next verifier")
	}

	if tried == 0 || lastErr == nil {
		return nil, identity.ErrAuthenticationFailed()
	}
	return nil, identity.ErrAuthenticationFailed().WithCause(lastErr)
}

// VerifyWith runs a specific provider's verifier, for the entry points where
// the client names the provider explicitly in the request body.
func (d *Dispatcher) VerifyWith(ctx context.Context, provider identity.Provider, token string) (*identity.NormalizedClaims, error) {
	for _, e := range d.entries {
		if e.Provider == provider {
			return e.Verifier.Verify(ctx, token)
		}
	}
	return nil, identity.ErrMisconfiguredProvider().WithDetail("provider", provider.String())
}

// matchIssuer finds the entry whose longest registered prefix matches the
// issuer. Longest wins, so overlapping internal issuers ("echopad",
// "echopad-magic") route to the more specific provider regardless of
// registration order.
func (d *Dispatcher) matchIssuer(issuer string) *Entry {
	var best *Entry
	bestLen := -1
	for i := range d.entries {
		for _, prefix := range d.entries[i].IssuerPrefixes {
			if strings.HasPrefix(issuer, prefix) && len(prefix) > bestLen {
				best = &d.entries[i]
				bestLen = len(prefix)
			}
		}
	}
	return best
}

// sniff classifies the token structurally. It reports whether the token
// parses as a JWT and, if so, its unverified issuer.
func sniff(token string) (isJWT bool, issuer string) {
	if strings.Count(token, ".") != 2 {
		return false, ""
	}

	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return false, ""
	}
	return true, claims.Issuer
}
