// Package google verifies Google OAuth access tokens. Google access tokens
// are opaque, so verification is a tokeninfo introspection (audience, expiry)
// followed by a userinfo round-trip for profile claims. Successful
// introspections are cached in redis under a hash of the token, bounded by
// the token's own remaining lifetime.
package google

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/config"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/logx"
)

// Verifier validates Google access tokens.
type Verifier struct {
	cfg  config.GoogleConfig
	http *http.Client
	rdb  *redis.Client
}

// NewVerifier builds a verifier. rdb may be nil, which disables caching.
func NewVerifier(cfg config.GoogleConfig, httpClient *http.Client, rdb *redis.Client) *Verifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Verifier{cfg: cfg, http: httpClient, rdb: rdb}
}

type tokenInfo struct {
	Aud           string `json:"aud"`
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	ExpiresIn     string `json:"expires_in"`
}

type userInfo struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "google:introspect:" + hex.EncodeToString(sum[:])
}

// Verify introspects the access token and returns the normalized claims.
// Google has no tenant concept; the subject id doubles as the tenant id.
func (v *Verifier) Verify(ctx context.Context, token string) (*identity.NormalizedClaims, error) {
	if !v.cfg.Enabled() {
		return nil, identity.ErrMisconfiguredProvider().WithDetail("provider", identity.ProviderGoogle.String())
	}

	if claims := v.cached(ctx, token); claims != nil {
		return claims, nil
	}

	info, ttl, err := v.introspect(ctx, token)
	if err != nil {
		return nil, err
	}

	profile, err := v.fetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}

	claims := &identity.NormalizedClaims{
		SubjectID:     info.Sub,
		TenantID:      kernel.NewTenantID(info.Sub),
		Email:         profile.Email,
		DisplayName:   profile.Name,
		ProviderRoles: []string{},
		Provider:      identity.ProviderGoogle,
	}
	if claims.Email == "" {
		claims.Email = info.Email
	}

	v.cache(ctx, token, claims, ttl)
	return claims, nil
}

func (v *Verifier) introspect(ctx context.Context, token string) (*tokenInfo, time.Duration, error) {
	endpoint := v.cfg.TokenInfoURL + "?access_token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, identity.ErrProviderUnavailable().WithCause(err)
	}

	resp, err := v.http.Do(req)
	if err != nil {
		return nil, 0, identity.ErrProviderUnavailable().WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, identity.ErrProviderUnavailable().WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, 0, identity.ErrTokenInvalid().WithDetail("tokeninfo_status", resp.StatusCode)
	}

	var info tokenInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, 0, identity.ErrTokenInvalid().WithCause(err)
	}

	if info.Aud != v.cfg.ClientID {
		return nil, 0, identity.ErrTokenInvalid().WithDetail("reason", "audience mismatch")
	}

	expiresIn, err := strconv.Atoi(info.ExpiresIn)
	if err != nil || expiresIn <= 0 {
		return nil, 0, identity.ErrTokenExpired()
	}

	ttl := time.Duration(expiresIn) * time.Second
	if v.cfg.IntrospectionTTL > 0 && ttl > v.cfg.IntrospectionTTL {
		ttl = v.cfg.IntrospectionTTL
	}
	return &info, ttl, nil
}

func (v *Verifier) fetchProfile(ctx context.Context, token string) (*userInfo, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, v.http), src)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, identity.ErrProviderUnavailable().WithCause(err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, identity.ErrProviderUnavailable().WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, identity.ErrTokenInvalid().WithDetail("userinfo_status", resp.StatusCode)
	}

	var profile userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&profile); err != nil {
		return nil, identity.ErrTokenInvalid().WithCause(err)
	}
	if profile.Sub == "" {
		return nil, identity.ErrTokenInvalid().WithDetail("reason", "userinfo missing subject")
	}
	return &profile, nil
}

func (v *Verifier) cached(ctx context.Context, token string) *identity.NormalizedClaims {
	if v.rdb == nil {
		return nil
	}
	raw, err := v.rdb.Get(ctx, cacheKey(token)).Bytes()
	if err != nil {
		return nil
	}
	var claims identity.NormalizedClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil
	}
	return &claims
}

func (v *Verifier) cache(ctx context.Context, token string, claims *identity.NormalizedClaims, ttl time.Duration) {
	if v.rdb == nil || ttl <= 0 {
		return
	}
	raw, err := json.Marshal(claims)
	if err != nil {
		return
	}
	// Cache writes are best effort.
	if err := v.rdb.Set(ctx, cacheKey(token), raw, ttl).Err(); err != nil {
		logx.WithError(err).Debug("google introspection cache write failed")
	}
}
