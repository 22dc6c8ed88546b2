package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/geocoder89/visionhub/internal/observability"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultJWKSCacheTTL = 10 * time.Minute
	minJWKSRefreshGap   = 30 * time.Second
)

type JWKSConfig struct {
	URL      string
	Issuer   string
	Audience string
	CacheTTL time.Duration
}

// JWKSVerifier checks RS256 ID tokens against the provider's published keys.
type JWKSVerifier struct {
	cfg  JWKSConfig
	jwks *jwksCache
}

func NewJWKSVerifier(cfg JWKSConfig, client *http.Client, log *slog.Logger, prom *observability.Prom) (*JWKSVerifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("jwks url is required")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("issuer and audience are required")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultJWKSCacheTTL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}

	return &JWKSVerifier{
		cfg: cfg,
		jwks: &jwksCache{
			url:        cfg.URL,
			keys:       make(map[string]*rsa.PublicKey),
			ttl:        cfg.CacheTTL,
			httpClient: client,
			log:        log,
			prom:       prom,
		},
	}, nil
}

func (v *JWKSVerifier) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("missing kid in token header")
		}
		return v.jwks.getKey(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	return claims, nil
}

type jwksCache struct {
	url        string
	mu         sync.RWMutex
	keys       map[string]*rsa.PublicKey // kid -> public key
	lastFetch  time.Time
	ttl        time.Duration
	httpClient *http.Client
	log        *slog.Logger
	prom       *observability.Prom
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

func (c *jwksCache) getKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	stale := time.Since(c.lastFetch) > c.ttl
	c.mu.RUnlock()

	if ok && !stale {
		return key, nil
	}

	if err := c.refresh(ctx, kid); err != nil {
		// keep serving a key we already trust while the endpoint is down
		if ok {
			c.log.WarnContext(ctx, "jwks refresh failed, using cached key", "kid", kid, "err", err)
			return key, nil
		}
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}

	c.mu.RLock()
	key, ok = c.keys[kid]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("key %s not found in jwks", kid)
	}

	return key, nil
}

func (c *jwksCache) refresh(ctx context.Context, kid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// another goroutine may have refreshed while we waited for the lock
	since := time.Since(c.lastFetch)
	_, known := c.keys[kid]
	if known && since < c.ttl {
		return nil
	}
	// unknown kids must not turn every bad token into a fetch
	if !known && len(c.keys) > 0 && since < minJWKSRefreshGap {
		return nil
	}

	var set jwkSet
	err := c.prom.ObserveUpstream("jwks", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
		}

		return json.NewDecoder(resp.Body).Decode(&set)
	})
	if err != nil {
		return err
	}

	newKeys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}

		pub, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			c.log.WarnContext(ctx, "skipping unparsable jwk", "kid", k.Kid, "err", err)
			continue
		}
		newKeys[k.Kid] = pub
	}

	c.keys = newKeys
	c.lastFetch = time.Now()

	return nil
}
