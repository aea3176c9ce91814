package google

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"pushrelay/config"
	"pushrelay/internal/domain/service"
)

const (
	grantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// cacheSafetyMargin keeps a cached token from being used right at the
	// edge of its expiry window.
	cacheSafetyMargin = time.Minute
)

// accessTokenSource exchanges a fresh signed assertion for a bearer token and
// caches the result per process. Exactly one exchange attempt per refresh;
// a non-2xx response is propagated, not retried.
type accessTokenSource struct {
	cred   *config.GoogleServiceAccount
	scope  string
	signer service.AssertionSigner
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	cached *service.AccessToken
}

// NewAccessTokenSource is the constructor for accessTokenSource. The
// credential is loaded once at startup and never mutated.
func NewAccessTokenSource(cred *config.GoogleServiceAccount, scope string, callTimeout time.Duration, signer service.AssertionSigner, logger *slog.Logger) service.AccessTokenSource {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}

	return &accessTokenSource{
		cred:   cred,
		scope:  scope,
		signer: signer,
		client: &http.Client{Timeout: callTimeout},
		logger: logger,
		now:    time.Now,
	}
}

// Token returns a still-valid cached token or performs one exchange.
func (s *accessTokenSource) Token(ctx context.Context) (*service.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached.ValidAt(s.now(), cacheSafetyMargin) {
		return s.cached, nil
	}

	token, err := s.exchange(ctx)
	if err != nil {
		return nil, err
	}
	s.cached = token

	return token, nil
}

// exchange signs a fresh assertion and POSTs it to the token endpoint as
// form-encoded grant_type + assertion.
func (s *accessTokenSource) exchange(ctx context.Context) (*service.AccessToken, error) {
	issuedAt := s.now()
	claims := buildAssertionClaims(s.cred, s.scope, issuedAt)

	assertion, err := s.signer.Sign(claims, s.cred.PrivateKey)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"grant_type": {grantTypeJWTBearer},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cred.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call token endpoint")
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)

		return nil, errors.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, errors.Wrap(err, "decode token response")
	}
	if tokenResp.AccessToken == "" {
		return nil, errors.New("token endpoint returned no access_token")
	}

	s.logger.Debug("Access token obtained",
		slog.Int64("expires_in", tokenResp.ExpiresIn),
	)

	return &service.AccessToken{
		Value:      tokenResp.AccessToken,
		ObtainedAt: issuedAt,
		TTL:        time.Duration(tokenResp.ExpiresIn) * time.Second,
	}, nil
}
