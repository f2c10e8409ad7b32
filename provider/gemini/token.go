package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenEndpoint = "https://oauth2.googleapis.com/token"
	defaultScope  = "https://www.googleapis.com/auth/cloud-platform"

	// refresh a little before the token actually expires
	expirySlack = 2 * time.Minute
)

// TokenSource supplies bearer tokens for the Vertex endpoint.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// JWTTokenSource exchanges an RS256 service-account assertion for an
// access token and caches it until shortly before expiry.
type JWTTokenSource struct {
	clientEmail string
	privateKey  string // PEM-encoded PKCS#8 RSA key
	scopes      []string
	httpClient  *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

var _ TokenSource = (*JWTTokenSource)(nil)

// NewJWTTokenSource creates a token source for a service account.
func NewJWTTokenSource(clientEmail, privateKeyPEM string, scopes ...string) *JWTTokenSource {
	if len(scopes) == 0 {
		scopes = []string{defaultScope}
	}
	return &JWTTokenSource{
		clientEmail: clientEmail,
		privateKey:  privateKeyPEM,
		scopes:      scopes,
		httpClient:  http.DefaultClient,
	}
}

// Token returns a cached access token, refreshing it when needed.
func (s *JWTTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.expires.Add(-expirySlack)) {
		return s.token, nil
	}

	token, expires, err := s.exchange(ctx)
	if err != nil {
		return "", err
	}
	s.token = token
	s.expires = expires
	return token, nil
}

func (s *JWTTokenSource) exchange(ctx context.Context) (string, time.Time, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(s.privateKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("gemini: parse private key: %w", err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   s.clientEmail,
		"scope": strings.Join(s.scopes, " "),
		"aud":   tokenEndpoint,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("gemini: sign assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("gemini: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("gemini: token exchange: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", time.Time{}, fmt.Errorf("gemini: decode token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || body.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("gemini: token exchange failed with status %d", resp.StatusCode)
	}

	return body.AccessToken, time.Now().Add(time.Duration(body.ExpiresIn) * time.Second), nil
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
