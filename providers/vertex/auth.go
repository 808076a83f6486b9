// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package vertex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTokenURI is the Google OAuth token endpoint used when the
	// service account does not name one.
	DefaultTokenURI = "https://oauth2.googleapis.com/token"

	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"
	jwtBearerGrant     = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// tokenLifetime is the assertion lifetime requested per exchange.
	tokenLifetime = time.Hour

	// refreshMargin forces a refresh before the token actually expires
	// so an in-flight request never carries a stale bearer.
	refreshMargin = time.Minute
)

// tokenSource exchanges a service-account key for short-lived bearer
// tokens and caches the result until close to expiry. Safe for
// concurrent use.
type tokenSource struct {
	clientEmail string
	privateKey  string
	tokenURI    string
	client      HTTPClient
	now         func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func newTokenSource(clientEmail, privateKey, tokenURI string, client HTTPClient) *tokenSource {
	if tokenURI == "" {
		tokenURI = DefaultTokenURI
	}
	return &tokenSource{
		clientEmail: clientEmail,
		privateKey:  privateKey,
		tokenURI:    tokenURI,
		client:      client,
		now:         time.Now,
	}
}

// Token returns a valid bearer token, exchanging a fresh assertion
// when the cached one is missing or near expiry.
func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && ts.now().Add(refreshMargin).Before(ts.expiry) {
		return ts.token, nil
	}

	token, expiresIn, err := ts.exchange(ctx)
	if err != nil {
		return "", err
	}
	ts.token = token
	ts.expiry = ts.now().Add(time.Duration(expiresIn) * time.Second)
	return token, nil
}

// exchange signs a JWT assertion with the service-account key and
// trades it for an access token at the token endpoint.
func (ts *tokenSource) exchange(ctx context.Context) (string, int, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(ts.privateKey))
	if err != nil {
		return "", 0, fmt.Errorf("invalid service account private key: %w", err)
	}

	now := ts.now()
	claims := jwt.MapClaims{
		"iss":   ts.clientEmail,
		"scope": cloudPlatformScope,
		"aud":   ts.tokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenLifetime).Unix(),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURI,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token exchange failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("token exchange failed (status %d): %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", 0, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", 0, fmt.Errorf("token endpoint returned no access token")
	}
	return tokenResp.AccessToken, tokenResp.ExpiresIn, nil
}
