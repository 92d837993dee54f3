package directory

import (
	"context"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// scopedTokens hands out management-API access tokens carrying only the scope
// a single operation needs. One token source is kept per scope so a broad
// token is never reused across unrelated operations.
type scopedTokens struct {
	tokenURL     string
	clientID     string
	clientSecret string
	audience     string

	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

func newScopedTokens(tokenURL, clientID, clientSecret, audience string) *scopedTokens {
	return &scopedTokens{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		audience:     audience,
		sources:      make(map[string]oauth2.TokenSource),
	}
}

// Token returns a valid access token for exactly one scope. Refresh and
// caching are delegated to the oauth2 reuse source.
func (s *scopedTokens) Token(ctx context.Context, scope string) (string, error) {
	s.mu.Lock()
	src, ok := s.sources[scope]
	if !ok {
		cfg := &clientcredentials.Config{
			ClientID:     s.clientID,
			ClientSecret: s.clientSecret,
			TokenURL:     s.tokenURL,
			Scopes:       []string{scope},
		}
		if s.audience != "" {
			cfg.EndpointParams = map[string][]string{"audience": {s.audience}}
		}
		src = cfg.TokenSource(context.Background())
		s.sources[scope] = src
	}
	s.mu.Unlock()

	tok, err := src.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
