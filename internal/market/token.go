package market

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/raine/resale-appraiser/internal/common"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// tokenSource caches a client-credentials bearer token until it expires or
// is invalidated after a 401.
type tokenSource struct {
	mu         sync.Mutex
	cfg        clientcredentials.Config
	httpClient *http.Client
	token      *oauth2.Token
	gate       *RateGate
}

func newTokenSource(tokenURL, clientID, clientSecret string, scopes []string, httpClient *http.Client, gate *RateGate) *tokenSource {
	return &tokenSource{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       scopes,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		httpClient: httpClient,
		gate:       gate,
	}
}

// Token returns a valid access token, fetching a new one when the cached one
// is missing or expired. Fetches are paced by the same gate as searches.
// Fetch failures wrap common.ErrAuthFailed.
func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token.Valid() {
		return t.token.AccessToken, nil
	}

	if t.gate != nil {
		if err := t.gate.Wait(ctx); err != nil {
			return "", err
		}
	}
	if t.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, t.httpClient)
	}
	tok, err := t.cfg.Token(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", common.ErrAuthFailed, err)
	}
	t.token = tok

	log.Debug().Time("expiry", tok.Expiry).Msg("marketplace token fetched")
	return tok.AccessToken, nil
}

// Invalidate drops the cached token so the next call fetches a new one.
func (t *tokenSource) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = nil
}
