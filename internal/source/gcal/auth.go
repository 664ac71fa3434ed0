package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"github.com/nhle/studysync/internal/source"
)

// TokenStore persists OAuth tokens as opaque strings.
type TokenStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Opener builds per-owner calendar clients from OAuth tokens kept in a
// TokenStore under keyFor(ownerID).
type Opener struct {
	oauth    *oauth2.Config
	tokens   TokenStore
	keyFor   func(ownerID string) string
	endpoint string
}

// ConfigFromFile reads a Google OAuth client secrets file.
func ConfigFromFile(path string) (*oauth2.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading client secrets %s: %w", path, err)
	}
	cfg, err := google.ConfigFromJSON(b, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parsing client secrets %s: %w", path, err)
	}
	return cfg, nil
}

// NewOpener creates an Opener. endpoint may be empty.
func NewOpener(
	oauth *oauth2.Config,
	tokens TokenStore,
	keyFor func(ownerID string) string,
	endpoint string,
) *Opener {
	return &Opener{oauth: oauth, tokens: tokens, keyFor: keyFor, endpoint: endpoint}
}

// AuthURL returns the consent page URL an owner visits to grant access.
func (o *Opener) AuthURL(state string) string {
	return o.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and stores it.
func (o *Opener) Exchange(ctx context.Context, ownerID, code string) error {
	tok, err := o.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}
	return o.saveToken(ownerID, tok)
}

// Open returns a calendar client authenticated as ownerID. Refreshed
// tokens are written back to the store.
func (o *Opener) Open(ctx context.Context, ownerID string) (source.Calendar, error) {
	raw, err := o.tokens.Get(o.keyFor(ownerID))
	if err != nil {
		return nil, fmt.Errorf("loading calendar token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("decoding calendar token: %w", err)
	}

	ts := &persistingSource{
		base:    o.oauth.TokenSource(ctx, &tok),
		last:    tok.AccessToken,
		persist: func(t *oauth2.Token) error { return o.saveToken(ownerID, t) },
	}
	return NewClient(ctx, oauth2.NewClient(ctx, ts), o.endpoint)
}

func (o *Opener) saveToken(ownerID string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding calendar token: %w", err)
	}
	if err := o.tokens.Set(o.keyFor(ownerID), string(data)); err != nil {
		return fmt.Errorf("saving calendar token: %w", err)
	}
	return nil
}

// persistingSource saves the token whenever the underlying source hands
// out a new access token.
type persistingSource struct {
	mu      sync.Mutex
	base    oauth2.TokenSource
	last    string
	persist func(*oauth2.Token) error
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := p.persist(tok); err != nil {
			return nil, err
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}
