// Package oauthflow implements the minimal OAuth authorization-code exchange
// an AuthProvider needs (spec.md §1, §8 scenario #4): build an authorize URL,
// run a local HTTP callback server, verify the returned state, and exchange
// the code for a token. Full browser-driven polish is explicitly out of
// scope (spec.md §1 Out of scope). It is a standalone provider: no McpClient
// or Runtime code in this module calls it, and CallTool has no OAuth retry.
package oauthflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/mcporter/mcporter/pkg/mcporter"
)

// Provider is the AuthProvider abstraction spec.md §1 names: it produces an
// authorize URL and waits for the resulting authorization code.
type Provider struct {
	config   oauth2.Config
	redirect string

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	state    string
	resultCh chan authResult
}

type authResult struct {
	code string
	err  error
}

// New builds a Provider. redirectURL must be reachable from the browser
// completing the flow and must match the loopback address the callback
// server will bind.
func New(clientID, clientSecret, authURL, tokenURL, redirectURL string, scopes []string) *Provider {
	return &Provider{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
			RedirectURL: redirectURL,
			Scopes:      scopes,
		},
		redirect: redirectURL,
	}
}

// StartAuthorization binds the local callback listener, generates a random
// state, and returns the URL the user should open in a browser. Call
// WaitForAuthorizationCode afterward to block for the result.
func (p *Provider) StartAuthorization(ctx context.Context, listenAddr string) (authorizeURL string, err error) {
	state, err := randomState()
	if err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return "", fmt.Errorf("bind oauth callback listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", p.handleCallback)

	p.mu.Lock()
	p.listener = ln
	p.state = state
	p.resultCh = make(chan authResult, 1)
	p.server = &http.Server{Handler: mux}
	p.mu.Unlock()

	go func() {
		_ = p.server.Serve(ln)
	}()

	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// handleCallback verifies state and relays the code (or error) to
// WaitForAuthorizationCode. A state mismatch is rejected with HTTP 400 and
// never unblocks the waiter with a false positive.
func (p *Provider) handleCallback(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	wantState := p.state
	resultCh := p.resultCh
	p.mu.Unlock()

	query := r.URL.Query()
	if errParam := query.Get("error"); errParam != "" {
		http.Error(w, "authorization denied", http.StatusBadRequest)
		p.deliver(resultCh, authResult{err: fmt.Errorf("authorization denied: %s", errParam)})
		return
	}

	gotState := query.Get("state")
	if gotState == "" || gotState != wantState {
		http.Error(w, "state mismatch", http.StatusBadRequest)
		p.deliver(resultCh, authResult{err: fmt.Errorf("%w: got %q want %q", mcporter.ErrAuthStateMismatch, gotState, wantState)})
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		p.deliver(resultCh, authResult{err: errors.New("oauth callback: missing code")})
		return
	}

	fmt.Fprintln(w, "Authorization complete. You can close this window.")
	p.deliver(resultCh, authResult{code: code})
}

func (p *Provider) deliver(ch chan authResult, res authResult) {
	select {
	case ch <- res:
	default:
	}
}

// WaitForAuthorizationCode blocks until the callback server receives a
// request, or ctx is done, then shuts the callback server down.
func (p *Provider) WaitForAuthorizationCode(ctx context.Context) (string, error) {
	p.mu.Lock()
	resultCh := p.resultCh
	p.mu.Unlock()
	if resultCh == nil {
		return "", errors.New("oauth callback: StartAuthorization was not called")
	}

	defer p.shutdown()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return "", res.err
		}
		return res.code, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *Provider) shutdown() {
	p.mu.Lock()
	srv := p.server
	p.mu.Unlock()
	if srv == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// Exchange trades an authorization code for a token.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.config.Exchange(ctx, code)
}

// TokenSource wraps a cached token in an auto-refreshing oauth2.TokenSource.
func (p *Provider) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return p.config.TokenSource(ctx, token)
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
