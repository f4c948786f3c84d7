// Package auth runs the Google OAuth flow and keeps the resulting token in
// the key-value store so later runs reuse and refresh it.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/beekhof/tripcal/internal/kv"
	"github.com/beekhof/tripcal/internal/logger"
)

const (
	callbackAddr  = "127.0.0.1:8080"
	authTimeout   = 5 * time.Minute
	calendarScope = "https://www.googleapis.com/auth/calendar"
)

// TokenStore saves and loads OAuth tokens. LoadToken returns nil, nil when
// no token was saved yet.
type TokenStore interface {
	SaveToken(ctx context.Context, token *oauth2.Token) error
	LoadToken(ctx context.Context) (*oauth2.Token, error)
}

// KVTokenStore keeps a token as JSON under one key of a kv.Store.
type KVTokenStore struct {
	kv  kv.Store
	key string
}

// NewKVTokenStore creates a token store writing to key.
func NewKVTokenStore(store kv.Store, key string) *KVTokenStore {
	return &KVTokenStore{kv: store, key: key}
}

// SaveToken writes token under the store key.
func (s *KVTokenStore) SaveToken(ctx context.Context, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// LoadToken reads the token, returning nil, nil when none was saved.
func (s *KVTokenStore) LoadToken(ctx context.Context) (*oauth2.Token, error) {
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &token, nil
}

// GoogleConfig returns the OAuth configuration for the Calendar API.
// The redirect URL is replaced during the interactive flow.
func GoogleConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  "http://" + callbackAddr,
		Scopes:       []string{calendarScope, calendarScope + ".events"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}
}

// autoSaveTokenSource wraps an oauth2.TokenSource and saves refreshed tokens.
type autoSaveTokenSource struct {
	ctx        context.Context
	source     oauth2.TokenSource
	tokenStore TokenStore
	lastToken  *oauth2.Token
	log        *logger.Logger
}

// Token implements oauth2.TokenSource.
func (a *autoSaveTokenSource) Token() (*oauth2.Token, error) {
	token, err := a.source.Token()
	if err != nil {
		return nil, err
	}

	if a.lastToken == nil || a.lastToken.AccessToken != token.AccessToken {
		if err := a.tokenStore.SaveToken(a.ctx, token); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}
		a.log.Debug("saved refreshed token", "expiry", token.Expiry)
		a.lastToken = token
	}

	return token, nil
}

// Authenticator produces authenticated HTTP clients, running the interactive
// flow when the token store is empty.
type Authenticator struct {
	config *oauth2.Config
	store  TokenStore
	prompt io.Writer
	log    *logger.Logger
}

// NewAuthenticator creates an Authenticator. Instructions for the user are
// written to prompt.
func NewAuthenticator(config *oauth2.Config, store TokenStore, prompt io.Writer, log *logger.Logger) *Authenticator {
	if prompt == nil {
		prompt = io.Discard
	}
	return &Authenticator{
		config: config,
		store:  store,
		prompt: prompt,
		log:    logger.OrNop(log).Named("auth"),
	}
}

// Client returns an HTTP client authorized for the Calendar API. Without a
// saved token it starts a local callback server and waits for the user to
// complete the consent page.
func (a *Authenticator) Client(ctx context.Context) (*http.Client, error) {
	token, err := a.store.LoadToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	if token == nil {
		token, err = a.browserFlow(ctx)
		if err != nil {
			return nil, err
		}
	}

	return a.client(ctx, token), nil
}

// ClientWithReader is Client for headless use: the authorization code is
// read from r instead of a local callback server.
func (a *Authenticator) ClientWithReader(ctx context.Context, r io.Reader) (*http.Client, error) {
	token, err := a.store.LoadToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	if token == nil {
		authURL := a.config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
		fmt.Fprintln(a.prompt, "Please visit the following URL to authorize the application:")
		fmt.Fprintln(a.prompt, authURL)
		fmt.Fprint(a.prompt, "Enter the authorization code: ")

		var code string
		if _, err := fmt.Fscanln(r, &code); err != nil {
			return nil, fmt.Errorf("failed to read authorization code: %w", err)
		}

		token, err = a.exchange(ctx, code)
		if err != nil {
			return nil, err
		}
	}

	return a.client(ctx, token), nil
}

func (a *Authenticator) client(ctx context.Context, token *oauth2.Token) *http.Client {
	source := &autoSaveTokenSource{
		ctx:        ctx,
		source:     oauth2.ReuseTokenSource(token, a.config.TokenSource(ctx, token)),
		tokenStore: a.store,
		lastToken:  token,
		log:        a.log,
	}
	return oauth2.NewClient(ctx, source)
}

func (a *Authenticator) exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, errors.New("no authorization code received")
	}
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if err := a.store.SaveToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	a.log.Info("authorization successful")
	return token, nil
}

func (a *Authenticator) browserFlow(ctx context.Context) (*oauth2.Token, error) {
	redirectURL, codeChan, errorChan, err := startLocalServer(a.log)
	if err != nil {
		return nil, err
	}

	a.config.RedirectURL = redirectURL
	authURL := a.config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	a.log.Info("started local callback server", "url", redirectURL)
	if redirectURL != "http://"+callbackAddr {
		fmt.Fprintf(a.prompt, "Note: port 8080 was unavailable. Add %s to the authorized redirect URIs in Google Cloud Console.\n", redirectURL)
	}
	fmt.Fprintln(a.prompt, "\nPlease visit the following URL to authorize the application:")
	fmt.Fprintln(a.prompt, authURL)
	fmt.Fprintln(a.prompt, "\nWaiting for authorization...")

	var code string
	select {
	case code = <-codeChan:
	case err := <-errorChan:
		return nil, fmt.Errorf("failed to receive authorization code: %w", err)
	case <-time.After(authTimeout):
		return nil, fmt.Errorf("authorization timeout: no response received within %s", authTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return a.exchange(ctx, code)
}

// startLocalServer starts a local HTTP server to receive the OAuth callback.
// It listens on 127.0.0.1:8080, or a random port when 8080 is taken.
func startLocalServer(log *logger.Logger) (string, <-chan string, <-chan error, error) {
	listener, err := net.Listen("tcp", callbackAddr)
	if err != nil {
		listener, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return "", nil, nil, fmt.Errorf("failed to start local server: %w", err)
		}
	}

	port := listener.Addr().(*net.TCPAddr).Port
	redirectURL := fmt.Sprintf("http://127.0.0.1:%d", port)

	codeChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	server := &http.Server{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  10 * time.Second,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", callbackHandler(codeChan, errorChan, func() {
		go func() {
			time.Sleep(time.Second)
			if err := server.Shutdown(context.Background()); err != nil {
				log.Warn("failed to stop callback server", "err", err)
			}
		}()
	}))
	server.Handler = mux

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errorChan <- fmt.Errorf("server error: %w", err):
			default:
			}
		}
	}()

	return redirectURL, codeChan, errorChan, nil
}

// callbackHandler reports the code or error from the OAuth redirect and then
// calls done. Only the first report is delivered.
func callbackHandler(codeChan chan<- string, errorChan chan<- error, done func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		switch {
		case code != "":
			fmt.Fprint(w, "<html><body><h1>Authorization successful!</h1><p>You can close this window.</p></body></html>")
			select {
			case codeChan <- code:
			default:
			}
		case r.URL.Query().Get("error") != "":
			errMsg := r.URL.Query().Get("error")
			fmt.Fprint(w, "<html><body><h1>Authorization failed</h1></body></html>")
			select {
			case errorChan <- fmt.Errorf("authorization error: %s", errMsg):
			default:
			}
		default:
			fmt.Fprint(w, "<html><body><h1>No authorization code received</h1></body></html>")
			select {
			case errorChan <- errors.New("no authorization code received"):
			default:
			}
		}
		done()
	}
}
