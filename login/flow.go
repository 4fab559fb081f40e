// Package login runs the interactive authorization code flow with PKCE
// against a loopback redirect listener.
package login

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/eolscan/eolscan/log"
	"github.com/eolscan/eolscan/open"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	// DefaultPort is the loopback port of the callback listener.
	DefaultPort = 4000
	// DefaultTimeout bounds the whole login, browser round trip included.
	DefaultTimeout = 5 * time.Minute
)

// State is where a Flow is in its lifecycle.
type State int

const (
	Idle State = iota
	Listening
	CallbackOK
	Exchanging
	Done
	CallbackError
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case CallbackOK:
		return "callback-ok"
	case Exchanging:
		return "exchanging"
	case Done:
		return "done"
	case CallbackError:
		return "callback-error"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Authorizer builds the authorization URL and redeems codes. *auth.OAuthClient implements it.
type Authorizer interface {
	RedirectURI() string
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
}

// TokenSink persists the token response. auth.TokenProvider implements it.
type TokenSink interface {
	PersistTokenResponse(tok *oauth2.Token) error
}

// UserSetup resolves the organization of the freshly logged in user. *api.Client implements it.
type UserSetup interface {
	EnsureUserSetup(ctx context.Context) (int, error)
}

// Result is a completed login.
type Result struct {
	OrgID int
}

// Flow is a single login attempt. It is not reusable.
type Flow struct {
	oauth  Authorizer
	tokens TokenSink
	setup  UserSetup

	port     int
	prompter Prompter
	browser  func(url string) error
	out      io.Writer
	timeout  time.Duration

	mu    sync.Mutex
	state State
	addr  string
}

// Option customizes a Flow.
type Option func(*Flow)

// WithPort sets the loopback port of the callback listener. 0 picks a free port.
func WithPort(port int) Option {
	return func(f *Flow) { f.port = port }
}

// WithPrompter replaces the confirmation asked before the browser opens.
func WithPrompter(p Prompter) Option {
	return func(f *Flow) { f.prompter = p }
}

// WithBrowser replaces the function that opens the authorization URL.
func WithBrowser(open func(url string) error) Option {
	return func(f *Flow) { f.browser = open }
}

// WithOutput sets where operator instructions are written. Defaults to stderr.
func WithOutput(w io.Writer) Option {
	return func(f *Flow) { f.out = w }
}

// WithTimeout bounds the whole login. Defaults to DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Flow) { f.timeout = d }
}

// NewFlow returns an idle flow.
func NewFlow(oauth Authorizer, tokens TokenSink, setup UserSetup, opts ...Option) *Flow {
	f := &Flow{
		oauth:    oauth,
		tokens:   tokens,
		setup:    setup,
		port:     DefaultPort,
		prompter: TerminalPrompter{},
		browser:  open.Browser,
		out:      os.Stderr,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	log.Debugf("login: %s -> %s", f.state, s)
	f.state = s
}

// Addr is the address the callback listener is bound to, empty before Run starts listening.
func (f *Flow) Addr() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addr
}

func (f *Flow) callbackPath() string {
	u, err := url.Parse(f.oauth.RedirectURI())
	if err != nil || u.Path == "" {
		return CallbackPath
	}
	return u.Path
}

// Run performs the login. The callback listener is closed before Run returns.
// Tokens are persisted before user setup runs, so a setup failure leaves the session in place.
func (f *Flow) Run(ctx context.Context) (*Result, error) {
	if f.State() != Idle {
		return nil, errors.New("login flow already ran")
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()

	cb := newCallback(f.callbackPath(), state)
	l, err := listen(f.port, cb)
	if err != nil {
		f.setState(Aborted)
		return nil, fmt.Errorf("start callback listener: %w", err)
	}
	defer l.close()

	f.mu.Lock()
	f.addr = l.Addr()
	f.mu.Unlock()
	f.setState(Listening)

	code, err := f.authorize(ctx, cb, l, f.oauth.AuthCodeURL(state, verifier))
	if err != nil {
		f.setState(Aborted)
		return nil, err
	}
	f.setState(CallbackOK)

	f.setState(Exchanging)
	tok, err := f.oauth.Exchange(ctx, code, verifier)
	if err != nil {
		f.setState(Aborted)
		return nil, err
	}

	if err := f.tokens.PersistTokenResponse(tok); err != nil {
		f.setState(Aborted)
		return nil, fmt.Errorf("save session: %w", err)
	}

	orgID, err := f.setup.EnsureUserSetup(ctx)
	if err != nil {
		f.setState(Aborted)
		return nil, fmt.Errorf("complete account setup: %w", err)
	}

	f.setState(Done)
	return &Result{OrgID: orgID}, nil
}

// authorize sends the operator to the provider and waits for the callback.
func (f *Flow) authorize(ctx context.Context, cb *callback, l *listener, authURL string) (string, error) {
	ok, err := f.prompter.Confirm("Open the browser to log in?")
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrCancelled
	}

	if err := f.browser(authURL); err != nil {
		log.Warnf("could not open browser: %v", err)
		fmt.Fprintf(f.out, "Could not open a browser (%v).\n", err)
	}
	fmt.Fprintf(f.out, "If the browser did not open, visit:\n\n  %s\n\n", authURL)
	fmt.Fprintln(f.out, "Waiting for authentication...")

	select {
	case res := <-cb.result:
		l.close()
		if res.err != nil {
			if !res.server {
				f.setState(CallbackError)
			}
			return "", res.err
		}
		return res.code, nil
	case <-ctx.Done():
		l.close()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", ctx.Err()
	}
}
