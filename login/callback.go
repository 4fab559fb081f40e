package login

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eolscan/eolscan/log"
)

const (
	// CallbackPath is served when the redirect URI does not name a path.
	CallbackPath = "/oauth2/callback"

	loopback        = "127.0.0.1"
	shutdownTimeout = 5 * time.Second
)

type outcome struct {
	code   string
	err    error
	server bool
}

// callback handles the provider redirect. It settles at most once;
// anything reported after that is dropped.
type callback struct {
	path   string
	state  string
	once   sync.Once
	result chan outcome
}

func newCallback(path, state string) *callback {
	return &callback{
		path:   path,
		state:  state,
		result: make(chan outcome, 1),
	}
}

// settle reports whether this call was the one that settled the callback.
func (c *callback) settle(code string, err error) bool {
	return c.report(outcome{code: code, err: err})
}

func (c *callback) report(o outcome) bool {
	settled := false
	c.once.Do(func() {
		settled = true
		c.result <- o
	})
	if !settled && o.err != nil {
		log.Debugf("ignoring callback error after settlement: %v", o.err)
	}
	return settled
}

func (c *callback) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL == nil || r.RequestURI == "" {
		reply(w, http.StatusBadRequest, "Invalid request")
		c.settle("", ErrInvalidRequest)
		return
	}

	u, err := url.ParseRequestURI(r.RequestURI)
	if err != nil {
		reply(w, http.StatusBadRequest, "Invalid callback URL")
		c.settle("", ErrInvalidCallbackURL)
		return
	}

	if u.Path != c.path {
		reply(w, http.StatusNotFound, "Not found")
		return
	}

	query := u.Query()
	state := query.Get("state")
	switch {
	case state == "":
		reply(w, http.StatusBadRequest, "Missing state parameter")
		c.settle("", ErrMissingState)
	case state != c.state:
		reply(w, http.StatusBadRequest, "State verification failed. Restart the login from the terminal.")
		c.settle("", ErrStateMismatch)
	case query.Has("error"):
		perr := &ProviderError{Code: query.Get("error"), Description: query.Get("error_description")}
		reply(w, http.StatusBadRequest, perr.page())
		c.settle("", perr)
	case query.Get("code") != "":
		reply(w, http.StatusOK, "Login successful. You can close this window and return to the terminal.")
		c.settle(query.Get("code"), nil)
	default:
		reply(w, http.StatusBadRequest, "No authorization code returned")
		c.settle("", ErrNoCode)
	}
}

func reply(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg + "\n"))
}

// listener serves one callback on the loopback interface and is closed exactly once.
type listener struct {
	srv       *http.Server
	ln        net.Listener
	cb        *callback
	closeOnce sync.Once
	closes    atomic.Int32
}

func listen(port int, cb *callback) (*listener, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(loopback, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}

	l := &listener{
		srv: &http.Server{
			Handler:           cb,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ln: ln,
		cb: cb,
	}
	l.srv.SetKeepAlivesEnabled(false)

	go l.serve()
	return l, nil
}

func (l *listener) serve() {
	if err := l.srv.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.fail(err)
	}
}

// fail rejects the pending callback with a transport error and tears the listener down.
func (l *listener) fail(err error) {
	if l.cb.report(outcome{err: err, server: true}) {
		go l.close()
	}
}

// Addr is the bound address, useful when the port was 0.
func (l *listener) Addr() string {
	return l.ln.Addr().String()
}

func (l *listener) close() {
	l.closeOnce.Do(func() {
		l.closes.Add(1)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := l.srv.Shutdown(ctx); err != nil {
			log.Debugf("callback listener shutdown: %v", err)
		}
	})
}
