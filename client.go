package sealmsg

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/sealmsg/sealmsg/errs"
	"github.com/sealmsg/sealmsg/internal/custody"
	"github.com/sealmsg/sealmsg/internal/identity"
	"github.com/sealmsg/sealmsg/internal/keycache"
	"github.com/sealmsg/sealmsg/ledger"
)

// MinPasswordLen is the minimum accepted password length.
const MinPasswordLen = 8

// DefaultPollInterval is the subscription poll interval when the caller
// supplies no policy of their own.
const DefaultPollInterval = 5 * time.Second

// Config wires the external capabilities into a Client.
type Config struct {
	Ledger ledger.LedgerClient
	Oracle ledger.ConfidentialOracle
	Wallet ledger.Wallet

	// ContractScope scopes every confidential grant and authorization token
	// to one messaging program instance.
	ContractScope string
}

// Option adjusts Client construction.
type Option func(*Client)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithKeyCacheTTL bounds how long recovered conversation keys stay cached.
func WithKeyCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cacheTTL = ttl }
}

// WithAuthWindow sets the validity window of authorization tokens, capped at
// custody's ten-day maximum.
func WithAuthWindow(d time.Duration) Option {
	return func(c *Client) { c.authWindow = d }
}

// WithClock injects the clock used for authorization issuance and
// subscription polling. Tests pass a mock.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// WithPollInterval sets the subscription poll interval. The interval is a
// caller-supplied policy, not a protocol constant.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.poll = d }
}

// Client orchestrates the conversation protocol over the injected
// capabilities. A Client serves one wallet account; concurrent calls are
// safe.
type Client struct {
	ledger ledger.LedgerClient
	oracle ledger.ConfidentialOracle
	wallet ledger.Wallet
	scope  string

	custody *custody.Custody
	cache   *keycache.Cache
	clock   clock.Clock
	log     *zap.Logger

	poll       time.Duration
	cacheTTL   time.Duration
	authWindow time.Duration

	mu      sync.Mutex
	session *session
}

// New constructs a Client from the capability set and options.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Ledger == nil || cfg.Oracle == nil || cfg.Wallet == nil {
		return nil, errors.New("sealmsg: ledger, oracle and wallet capabilities are all required")
	}
	if cfg.ContractScope == "" {
		return nil, errors.New("sealmsg: empty contract scope")
	}
	c := &Client{
		ledger:     cfg.Ledger,
		oracle:     cfg.Oracle,
		wallet:     cfg.Wallet,
		scope:      cfg.ContractScope,
		clock:      clock.New(),
		log:        zap.NewNop(),
		poll:       DefaultPollInterval,
		cacheTTL:   keycache.DefaultTTL,
		authWindow: custody.MaxAuthWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.custody = custody.New(cfg.Oracle, cfg.ContractScope, c.authWindow, c.clock, c.log)
	c.cache = keycache.New(c.cacheTTL)
	return c, nil
}

// Close releases background resources. A closed Client cannot be reused.
func (c *Client) Close() {
	c.Logout()
	c.cache.Stop()
}

// LoginResult reports the outcome of establishing a session.
type LoginResult struct {
	Account ledger.Address

	// IsNewAccount is set when the account has no password identity bound on
	// the ledger yet. Sending works either way; call Register to bind the
	// identity and unlock key recovery across sessions.
	IsNewAccount bool
}

// Login establishes a session for the wallet's account. On a registered
// account the password is verified against the immutable on-ledger binding;
// a mismatch fails with errs.ErrInvalidPassword before anything else
// happens. Login never registers; that is the explicit Register transition.
func (c *Client) Login(ctx context.Context, password string) (LoginResult, error) {
	if len(password) < MinPasswordLen {
		return LoginResult{}, fmt.Errorf("%w: password shorter than %d characters", errs.ErrInvalidPassword, MinPasswordLen)
	}
	account := c.wallet.AccountIdentity()
	ident, err := identity.Derive(account, password)
	if err != nil {
		return LoginResult{}, fmt.Errorf("derive password identity: %w", err)
	}
	defer ident.Zero()

	isNew := false
	registered, err := c.ledger.RegisteredIdentity(ctx, account)
	switch {
	case errors.Is(err, errs.ErrNotRegistered):
		isNew = true
	case err != nil:
		return LoginResult{}, fmt.Errorf("read registered identity: %w", err)
	case registered != ident.Address():
		return LoginResult{}, errs.ErrInvalidPassword
	}

	c.mu.Lock()
	c.session = &session{account: account, password: password, passwordAddr: ident.Address()}
	c.mu.Unlock()
	c.log.Info("session established",
		zap.Stringer("account", account),
		zap.Bool("new_account", isNew),
	)
	return LoginResult{Account: account, IsNewAccount: isNew}, nil
}

// Register binds the session's password identity to the account on the
// ledger, exactly once per account. The program retroactively grants the
// identity read access to every conversation key the account already
// participates in. A repeat attempt fails with errs.ErrAlreadyRegistered,
// which is fatal and non-retryable: the binding is immutable.
func (c *Client) Register(ctx context.Context) (ledger.TxID, error) {
	sess, err := c.currentSession()
	if err != nil {
		return "", err
	}
	payload := registrationPayload(sess.account, sess.passwordAddr)
	sig, err := c.wallet.Sign(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("sign registration: %w", err)
	}
	txID, err := c.ledger.Register(ctx, sess.account, sess.passwordAddr, sig)
	if err != nil {
		return "", fmt.Errorf("register password identity: %w", err)
	}
	c.log.Info("password identity registered",
		zap.Stringer("account", sess.account),
		zap.String("tx", string(txID)),
	)
	return txID, nil
}

// Logout ends the session, dropping the cached password and every cached
// conversation key.
func (c *Client) Logout() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.cache.Clear()
}

// currentSession returns the active session or errs.ErrNotInitialized. The
// returned session is immutable.
func (c *Client) currentSession() (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, errs.ErrNotInitialized
	}
	return c.session, nil
}
