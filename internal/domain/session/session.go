// Package session owns the single source of truth for who is using the
// client right now.
//
// State machine: checking -> {authenticated, anonymous}. authenticated ->
// anonymous via logout or probe failure; anonymous -> authenticated only via
// a successful login. No other transitions exist.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/gradepredict/console/internal/domain/captcha"
	"github.com/gradepredict/console/internal/domain/model"
	"github.com/gradepredict/console/internal/domain/types"
	"github.com/gradepredict/console/pkg/logger"
	"github.com/gradepredict/console/pkg/metrics"
)

// State is the session lifecycle state.
type State string

const (
	StateChecking      State = "checking"
	StateAuthenticated State = "authenticated"
	StateAnonymous     State = "anonymous"
)

// Backend is the slice of the API client the controller needs.
type Backend interface {
	Logout(ctx context.Context) error
	CheckAuth(ctx context.Context) (*model.User, error)
	Login(ctx context.Context, username, password, captchaAnswer string) (*model.User, error)
	Register(ctx context.Context, username, password, confirmPassword string) error
}

// Controller performs login, registration, logout, and startup validation.
type Controller struct {
	mu       sync.RWMutex
	backend  Backend
	captcha  *captcha.Flow
	state    State
	session  model.Session
	validate *validator.Validate
	logger   logger.Logger
}

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithLogger sets a custom logger for the controller.
func WithLogger(log logger.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.logger = log
		}
	}
}

// New creates a Controller in the checking state.
func New(backend Backend, flow *captcha.Flow, opts ...Option) *Controller {
	c := &Controller{
		backend:  backend,
		captcha:  flow,
		state:    StateChecking,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.Named("session"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bootstrap force-clears any existing server session, then probes validity.
// It runs exactly once per application load and is the only path that can
// authenticate without a fresh login action.
//
// The unconditional logout means a still-valid server session does not
// survive a client restart; the client always starts from a verified state
// rather than trusting anything it held before.
func (c *Controller) Bootstrap(ctx context.Context) model.Session {
	if err := c.backend.Logout(ctx); err != nil {
		c.logger.Debug(ctx, "bootstrap logout failed", logger.Error(err))
	}

	user, err := c.backend.CheckAuth(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil || user == nil {
		c.state = StateAnonymous
		c.session = model.Anonymous()
	} else {
		c.state = StateAuthenticated
		c.session = model.Session{Authenticated: true, User: user}
	}
	return c.session
}

// loginForm mirrors the login endpoint's required fields.
type loginForm struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// Login submits credentials plus the captcha answer.
//
// An empty captcha answer fails locally before any network call. On server
// rejection the current challenge is invalidated and a fresh one fetched, so
// a single challenge is never hammered across attempts.
func (c *Controller) Login(ctx context.Context, username, password, captchaAnswer string) (*model.User, error) {
	if strings.TrimSpace(captchaAnswer) == "" {
		metrics.RecordLoginAttempt("validation")
		return nil, types.Validation("Please answer the captcha.")
	}
	if err := c.validate.Struct(loginForm{Username: username, Password: password}); err != nil {
		metrics.RecordLoginAttempt("validation")
		return nil, types.Validation("Username and password required")
	}
	if !c.captcha.Ready() {
		metrics.RecordLoginAttempt("validation")
		return nil, types.Validation("Captcha unavailable. Refresh the captcha and try again.")
	}

	user, err := c.backend.Login(ctx, username, password, captchaAnswer)
	if err != nil {
		// The challenge is spent either way; fetch a fresh one before
		// another attempt can be accepted.
		c.captcha.Invalidate()
		if refreshErr := c.captcha.Refresh(ctx); refreshErr != nil {
			c.logger.Warn(ctx, "captcha refresh after failed login", logger.Error(refreshErr))
		}
		metrics.RecordLoginAttempt("rejected")
		return nil, err
	}

	c.captcha.Invalidate()

	c.mu.Lock()
	c.state = StateAuthenticated
	c.session = model.Session{Authenticated: true, User: user}
	c.mu.Unlock()

	metrics.RecordLoginAttempt("success")
	c.logger.Info(ctx, "login succeeded",
		logger.String("username", user.Username),
		logger.String("role", string(user.Role)),
	)
	return user, nil
}

// registerForm mirrors the register endpoint's field rules.
type registerForm struct {
	Username        string `validate:"required,min=3"`
	Password        string `validate:"required,min=6"`
	ConfirmPassword string `validate:"eqfield=Password"`
}

// Register creates an account. It never authenticates; on success the caller
// transitions back to the login mode.
func (c *Controller) Register(ctx context.Context, username, password, confirmPassword string) error {
	form := registerForm{Username: username, Password: password, ConfirmPassword: confirmPassword}
	if err := c.validate.Struct(form); err != nil {
		return types.Validation(registerMessage(err))
	}
	return c.backend.Register(ctx, username, password, confirmPassword)
}

// registerMessage maps the first failed field onto the server's wording.
func registerMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Registration failed"
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Username":
		if fe.Tag() == "min" {
			return "Username must be at least 3 characters"
		}
		return "Username and password required"
	case "Password":
		if fe.Tag() == "min" {
			return "Password must be at least 6 characters"
		}
		return "Username and password required"
	case "ConfirmPassword":
		return "Passwords do not match"
	}
	return "Registration failed"
}

// Logout invalidates the server session and unconditionally clears local
// state. Clearing locally even when the network call fails is deliberate:
// logout must be effective on this client immediately, and a server session
// that lingers is cleared by the next bootstrap.
func (c *Controller) Logout(ctx context.Context) {
	if err := c.backend.Logout(ctx); err != nil {
		c.logger.Warn(ctx, "server logout failed; clearing local session anyway", logger.Error(err))
	}

	c.mu.Lock()
	c.state = StateAnonymous
	c.session = model.Anonymous()
	c.mu.Unlock()
}

// Current returns the session snapshot. Read-only to all other components.
func (c *Controller) Current() model.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}
