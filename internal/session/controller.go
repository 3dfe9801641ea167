package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/murmurchat/murmur/internal/bus"
	"github.com/murmurchat/murmur/internal/token"
	"github.com/murmurchat/murmur/internal/transport"
	"go.uber.org/zap"
)

// Transport is the slice of the REST client the controller needs.
type Transport interface {
	Login(ctx context.Context, req transport.LoginRequest) (*transport.AuthResponse, error)
	Register(ctx context.Context, req transport.RegisterRequest) (*transport.AuthResponse, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*transport.User, error)
}

// TokenStore persists the opaque bearer token across process restarts.
type TokenStore interface {
	Load() (string, error)
	Save(tok string) error
	Clear() error
}

// SelfAware is implemented by stores that need to know the acting user.
type SelfAware interface {
	SetSelf(userID string)
}

// Credentials is a validated login request.
type Credentials struct {
	EmailOrUsername string `validate:"required"`
	Password        string `validate:"required,min=8"`
	Location        string
}

// Registration is a validated account creation request.
type Registration struct {
	Username        string `validate:"required,alphanum,min=3,max=32"`
	Email           string `validate:"required,email"`
	Password        string `validate:"required,min=8"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
	Gender          string `validate:"required,oneof=male female other"`
	Location        string
}

// ValidationError is a locally-detected input problem: it never reaches
// the transport.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return "validation: " + e.Message }

// Controller owns the auth lifecycle: token acquisition, expiry
// detection, the landing-route decision and the logout cascade.
type Controller struct {
	mu       sync.RWMutex
	tp       Transport
	tokens   TokenStore
	registry Registry
	selfs    []SelfAware
	bus      *bus.Bus
	logger   *zap.Logger
	validate *validator.Validate

	status   Status
	user     *transport.User
	lastErr  string
	inFlight bool
}

// NewController creates a session controller. registry lists the stores
// reset on logout; selfs are told the acting user id on auth changes.
func NewController(tp Transport, tokens TokenStore, registry Registry, selfs []SelfAware, b *bus.Bus, logger *zap.Logger) *Controller {
	if registry == nil {
		registry = Registry{}
	}
	c := &Controller{
		tp:       tp,
		tokens:   tokens,
		registry: registry,
		selfs:    selfs,
		bus:      b,
		logger:   logger,
		validate: validator.New(),
		status:   Unknown,
	}
	registry[DomainSession] = c
	return c
}

// Initialize reads the persisted token and decides the landing route.
// currentRoute is where the user currently is, so expiry inside the
// authenticated area can land on login instead of the landing page.
func (c *Controller) Initialize(ctx context.Context, currentRoute string) (Route, error) {
	if err := c.transition(Checking); err != nil {
		return RouteLanding, err
	}

	tok, err := c.tokens.Load()
	if err != nil {
		c.logger.Warn("token read failed", zap.Error(err))
		tok = ""
	}

	if tok == "" {
		_ = c.transition(Unauthenticated)
		return RouteLanding, nil
	}

	if token.Expired(tok) {
		c.logger.Info("persisted token expired, logging out")
		c.teardown()
		_ = c.transition(Unauthenticated)
		return unauthenticatedRoute(currentRoute), nil
	}

	user, err := c.tp.Profile(ctx)
	if err != nil {
		c.logger.Warn("profile fetch failed", zap.Error(err))
		c.setError(err)
		c.teardown()
		_ = c.transition(Unauthenticated)
		return unauthenticatedRoute(currentRoute), err
	}

	c.setUser(user)
	_ = c.transition(Authenticated)
	return RouteHome, nil
}

// Login validates credentials locally, then exchanges them for a token.
func (c *Controller) Login(ctx context.Context, creds Credentials) error {
	if err := c.validateInput(creds); err != nil {
		return err
	}
	if !c.beginRequest() {
		return nil
	}
	defer c.endRequest()

	resp, err := c.tp.Login(ctx, transport.LoginRequest{
		EmailOrUsername: creds.EmailOrUsername,
		Password:        creds.Password,
		Location:        creds.Location,
	})
	if err != nil {
		c.setError(err)
		return fmt.Errorf("login: %w", err)
	}

	return c.completeAuth(resp)
}

// Register validates the registration locally, then creates the account.
func (c *Controller) Register(ctx context.Context, reg Registration) error {
	if err := c.validateInput(reg); err != nil {
		return err
	}
	if !c.beginRequest() {
		return nil
	}
	defer c.endRequest()

	resp, err := c.tp.Register(ctx, transport.RegisterRequest{
		Username: reg.Username,
		Email:    reg.Email,
		Password: reg.Password,
		Gender:   reg.Gender,
		Location: reg.Location,
	})
	if err != nil {
		c.setError(err)
		return fmt.Errorf("register: %w", err)
	}

	return c.completeAuth(resp)
}

// Logout invokes the remote logout best-effort; local session teardown
// is unconditional.
func (c *Controller) Logout(ctx context.Context) {
	if err := c.tp.Logout(ctx); err != nil {
		c.logger.Warn("remote logout failed, proceeding with local cleanup", zap.Error(err))
	}
	c.teardown()
	c.mu.Lock()
	from := c.status
	c.mu.Unlock()
	if from != Unauthenticated {
		_ = c.transition(Unauthenticated)
	}
}

// User returns the authenticated user record, nil when signed out.
func (c *Controller) User() *transport.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// Status returns the current lifecycle state.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// IsAuthenticated reports whether a signed-in user is present.
func (c *Controller) IsAuthenticated() bool {
	return c.Status() == Authenticated
}

// LastError returns the most recent auth error message, "" when clear.
func (c *Controller) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Reset clears the in-memory session state. Registered under
// DomainSession; the token file is cleared separately by teardown.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.user = nil
	c.lastErr = ""
	c.inFlight = false
	c.mu.Unlock()
}

func (c *Controller) completeAuth(resp *transport.AuthResponse) error {
	if resp.Token == "" {
		err := &transport.Error{Message: "no token in auth response"}
		c.setError(err)
		return err
	}
	if err := c.tokens.Save(resp.Token); err != nil {
		c.setError(err)
		return fmt.Errorf("persist token: %w", err)
	}
	c.setUser(resp.User())
	if c.Status() != Authenticated {
		_ = c.transition(Authenticated)
	}
	return nil
}

func (c *Controller) setUser(user *transport.User) {
	c.mu.Lock()
	c.user = user
	c.lastErr = ""
	c.mu.Unlock()
	for _, s := range c.selfs {
		s.SetSelf(user.ID)
	}
}

func (c *Controller) setError(err error) {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
}

// teardown clears the persisted token and cascades resets to every
// domain in the logout table.
func (c *Controller) teardown() {
	if err := c.tokens.Clear(); err != nil {
		c.logger.Warn("token clear failed", zap.Error(err))
	}
	c.registry.Reset(LogoutDomains...)
	for _, s := range c.selfs {
		s.SetSelf("")
	}
}

func (c *Controller) transition(to Status) error {
	c.mu.Lock()
	from := c.status
	if err := checkTransition(from, to); err != nil {
		c.mu.Unlock()
		return err
	}
	c.status = to
	c.mu.Unlock()

	if c.bus != nil {
		c.bus.Publish(bus.Event{
			Kind:      "session.status_changed",
			Timestamp: time.Now(),
			Payload:   StatusChange{From: from, To: to},
		})
	}
	return nil
}

func (c *Controller) beginRequest() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return false
	}
	c.inFlight = true
	return true
}

func (c *Controller) endRequest() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}

func (c *Controller) validateInput(s any) error {
	err := c.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return &ValidationError{Message: strings.Join(msgs, ", ")}
	}
	return &ValidationError{Message: err.Error()}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "email is malformed"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "eqfield":
		return "passwords do not match"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
