package usecase

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nayhtooyan/collabtask/internal/auth/domain"
	"github.com/nayhtooyan/collabtask/internal/auth/dto"
	"github.com/nayhtooyan/collabtask/pkg/identity"
)

// Provider is the identity provider boundary consumed by the session manager.
// pkg/identity.Client is the production implementation.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*identity.Session, error)
	SignIn(ctx context.Context, email, password string) (*identity.Session, error)
	UpdateProfile(ctx context.Context, idToken, displayName string) error
	SendVerification(ctx context.Context, idToken string) error
	Lookup(ctx context.Context, idToken string) (*domain.Identity, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.Session, error)
}

// SessionManager owns the process-wide current identity and publishes every
// distinct identity/nil transition to its subscribers.
type SessionManager struct {
	provider Provider
	validate *validator.Validate

	mu      sync.Mutex
	session *identity.Session
	current *domain.Identity
	subs    map[int]chan *domain.Identity
	nextSub int
}

// NewSessionManager creates a session manager with no current identity.
func NewSessionManager(provider Provider) *SessionManager {
	return &SessionManager{
		provider: provider,
		validate: validator.New(),
		subs:     make(map[int]chan *domain.Identity),
	}
}

// Subscribe attaches a subscriber to the identity stream. The channel fires
// once immediately with the current state, then once per distinct transition.
// The returned cancel is idempotent.
func (m *SessionManager) Subscribe() (<-chan *domain.Identity, func()) {
	ch := make(chan *domain.Identity, 16)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.current
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Register creates an account, sets the display name and dispatches the
// verification email. Success means the identity exists and the email was
// sent; the caller only reaches an authenticated view via the subscription.
func (m *SessionManager) Register(ctx context.Context, req dto.RegisterRequest) (*domain.Identity, error) {
	if err := m.validate.Struct(req); err != nil {
		return nil, mapValidationError(err)
	}

	sess, err := m.provider.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	log.Printf("[SessionManager] Registered account %s", sess.UserID)

	if err := m.provider.UpdateProfile(ctx, sess.IDToken, req.DisplayName); err != nil {
		return nil, err
	}
	if err := m.provider.SendVerification(ctx, sess.IDToken); err != nil {
		return nil, err
	}
	log.Printf("[SessionManager] Verification email sent to %s", req.Email)

	id, err := m.provider.Lookup(ctx, sess.IDToken)
	if err != nil {
		return nil, err
	}

	m.setSession(sess, id)
	return id, nil
}

// Login signs in and refreshes the verification flag before returning; a
// stale cached flag is never trusted.
func (m *SessionManager) Login(ctx context.Context, req dto.LoginRequest) (*domain.Identity, error) {
	if err := m.validate.Struct(req); err != nil {
		return nil, mapValidationError(err)
	}

	sess, err := m.provider.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	id, err := m.provider.Lookup(ctx, sess.IDToken)
	if err != nil {
		return nil, err
	}
	log.Printf("[SessionManager] Login successful for %s (verified=%v)", id.Email, id.EmailVerified)

	m.setSession(sess, id)
	return id, nil
}

// Logout clears the current identity. It always succeeds locally.
func (m *SessionManager) Logout() {
	log.Printf("[SessionManager] Logout")
	m.setSession(nil, nil)
}

// ResendVerification dispatches another verification email to the current
// identity.
func (m *SessionManager) ResendVerification(ctx context.Context) error {
	token, err := m.freshToken(ctx)
	if err != nil {
		return err
	}
	return m.provider.SendVerification(ctx, token)
}

// Reload force-refreshes the current identity from the provider, used for the
// manual "I have verified" check. Subscribers are notified only when the
// identity actually changed.
func (m *SessionManager) Reload(ctx context.Context) (*domain.Identity, error) {
	token, err := m.freshToken(ctx)
	if err != nil {
		return nil, err
	}

	id, err := m.provider.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	changed := !id.Equal(m.current)
	m.current = id
	m.mu.Unlock()
	if changed {
		m.notify(id)
	}
	return id, nil
}

// Current returns the current identity, nil when signed out.
func (m *SessionManager) Current() *domain.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// setSession replaces session and identity, notifying subscribers on a
// distinct transition.
func (m *SessionManager) setSession(sess *identity.Session, id *domain.Identity) {
	m.mu.Lock()
	changed := !id.Equal(m.current)
	m.session = sess
	m.current = id
	m.mu.Unlock()
	if changed {
		m.notify(id)
	}
}

// notify fans an event out to all subscribers. Sends never block provider
// callbacks; a subscriber that is not draining loses the event.
func (m *SessionManager) notify(id *domain.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for subID, ch := range m.subs {
		select {
		case ch <- id:
		default:
			log.Printf("[SessionManager] Subscriber %d not draining, event dropped", subID)
		}
	}
}

// freshToken returns a valid idToken, refreshing the session when it is
// expired or close to it.
func (m *SessionManager) freshToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	sess := m.session
	m.mu.Unlock()

	if sess == nil {
		return "", domain.NewError(domain.ErrCodeNotAuthenticated, "Please login first.", nil)
	}
	if !sess.Expired(time.Now()) {
		return sess.IDToken, nil
	}

	refreshed, err := m.provider.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		return "", err
	}
	log.Printf("[SessionManager] Session token refreshed for %s", refreshed.UserID)

	m.mu.Lock()
	m.session = refreshed
	m.mu.Unlock()
	return refreshed.IDToken, nil
}

// mapValidationError turns validator failures into the auth taxonomy so they
// render like provider errors, without a network round trip.
func mapValidationError(err error) *domain.Error {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		switch errs[0].Field() {
		case "Email":
			return domain.NewError(domain.ErrCodeInvalidEmail, "Invalid email address format.", err)
		case "Password":
			return domain.NewError(domain.ErrCodeWeakPassword, "Password should be at least 6 characters long.", err)
		case "DisplayName":
			return domain.NewError(domain.ErrCodeUnknown, "Display name must be at least 2 characters.", err)
		}
	}
	return domain.NewError(domain.ErrCodeUnknown, "Invalid input.", err)
}
