package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nayhtooyan/collabtask/internal/auth/domain"
	"github.com/nayhtooyan/collabtask/internal/auth/dto"
	"github.com/nayhtooyan/collabtask/pkg/identity"
)

type mockProvider struct {
	signUpFn           func(ctx context.Context, email, password string) (*identity.Session, error)
	signInFn           func(ctx context.Context, email, password string) (*identity.Session, error)
	updateProfileFn    func(ctx context.Context, idToken, displayName string) error
	sendVerificationFn func(ctx context.Context, idToken string) error
	lookupFn           func(ctx context.Context, idToken string) (*domain.Identity, error)
	refreshFn          func(ctx context.Context, refreshToken string) (*identity.Session, error)

	profileCalls      []string
	verificationCalls []string
	lookupCalls       int
	refreshCalls      int
}

func (m *mockProvider) SignUp(ctx context.Context, email, password string) (*identity.Session, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password)
	}
	return &identity.Session{UserID: "u1", IDToken: "tok", RefreshToken: "ref", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *mockProvider) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return &identity.Session{UserID: "u1", IDToken: "tok", RefreshToken: "ref", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *mockProvider) UpdateProfile(ctx context.Context, idToken, displayName string) error {
	m.profileCalls = append(m.profileCalls, displayName)
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, idToken, displayName)
	}
	return nil
}

func (m *mockProvider) SendVerification(ctx context.Context, idToken string) error {
	m.verificationCalls = append(m.verificationCalls, idToken)
	if m.sendVerificationFn != nil {
		return m.sendVerificationFn(ctx, idToken)
	}
	return nil
}

func (m *mockProvider) Lookup(ctx context.Context, idToken string) (*domain.Identity, error) {
	m.lookupCalls++
	if m.lookupFn != nil {
		return m.lookupFn(ctx, idToken)
	}
	return &domain.Identity{ID: "u1", Email: "a@example.com", DisplayName: "A", EmailVerified: false}, nil
}

func (m *mockProvider) Refresh(ctx context.Context, refreshToken string) (*identity.Session, error) {
	m.refreshCalls++
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return &identity.Session{UserID: "u1", IDToken: "tok2", RefreshToken: "ref2", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func recvIdentity(t *testing.T, ch <-chan *domain.Identity) *domain.Identity {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(time.Second):
		t.Fatal("no identity event received")
		return nil
	}
}

func assertNoEvent(t *testing.T, ch <-chan *domain.Identity) {
	t.Helper()
	select {
	case id := <-ch:
		t.Fatalf("unexpected identity event: %+v", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribe_FiresImmediatelyWithCurrentState(t *testing.T) {
	m := NewSessionManager(&mockProvider{})
	ch, cancel := m.Subscribe()
	defer cancel()

	if id := recvIdentity(t, ch); id != nil {
		t.Errorf("initial event = %+v, want nil (signed out)", id)
	}
}

func TestRegister_SetsProfileAndSendsVerification(t *testing.T) {
	p := &mockProvider{}
	m := NewSessionManager(p)
	ch, cancel := m.Subscribe()
	defer cancel()
	recvIdentity(t, ch) // initial nil

	id, err := m.Register(context.Background(), dto.RegisterRequest{
		Email:       "a@example.com",
		Password:    "secret1",
		DisplayName: "A",
	})
	if err != nil {
		t.Fatal(err)
	}
	if id.EmailVerified {
		t.Error("fresh registration must not be verified")
	}
	if len(p.profileCalls) != 1 || p.profileCalls[0] != "A" {
		t.Errorf("profileCalls = %v", p.profileCalls)
	}
	if len(p.verificationCalls) != 1 {
		t.Errorf("verificationCalls = %v", p.verificationCalls)
	}

	if got := recvIdentity(t, ch); got == nil || got.ID != "u1" {
		t.Errorf("transition event = %+v", got)
	}
}

func TestLogin_RefreshesVerifiedFlagViaLookup(t *testing.T) {
	p := &mockProvider{
		lookupFn: func(ctx context.Context, idToken string) (*domain.Identity, error) {
			return &domain.Identity{ID: "u1", Email: "a@example.com", EmailVerified: true}, nil
		},
	}
	m := NewSessionManager(p)

	id, err := m.Login(context.Background(), dto.LoginRequest{Email: "a@example.com", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	if !id.EmailVerified {
		t.Error("verified flag must come from the post-login lookup")
	}
	if p.lookupCalls != 1 {
		t.Errorf("lookupCalls = %d, want 1", p.lookupCalls)
	}
}

func TestLogin_ValidationShortCircuitsProvider(t *testing.T) {
	called := false
	p := &mockProvider{
		signInFn: func(ctx context.Context, email, password string) (*identity.Session, error) {
			called = true
			return nil, errors.New("must not be reached")
		},
	}
	m := NewSessionManager(p)

	_, err := m.Login(context.Background(), dto.LoginRequest{Email: "not-an-email", Password: "x"})
	if domain.CodeOf(err) != domain.ErrCodeInvalidEmail {
		t.Errorf("error code = %s, want %s", domain.CodeOf(err), domain.ErrCodeInvalidEmail)
	}
	if called {
		t.Error("provider called despite failed validation")
	}
}

func TestRegister_WeakPasswordMapping(t *testing.T) {
	m := NewSessionManager(&mockProvider{})
	_, err := m.Register(context.Background(), dto.RegisterRequest{
		Email:       "a@example.com",
		Password:    "abc",
		DisplayName: "A",
	})
	if domain.CodeOf(err) != domain.ErrCodeWeakPassword {
		t.Errorf("error code = %s, want %s", domain.CodeOf(err), domain.ErrCodeWeakPassword)
	}
}

func TestLogout_EmitsNilTransition(t *testing.T) {
	m := NewSessionManager(&mockProvider{})
	if _, err := m.Login(context.Background(), dto.LoginRequest{Email: "a@example.com", Password: "secret1"}); err != nil {
		t.Fatal(err)
	}

	ch, cancel := m.Subscribe()
	defer cancel()
	if got := recvIdentity(t, ch); got == nil {
		t.Fatal("expected signed-in initial state")
	}

	m.Logout()
	if got := recvIdentity(t, ch); got != nil {
		t.Errorf("logout event = %+v, want nil", got)
	}
	if m.Current() != nil {
		t.Error("current identity not cleared")
	}
}

func TestReload_IdenticalIdentityEmitsNothing(t *testing.T) {
	p := &mockProvider{}
	m := NewSessionManager(p)
	if _, err := m.Login(context.Background(), dto.LoginRequest{Email: "a@example.com", Password: "secret1"}); err != nil {
		t.Fatal(err)
	}

	ch, cancel := m.Subscribe()
	defer cancel()
	recvIdentity(t, ch) // initial state

	if _, err := m.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	assertNoEvent(t, ch)
}

func TestReload_VerifiedFlipEmitsOnce(t *testing.T) {
	verified := false
	p := &mockProvider{
		lookupFn: func(ctx context.Context, idToken string) (*domain.Identity, error) {
			return &domain.Identity{ID: "u1", Email: "a@example.com", EmailVerified: verified}, nil
		},
	}
	m := NewSessionManager(p)
	if _, err := m.Login(context.Background(), dto.LoginRequest{Email: "a@example.com", Password: "secret1"}); err != nil {
		t.Fatal(err)
	}

	ch, cancel := m.Subscribe()
	defer cancel()
	recvIdentity(t, ch)

	verified = true
	id, err := m.Reload(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !id.EmailVerified {
		t.Fatal("reload must return the fresh flag")
	}
	if got := recvIdentity(t, ch); got == nil || !got.EmailVerified {
		t.Errorf("transition event = %+v, want verified identity", got)
	}
	assertNoEvent(t, ch)
}

func TestResendVerification_RequiresSession(t *testing.T) {
	m := NewSessionManager(&mockProvider{})
	err := m.ResendVerification(context.Background())
	if domain.CodeOf(err) != domain.ErrCodeNotAuthenticated {
		t.Errorf("error code = %s, want %s", domain.CodeOf(err), domain.ErrCodeNotAuthenticated)
	}
}

func TestFreshToken_RefreshesExpiredSession(t *testing.T) {
	expired := &identity.Session{UserID: "u1", IDToken: "old", RefreshToken: "ref", ExpiresAt: time.Now().Add(-time.Minute)}
	p := &mockProvider{
		signInFn: func(ctx context.Context, email, password string) (*identity.Session, error) {
			return expired, nil
		},
	}
	m := NewSessionManager(p)
	if _, err := m.Login(context.Background(), dto.LoginRequest{Email: "a@example.com", Password: "secret1"}); err != nil {
		t.Fatal(err)
	}

	if err := m.ResendVerification(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p.refreshCalls != 1 {
		t.Errorf("refreshCalls = %d, want 1", p.refreshCalls)
	}
	if len(p.verificationCalls) == 0 || p.verificationCalls[len(p.verificationCalls)-1] != "tok2" {
		t.Errorf("verification used token %v, want the refreshed token", p.verificationCalls)
	}

	// The refreshed session sticks: the next call needs no second refresh.
	if err := m.ResendVerification(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p.refreshCalls != 1 {
		t.Errorf("refreshCalls = %d after second call, want still 1", p.refreshCalls)
	}
}
