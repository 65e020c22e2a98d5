package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	authdomain "github.com/nayhtooyan/collabtask/internal/auth/domain"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient("test-key", WithBaseURLs(srv.URL, srv.URL), WithHTTPClient(srv.Client()))
	return c, srv
}

func providerError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"message":%q}}`, message)
}

func TestSignIn_ParsesSession(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "accounts:signInWithPassword") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key = %q", got)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatal(err)
		}
		if payload["email"] != "a@example.com" || payload["returnSecureToken"] != true {
			t.Errorf("payload = %v", payload)
		}
		fmt.Fprint(w, `{"localId":"u1","idToken":"not-a-jwt","refreshToken":"ref","expiresIn":"3600"}`)
	})
	defer srv.Close()

	sess, err := c.SignIn(context.Background(), "a@example.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if sess.UserID != "u1" || sess.IDToken != "not-a-jwt" || sess.RefreshToken != "ref" {
		t.Errorf("session = %+v", sess)
	}
	// Opaque token: expiry falls back to expiresIn.
	if until := time.Until(sess.ExpiresAt); until < 59*time.Minute || until > 61*time.Minute {
		t.Errorf("expiry %v not near one hour out", sess.ExpiresAt)
	}
	if sess.Expired(time.Now()) {
		t.Error("fresh session reported expired")
	}
	if !sess.Expired(time.Now().Add(time.Hour)) {
		t.Error("session not expired past its lifetime")
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		message string
		want    authdomain.ErrorCode
	}{
		{"EMAIL_EXISTS", authdomain.ErrCodeEmailInUse},
		{"WEAK_PASSWORD : Password should be at least 6 characters", authdomain.ErrCodeWeakPassword},
		{"INVALID_EMAIL", authdomain.ErrCodeInvalidEmail},
		{"INVALID_LOGIN_CREDENTIALS", authdomain.ErrCodeInvalidCredentials},
		{"INVALID_PASSWORD", authdomain.ErrCodeInvalidCredentials},
		{"EMAIL_NOT_FOUND", authdomain.ErrCodeUserNotFound},
		{"USER_DISABLED", authdomain.ErrCodeUserDisabled},
		{"TOO_MANY_ATTEMPTS_TRY_LATER", authdomain.ErrCodeTooManyAttempts},
		{"SOMETHING_ELSE", authdomain.ErrCodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				providerError(w, http.StatusBadRequest, tt.message)
			})
			defer srv.Close()

			_, err := c.SignUp(context.Background(), "a@example.com", "x")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := authdomain.CodeOf(err); got != tt.want {
				t.Errorf("code = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "accounts:lookup") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"users":[{"localId":"u1","email":"a@example.com","displayName":"A","photoUrl":"https://x/y.png","emailVerified":true}]}`)
	})
	defer srv.Close()

	id, err := c.Lookup(context.Background(), "tok")
	if err != nil {
		t.Fatal(err)
	}
	want := authdomain.Identity{ID: "u1", Email: "a@example.com", DisplayName: "A", EmailVerified: true, AvatarURL: "https://x/y.png"}
	if *id != want {
		t.Errorf("identity = %+v, want %+v", *id, want)
	}
}

func TestLookup_NoUsers(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"users":[]}`)
	})
	defer srv.Close()

	_, err := c.Lookup(context.Background(), "tok")
	if authdomain.CodeOf(err) != authdomain.ErrCodeUserNotFound {
		t.Errorf("code = %s, want %s", authdomain.CodeOf(err), authdomain.ErrCodeUserNotFound)
	}
}

func TestSendVerification_Payload(t *testing.T) {
	var payload map[string]any
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatal(err)
		}
		fmt.Fprint(w, `{}`)
	})
	defer srv.Close()

	if err := c.SendVerification(context.Background(), "tok"); err != nil {
		t.Fatal(err)
	}
	if payload["requestType"] != "VERIFY_EMAIL" || payload["idToken"] != "tok" {
		t.Errorf("payload = %v", payload)
	}
}

func TestRefresh_FormEncoded(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("content type = %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "ref" {
			t.Errorf("form = %v", r.PostForm)
		}
		fmt.Fprint(w, `{"user_id":"u1","id_token":"tok2","refresh_token":"ref2","expires_in":"3600"}`)
	})
	defer srv.Close()

	sess, err := c.Refresh(context.Background(), "ref")
	if err != nil {
		t.Fatal(err)
	}
	if sess.UserID != "u1" || sess.IDToken != "tok2" || sess.RefreshToken != "ref2" {
		t.Errorf("session = %+v", sess)
	}
}

func TestNetworkErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := NewClient("test-key", WithBaseURLs(srv.URL, srv.URL))
	srv.Close() // connection refused from here on

	_, err := c.SignIn(context.Background(), "a@example.com", "secret1")
	if authdomain.CodeOf(err) != authdomain.ErrCodeNetworkError {
		t.Errorf("code = %s, want %s", authdomain.CodeOf(err), authdomain.ErrCodeNetworkError)
	}
}
