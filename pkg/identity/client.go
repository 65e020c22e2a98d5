// Package identity talks to the Firebase Identity Toolkit and Secure Token
// REST endpoints. The admin SDK has no password sign-in, so the email/password
// flow uses the same REST surface the web client does.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	authdomain "github.com/nayhtooyan/collabtask/internal/auth/domain"
)

const (
	defaultIdentityBaseURL = "https://identitytoolkit.googleapis.com/v1"
	defaultTokenBaseURL    = "https://securetoken.googleapis.com/v1"
)

// Session holds the provider tokens for the current identity.
type Session struct {
	UserID       string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the idToken is expired or about to expire. The
// one-minute skew keeps a token from dying mid-request.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt.Add(-time.Minute))
}

// Client is a REST client for the identity provider.
type Client struct {
	apiKey          string
	identityBaseURL string
	tokenBaseURL    string
	httpClient      *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURLs overrides the Google endpoints, used by tests.
func WithBaseURLs(identityURL, tokenURL string) Option {
	return func(c *Client) {
		c.identityBaseURL = strings.TrimRight(identityURL, "/")
		c.tokenBaseURL = strings.TrimRight(tokenURL, "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates an identity client for the given Firebase web API key.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:          apiKey,
		identityBaseURL: defaultIdentityBaseURL,
		tokenBaseURL:    defaultTokenBaseURL,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sessionResponse struct {
	LocalID      string `json:"localId"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

func (r *sessionResponse) toSession() *Session {
	return &Session{
		UserID:       r.LocalID,
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    tokenExpiry(r.IDToken, r.ExpiresIn),
	}
}

// SignUp registers a new account. The provider dispatches no email here;
// SendVerification does that with the returned session.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	var resp sessionResponse
	err := c.post(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toSession(), nil
}

// SignIn exchanges email/password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var resp sessionResponse
	err := c.post(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toSession(), nil
}

// UpdateProfile sets the display name on the account behind idToken.
func (c *Client) UpdateProfile(ctx context.Context, idToken, displayName string) error {
	return c.post(ctx, "accounts:update", map[string]any{
		"idToken":           idToken,
		"displayName":       displayName,
		"returnSecureToken": false,
	}, nil)
}

// SendVerification asks the provider to email a verification link to the
// account behind idToken.
func (c *Client) SendVerification(ctx context.Context, idToken string) error {
	return c.post(ctx, "accounts:sendOobCode", map[string]any{
		"requestType": "VERIFY_EMAIL",
		"idToken":     idToken,
	}, nil)
}

type lookupResponse struct {
	Users []struct {
		LocalID       string `json:"localId"`
		Email         string `json:"email"`
		DisplayName   string `json:"displayName"`
		PhotoURL      string `json:"photoUrl"`
		EmailVerified bool   `json:"emailVerified"`
	} `json:"users"`
}

// Lookup fetches the identity behind idToken straight from the provider,
// including the authoritative verification flag.
func (c *Client) Lookup(ctx context.Context, idToken string) (*authdomain.Identity, error) {
	var resp lookupResponse
	if err := c.post(ctx, "accounts:lookup", map[string]any{"idToken": idToken}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, authdomain.NewError(authdomain.ErrCodeUserNotFound, "No account found for this session.", nil)
	}
	u := resp.Users[0]
	return &authdomain.Identity{
		ID:            u.LocalID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		EmailVerified: u.EmailVerified,
		AvatarURL:     u.PhotoURL,
	}, nil
}

// Refresh exchanges a refresh token for a fresh session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	endpoint := fmt.Sprintf("%s/token?key=%s", c.tokenBaseURL, url.QueryEscape(c.apiKey))
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, authdomain.NewError(authdomain.ErrCodeUnknown, "Failed to build token request.", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, authdomain.NewError(authdomain.ErrCodeNetworkError, "Network error. Please check your connection.", err)
	}
	defer httpResp.Body.Close()

	body, _ := io.ReadAll(httpResp.Body)
	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyError(body, nil)
	}

	var resp struct {
		UserID       string `json:"user_id"`
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, authdomain.NewError(authdomain.ErrCodeUnknown, "Malformed token response.", err)
	}
	return &Session{
		UserID:       resp.UserID,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    tokenExpiry(resp.IDToken, resp.ExpiresIn),
	}, nil
}

// post sends a JSON request to an Identity Toolkit endpoint and decodes the
// response into out when out is non-nil.
func (c *Client) post(ctx context.Context, action string, payload map[string]any, out any) error {
	endpoint := fmt.Sprintf("%s/%s?key=%s", c.identityBaseURL, action, url.QueryEscape(c.apiKey))

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return authdomain.NewError(authdomain.ErrCodeUnknown, "Failed to build provider request.", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return authdomain.NewError(authdomain.ErrCodeNetworkError, "Network error. Please check your connection.", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return classifyError(respBody, nil)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return authdomain.NewError(authdomain.ErrCodeUnknown, "Malformed provider response.", err)
		}
	}
	return nil
}

// classifyError maps Identity Toolkit error messages onto the auth taxonomy.
// The provider sends codes like "WEAK_PASSWORD : Password should be at least
// 6 characters", so matching is on the leading token.
func classifyError(body []byte, cause error) *authdomain.Error {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &envelope)

	code := envelope.Error.Message
	if i := strings.IndexAny(code, " :"); i > 0 {
		code = code[:i]
	}

	switch code {
	case "EMAIL_EXISTS":
		return authdomain.NewError(authdomain.ErrCodeEmailInUse, "This email is already registered. Please login instead.", cause)
	case "WEAK_PASSWORD":
		return authdomain.NewError(authdomain.ErrCodeWeakPassword, "Password should be at least 6 characters long.", cause)
	case "INVALID_EMAIL":
		return authdomain.NewError(authdomain.ErrCodeInvalidEmail, "Invalid email address format.", cause)
	case "INVALID_LOGIN_CREDENTIALS", "INVALID_PASSWORD":
		return authdomain.NewError(authdomain.ErrCodeInvalidCredentials, "Invalid email or password.", cause)
	case "EMAIL_NOT_FOUND":
		return authdomain.NewError(authdomain.ErrCodeUserNotFound, "No account found with this email.", cause)
	case "USER_DISABLED":
		return authdomain.NewError(authdomain.ErrCodeUserDisabled, "This account has been disabled.", cause)
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return authdomain.NewError(authdomain.ErrCodeTooManyAttempts, "Too many failed attempts. Please try again later.", cause)
	default:
		msg := envelope.Error.Message
		if msg == "" {
			msg = "Authentication failed. Please try again."
		}
		return authdomain.NewError(authdomain.ErrCodeUnknown, msg, cause)
	}
}

// tokenExpiry reads the exp claim out of the idToken without verifying the
// signature (the provider just issued it); expiresIn is the fallback.
func tokenExpiry(idToken, expiresIn string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	if secs, err := strconv.Atoi(expiresIn); err == nil && secs > 0 {
		return time.Now().Add(time.Duration(secs) * time.Second)
	}
	return time.Time{}
}
