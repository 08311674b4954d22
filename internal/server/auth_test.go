package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	identitydomain "github.com/smallbiznis/sellora/internal/identity/domain"
	"github.com/smallbiznis/sellora/internal/identity/password"
	"github.com/smallbiznis/sellora/internal/identity/session"
)

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestLoginSetsSessionCookie(t *testing.T) {
	s, identity, _, audit := newTestServer(t)
	expiresAt := time.Now().Add(time.Hour)
	identity.loginFn = func(req identitydomain.LoginRequest) (*identitydomain.LoginResult, error) {
		if req.Email != "kim@acme.test" || req.Password != "hunter22" {
			return nil, identitydomain.ErrInvalidCredentials
		}
		return &identitydomain.LoginResult{
			User:      &identitydomain.User{ID: 101, Email: "kim@acme.test", DisplayName: "Kim"},
			RawToken:  "raw-token",
			ExpiresAt: expiresAt,
			SessionID: 900,
		}, nil
	}

	r := newTestRouter()
	r.POST("/auth/login", s.Login)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, postJSON("/auth/login", `{"email":"kim@acme.test","password":"hunter22"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %s)", w.Code, w.Body.String())
	}

	var sessionCookie *http.Cookie
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == session.DefaultCookieName {
			sessionCookie = cookie
		}
	}
	if sessionCookie == nil {
		t.Fatal("expected a session cookie")
	}
	if sessionCookie.Value != "raw-token" {
		t.Fatalf("expected raw token in cookie, got %q", sessionCookie.Value)
	}
	if !sessionCookie.HttpOnly {
		t.Fatal("expected an http-only cookie")
	}

	if _, ok := audit.find("user.login"); !ok {
		t.Fatal("expected a login audit entry")
	}
}

func TestLoginFailureIsAudited(t *testing.T) {
	s, identity, _, audit := newTestServer(t)
	identity.loginFn = func(identitydomain.LoginRequest) (*identitydomain.LoginResult, error) {
		return nil, identitydomain.ErrInvalidCredentials
	}

	r := newTestRouter()
	r.POST("/auth/login", s.Login)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, postJSON("/auth/login", `{"email":"kim@acme.test","password":"nope"}`))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	entry, ok := audit.find("user.login_failed")
	if !ok {
		t.Fatal("expected a login_failed audit entry")
	}
	if entry.metadata["email"] != "kim@acme.test" {
		t.Fatalf("expected audited email, got %v", entry.metadata["email"])
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	s, identity, _, _ := newTestServer(t)
	var revoked string
	identity.logoutFn = func(rawToken string) error {
		revoked = rawToken
		return nil
	}

	r := newTestRouter()
	r.POST("/auth/logout", s.Logout)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "token-1"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if revoked != "token-1" {
		t.Fatalf("expected token-1 revoked, got %q", revoked)
	}

	var cleared *http.Cookie
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == session.DefaultCookieName {
			cleared = cookie
		}
	}
	if cleared == nil || cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Fatalf("expected the session cookie cleared, got %+v", cleared)
	}
}

func TestMeWithoutMembership(t *testing.T) {
	s, identity, _, _ := newTestServer(t)
	userID := snowflake.ID(101)
	changed := time.Now().Add(-24 * time.Hour)
	identity.authenticateFn = func(string) (*identitydomain.Session, error) {
		return testSession(userID), nil
	}
	identity.getUserFn = func(snowflake.ID) (*identitydomain.User, error) {
		return &identitydomain.User{
			ID:                  userID,
			Email:               "kim@acme.test",
			DisplayName:         "Kim",
			LastPasswordChanged: &changed,
		}, nil
	}
	identity.resolvePrincipalFn = func(snowflake.ID) (authzdomain.Principal, error) {
		return authzdomain.Principal{}, authzdomain.ErrOrphanedPrincipal
	}

	r := newTestRouter()
	r.GET("/auth/me", s.SessionRequired(), s.Me)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedGet("/auth/me"))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %s)", w.Code, w.Body.String())
	}

	var body struct {
		User struct {
			Email              string `json:"email"`
			MustChangePassword bool   `json:"must_change_password"`
		} `json:"user"`
		Principal *struct {
			Role string `json:"role"`
		} `json:"principal"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.User.Email != "kim@acme.test" {
		t.Fatalf("unexpected email %q", body.User.Email)
	}
	if body.User.MustChangePassword {
		t.Fatal("expected must_change_password false")
	}
	if body.Principal != nil {
		t.Fatalf("expected principal null, got %+v", body.Principal)
	}
}

func TestMeWithMembership(t *testing.T) {
	s, identity, _, _ := newTestServer(t)
	userID := snowflake.ID(101)
	orgID := snowflake.ID(201)
	identity.authenticateFn = func(string) (*identitydomain.Session, error) {
		return testSession(userID), nil
	}
	identity.getUserFn = func(snowflake.ID) (*identitydomain.User, error) {
		return &identitydomain.User{ID: userID, Email: "kim@acme.test"}, nil
	}
	identity.resolvePrincipalFn = func(snowflake.ID) (authzdomain.Principal, error) {
		return authzdomain.Principal{UserID: userID, OrgID: orgID, Role: authzdomain.RoleOrgAdmin}, nil
	}

	r := newTestRouter()
	r.GET("/auth/me", s.SessionRequired(), s.Me)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedGet("/auth/me"))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Principal *struct {
			OrgID string `json:"org_id"`
			Role  string `json:"role"`
		} `json:"principal"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Principal == nil {
		t.Fatal("expected a principal")
	}
	if body.Principal.OrgID != orgID.String() || body.Principal.Role != string(authzdomain.RoleOrgAdmin) {
		t.Fatalf("unexpected principal %+v", body.Principal)
	}
}

func TestChangePasswordWrongCurrentPassword(t *testing.T) {
	s, identity, _, _ := newTestServer(t)
	userID := snowflake.ID(101)
	hash, err := password.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	identity.authenticateFn = func(string) (*identitydomain.Session, error) {
		return testSession(userID), nil
	}
	identity.getUserFn = func(snowflake.ID) (*identitydomain.User, error) {
		return &identitydomain.User{ID: userID, PasswordHash: &hash}, nil
	}
	identity.changePasswordFn = func(snowflake.ID, string) error {
		t.Fatal("ChangePassword must not be reached with a wrong current password")
		return nil
	}

	r := newTestRouter()
	r.POST("/auth/change-password", s.SessionRequired(), s.ChangePassword)

	req := postJSON("/auth/change-password", `{"current_password":"wrong","new_password":"longenough1"}`)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "token-1"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestChangePasswordRejectsWeakPassword(t *testing.T) {
	s, identity, _, _ := newTestServer(t)
	userID := snowflake.ID(101)
	identity.authenticateFn = func(string) (*identitydomain.Session, error) {
		return testSession(userID), nil
	}

	r := newTestRouter()
	r.POST("/auth/change-password", s.SessionRequired(), s.ChangePassword)

	req := postJSON("/auth/change-password", `{"current_password":"correct horse","new_password":"short"}`)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "token-1"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	payload := decodeErrorPayload(t, w.Body.Bytes())
	if len(payload.Errors) == 0 || payload.Errors[0].Code != "weak_password" {
		t.Fatalf("expected weak_password error, got %+v", payload.Errors)
	}
}
