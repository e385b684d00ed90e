package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crm-interactions/internal/config"

	"github.com/gin-gonic/gin"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "issuer",
		JWTAudience:     "aud",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	pair, err := m.IssuePair(now, "user-1", "sales")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token strings")
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "sales" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(time.Hour)); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	p, err := m.IssuePair(time.Now(), "u", "support")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.RefreshToken, TokenTypeAccess, time.Now()); err == nil {
		t.Fatalf("expected token_type mismatch")
	}
	if _, err := m.Verify(p.RefreshToken, TokenTypeRefresh, time.Now()); err != nil {
		t.Fatalf("refresh token should verify as refresh: %v", err)
	}
}

func TestRequireAccessToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	p, _ := m.IssuePair(time.Now(), "u-9", "technician")

	r := gin.New()
	r.GET("/x", RequireAccessToken(m), func(c *gin.Context) {
		uid, _ := UserID(c.Request.Context())
		role, _ := Role(c.Request.Context())
		c.String(http.StatusOK, uid+"/"+role)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+p.AccessToken)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "u-9/technician" {
		t.Fatalf("unexpected response %d %q", w.Code, w.Body.String())
	}
}

func TestRequireAccessToken_QueryTokenOnlyOnUpgrade(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	p, _ := m.IssuePair(time.Now(), "u-9", "support")

	r := gin.New()
	r.GET("/ws", RequireAccessToken(m), func(c *gin.Context) {
		uid, _ := UserID(c.Request.Context())
		c.String(http.StatusOK, uid)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws?access_token="+p.AccessToken, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "u-9" {
		t.Fatalf("expected query token accepted on upgrade, got %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ws?access_token="+p.AccessToken, nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected query token ignored without upgrade, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ws?access_token="+p.RefreshToken, nil)
	req.Header.Set("Upgrade", "websocket")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected refresh token rejected, got %d", w.Code)
	}
}

func TestRefreshKeepsIdentity(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	now := time.Unix(1700000000, 0).UTC()
	p, err := m.IssuePair(now, "u-1", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	later := now.Add(10 * time.Minute)
	next, err := m.Refresh(later, p.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	claims, err := m.Verify(next.AccessToken, TokenTypeAccess, later)
	if err != nil || claims.UserID != "u-1" || claims.Role != "admin" {
		t.Fatalf("unexpected claims %+v err=%v", claims, err)
	}
	if _, err := m.Refresh(later, p.AccessToken); err == nil {
		t.Fatalf("expected access token refused")
	}
	if _, err := m.Refresh(now.Add(2*time.Hour), p.RefreshToken); err == nil {
		t.Fatalf("expected expired refresh token refused")
	}
}
