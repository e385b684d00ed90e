package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crm-interactions/internal/auth"
	"crm-interactions/internal/config"

	"github.com/gin-gonic/gin"
)

func TestBuildApp_MockModeServes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Config{
		App:  config.AppConfig{Env: "local", Port: 8080},
		Auth: config.AuthConfig{JWTSecret: "secret"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := buildApp(context.Background(), cfg, log)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close()
	if a.db != nil || a.rdb != nil || a.consumer != nil {
		t.Fatalf("mock mode must not open external connections")
	}

	am, err := auth.NewManager(cfg.Auth)
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	r := gin.New()
	registerRoutes(r, cfg, a, am)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}

	pair, _ := am.IssuePair(time.Now(), "u1", "support")
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{"room":"r1","text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("send: %d %s", w.Code, w.Body.String())
	}
}
