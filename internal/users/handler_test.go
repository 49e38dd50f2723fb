package users

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"resumegenie/internal/shared/auth"
	"resumegenie/internal/shared/server/middleware"
)

func newTestRouter(t *testing.T) (*gin.Engine, *auth.Issuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	issuer := auth.NewIssuer("secret", time.Minute)
	svc := &Service{Repo: NewMemoryRepo(), Cost: bcrypt.MinCost}
	router := gin.New()
	router.Use(middleware.Auth(issuer))
	NewHandler(svc, issuer).RegisterRoutes(router.Group("/api/v1/auth"))
	return router, issuer
}

func doJSON(router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestSignupLoginMeFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := doJSON(router, http.MethodPost, "/api/v1/auth/signup", "", gin.H{"email": "a@example.com", "password": "correct-horse"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("signup expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(router, http.MethodPost, "/api/v1/auth/signup", "", gin.H{"email": "a@example.com", "password": "correct-horse"})
	if resp.Code != http.StatusConflict {
		t.Fatalf("duplicate signup expected 409, got %d", resp.Code)
	}

	resp = doJSON(router, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "a@example.com", "password": "correct-horse"})
	if resp.Code != http.StatusOK {
		t.Fatalf("login expected 200, got %d", resp.Code)
	}
	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if tok.TokenType != "bearer" || tok.Credits != DefaultCredits || tok.AccessToken == "" {
		t.Fatalf("unexpected token response: %+v", tok)
	}

	resp = doJSON(router, http.MethodGet, "/api/v1/auth/me", tok.AccessToken, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("me expected 200, got %d", resp.Code)
	}
	var me map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&me)
	if me["email"] != "a@example.com" || me["credits"] != float64(DefaultCredits) {
		t.Fatalf("unexpected me payload: %v", me)
	}
}

func TestLoginAcceptsFormAndRejectsBadPassword(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(router, http.MethodPost, "/api/v1/auth/signup", "", gin.H{"email": "a@example.com", "password": "correct-horse"})

	form := url.Values{"username": {"a@example.com"}, "password": {"correct-horse"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("form login expected 200, got %d", resp.Code)
	}

	resp = doJSON(router, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "a@example.com", "password": "nope-nope"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("bad password expected 401, got %d", resp.Code)
	}
}

func TestProfileRequiresToken(t *testing.T) {
	router, _ := newTestRouter(t)
	resp := doJSON(router, http.MethodGet, "/api/v1/auth/profile", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestUpdateProfileEmailReturnsFreshToken(t *testing.T) {
	router, issuer := newTestRouter(t)
	doJSON(router, http.MethodPost, "/api/v1/auth/signup", "", gin.H{"email": "a@example.com", "password": "correct-horse"})
	token, _ := issuer.Issue("a@example.com")

	resp := doJSON(router, http.MethodPut, "/api/v1/auth/profile", token, gin.H{"email": "b@example.com"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	fresh, _ := payload["access_token"].(string)
	if fresh == "" {
		t.Fatalf("expected fresh token in response: %v", payload)
	}
	claims, err := issuer.Verify(fresh)
	if err != nil || claims.Sub != "b@example.com" {
		t.Fatalf("unexpected fresh token claims: %+v err=%v", claims, err)
	}

	resp = doJSON(router, http.MethodPut, "/api/v1/auth/profile", fresh, gin.H{})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("empty update expected 400, got %d", resp.Code)
	}
}
