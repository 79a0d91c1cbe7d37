// file: router/router_test.go

package router_test

import (
	"encoding/json"
	"fmt"
	"go-auth-api/app"
	"go-auth-api/config"
	"go-auth-api/logger"
	"go-auth-api/repository"
	"go-auth-api/service"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

var testApp *app.TestApp

func TestMain(m *testing.M) {
	config.LoadConfig("../")
	logger.Init(config.AppConfig.Server.Environment)

	mr, err := miniredis.Run()
	if err != nil {
		log.Fatalf("could not start miniredis: %v", err)
	}
	testRedisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	testApp = app.NewTestApp(
		repository.NewMemoryUserRepository(),
		service.NewRedisCounterStore(testRedisClient),
	)

	exitCode := m.Run()

	testRedisClient.Close()
	mr.Close()
	os.Exit(exitCode)
}

// --- Test Helper Functions ---

type authResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Account      struct {
		ID          string `json:"id"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
	} `json:"account"`
}

func doJSON(t *testing.T, router http.Handler, method, path, body, ip string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func registerUserForTest(t *testing.T, email, password, ip string) authResponse {
	t.Helper()
	body := fmt.Sprintf(`{"email": "%s", "password": "%s"}`, email, password)
	rr := doJSON(t, testApp.Router, "POST", "/register", body, ip)
	assert.Equal(t, http.StatusCreated, rr.Code, "registration should succeed: %s", rr.Body.String())

	var response authResponse
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	assert.NoError(t, err)
	return response
}

func loginUserForTest(t *testing.T, email, password, ip string) authResponse {
	t.Helper()
	body := fmt.Sprintf(`{"email": "%s", "password": "%s"}`, email, password)
	rr := doJSON(t, testApp.Router, "POST", "/login", body, ip)
	assert.Equal(t, http.StatusOK, rr.Code, "login should succeed: %s", rr.Body.String())

	var response authResponse
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.NotEmpty(t, response.AccessToken)
	assert.NotEmpty(t, response.RefreshToken)
	return response
}

// --- Test Suites ---

func TestHealthCheck_Integration(t *testing.T) {
	req, _ := http.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	testApp.Router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	expectedBody := `{"status":"API is healthy and running"}`
	assert.JSONEq(t, expectedBody, rr.Body.String())
}

func TestRegister_Integration(t *testing.T) {
	t.Run("creates the account and opens a session", func(t *testing.T) {
		response := registerUserForTest(t, "register@test.com", "password123", "198.51.100.1")

		assert.True(t, response.Success)
		assert.NotEmpty(t, response.AccessToken)
		assert.NotEmpty(t, response.RefreshToken)
		assert.Equal(t, "register@test.com", response.Account.Email)
		assert.Equal(t, "register", response.Account.DisplayName, "display name defaults to the email local part")
		assert.NotEmpty(t, response.Account.ID)
	})

	t.Run("duplicate email", func(t *testing.T) {
		body := `{"email": "register@test.com", "password": "another-password"}`
		rr := doJSON(t, testApp.Router, "POST", "/register", body, "198.51.100.1")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "already exists")
	})

	t.Run("validation failure", func(t *testing.T) {
		body := `{"email": "not-an-email", "password": "123"}`
		rr := doJSON(t, testApp.Router, "POST", "/register", body, "198.51.100.1")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestLogin_Integration(t *testing.T) {
	registerUserForTest(t, "login@test.com", "password123", "198.51.100.2")

	t.Run("successful login", func(t *testing.T) {
		loginUserForTest(t, "login@test.com", "password123", "198.51.100.2")
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		wrongPassword := doJSON(t, testApp.Router, "POST", "/login",
			`{"email": "login@test.com", "password": "wrongpassword"}`, "198.51.100.2")
		unknownEmail := doJSON(t, testApp.Router, "POST", "/login",
			`{"email": "nobody@test.com", "password": "password123"}`, "198.51.100.2")

		assert.Equal(t, http.StatusBadRequest, wrongPassword.Code)
		assert.Equal(t, http.StatusBadRequest, unknownEmail.Code)
		assert.JSONEq(t, wrongPassword.Body.String(), unknownEmail.Body.String())
	})
}

func TestMe_Integration(t *testing.T) {
	response := registerUserForTest(t, "me@test.com", "password123", "198.51.100.3")

	t.Run("with a valid access token", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer "+response.AccessToken)
		rr := httptest.NewRecorder()
		testApp.Router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "me@test.com")
		assert.NotContains(t, rr.Body.String(), "password")

		// The account envelope is camelCase throughout.
		assert.Contains(t, rr.Body.String(), "createdAt")
		assert.NotContains(t, rr.Body.String(), "created_at")
	})

	t.Run("without a token", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/me", nil)
		rr := httptest.NewRecorder()
		testApp.Router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestAuthFlows_Integration(t *testing.T) {
	registered := registerUserForTest(t, "authflow@test.com", "password123", "198.51.100.4")
	login := loginUserForTest(t, "authflow@test.com", "password123", "198.51.100.4")

	// Login replaced the session opened by registration.
	t.Run("registration token superseded by login", func(t *testing.T) {
		body := fmt.Sprintf(`{"refreshToken": "%s"}`, registered.RefreshToken)
		rr := doJSON(t, testApp.Router, "POST", "/refresh", body, "198.51.100.4")
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	var rotated authResponse
	t.Run("successful token refresh", func(t *testing.T) {
		body := fmt.Sprintf(`{"refreshToken": "%s"}`, login.RefreshToken)
		rr := doJSON(t, testApp.Router, "POST", "/refresh", body, "198.51.100.4")
		assert.Equal(t, http.StatusOK, rr.Code)

		err := json.Unmarshal(rr.Body.Bytes(), &rotated)
		assert.NoError(t, err)
		assert.NotEmpty(t, rotated.AccessToken)
		assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)
	})

	t.Run("spent refresh token is rejected", func(t *testing.T) {
		body := fmt.Sprintf(`{"refreshToken": "%s"}`, login.RefreshToken)
		rr := doJSON(t, testApp.Router, "POST", "/refresh", body, "198.51.100.4")
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("missing refresh token", func(t *testing.T) {
		rr := doJSON(t, testApp.Router, "POST", "/refresh", `{}`, "198.51.100.4")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("logout then refresh fails", func(t *testing.T) {
		body := fmt.Sprintf(`{"refreshToken": "%s"}`, rotated.RefreshToken)
		rr := doJSON(t, testApp.Router, "POST", "/logout", body, "198.51.100.4")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Logged out successfully")

		// Logout is idempotent.
		rr = doJSON(t, testApp.Router, "POST", "/logout", body, "198.51.100.4")
		assert.Equal(t, http.StatusOK, rr.Code)

		rr = doJSON(t, testApp.Router, "POST", "/refresh", body, "198.51.100.4")
		assert.Equal(t, http.StatusForbidden, rr.Code, "refresh token should be invalid after logout")
	})
}

func TestRateLimits_Integration(t *testing.T) {
	// A dedicated app with tight budgets keeps this test fast and isolated.
	originalLimits := config.AppConfig.RateLimit
	config.AppConfig.RateLimit.Auth = config.RateLimitPolicy{Limit: 3, Window: 15 * time.Minute}
	config.AppConfig.RateLimit.Register = config.RateLimitPolicy{Limit: 2, Window: time.Hour}
	defer func() { config.AppConfig.RateLimit = originalLimits }()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("could not start miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limitedApp := app.NewTestApp(
		repository.NewMemoryUserRepository(),
		service.NewRedisCounterStore(client),
	)

	t.Run("registration budget", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			body := fmt.Sprintf(`{"email": "reg%d@test.com", "password": "password123"}`, i)
			rr := doJSON(t, limitedApp.Router, "POST", "/register", body, "203.0.113.1")
			assert.Equal(t, http.StatusCreated, rr.Code)
		}

		rr := doJSON(t, limitedApp.Router, "POST", "/register",
			`{"email": "reg9@test.com", "password": "password123"}`, "203.0.113.1")
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Contains(t, rr.Body.String(), "retryAfter")

		// A different address still has budget.
		rr = doJSON(t, limitedApp.Router, "POST", "/register",
			`{"email": "reg9@test.com", "password": "password123"}`, "203.0.113.2")
		assert.Equal(t, http.StatusCreated, rr.Code)
	})

	t.Run("failed logins count, successful ones do not", func(t *testing.T) {
		for i := 0; i < 6; i++ {
			rr := doJSON(t, limitedApp.Router, "POST", "/login",
				`{"email": "reg0@test.com", "password": "password123"}`, "203.0.113.3")
			assert.Equal(t, http.StatusOK, rr.Code, "successful logins must not consume the auth budget")
		}

		for i := 0; i < 3; i++ {
			rr := doJSON(t, limitedApp.Router, "POST", "/login",
				`{"email": "reg0@test.com", "password": "wrong"}`, "203.0.113.3")
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		}

		rr := doJSON(t, limitedApp.Router, "POST", "/login",
			`{"email": "reg0@test.com", "password": "wrong"}`, "203.0.113.3")
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	})

	t.Run("window reset restores the budget", func(t *testing.T) {
		rr := doJSON(t, limitedApp.Router, "POST", "/login",
			`{"email": "reg0@test.com", "password": "wrong"}`, "203.0.113.3")
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)

		mr.FastForward(16 * time.Minute)

		rr = doJSON(t, limitedApp.Router, "POST", "/login",
			`{"email": "reg0@test.com", "password": "password123"}`, "203.0.113.3")
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestGeneralAPILimit_Integration(t *testing.T) {
	originalLimits := config.AppConfig.RateLimit
	config.AppConfig.RateLimit.API = config.RateLimitPolicy{Limit: 5, Window: 15 * time.Minute}
	defer func() { config.AppConfig.RateLimit = originalLimits }()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("could not start miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limitedApp := app.NewTestApp(
		repository.NewMemoryUserRepository(),
		service.NewRedisCounterStore(client),
	)

	ip := "203.0.113.7"
	body := `{"refreshToken": "garbage"}`

	// Every route shares the general budget, including ones without a
	// stricter policy of their own.
	for i := 0; i < 5; i++ {
		rr := doJSON(t, limitedApp.Router, "POST", "/logout", body, ip)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	}

	rr := doJSON(t, limitedApp.Router, "POST", "/logout", body, ip)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code, "sustained traffic on any route must exhaust the general budget")
	assert.Contains(t, rr.Body.String(), "retryAfter")

	rr = doJSON(t, limitedApp.Router, "GET", "/me", "", ip)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code, "the budget is shared across routes for the same address")

	// A different address still has budget.
	rr = doJSON(t, limitedApp.Router, "POST", "/logout", body, "203.0.113.8")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Health checks bypass the limiter even for an exhausted address.
	req, _ := http.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Forwarded-For", ip)
	healthRR := httptest.NewRecorder()
	limitedApp.Router.ServeHTTP(healthRR, req)
	assert.Equal(t, http.StatusOK, healthRR.Code)
}

func TestEndToEndFlow_Integration(t *testing.T) {
	ip := "198.51.100.9"

	rr := doJSON(t, testApp.Router, "POST", "/register", `{"email": "a@x.com", "password": "secret1"}`, ip)
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, testApp.Router, "POST", "/login", `{"email": "a@x.com", "password": "wrong"}`, ip)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid credentials")

	login := loginUserForTest(t, "a@x.com", "secret1", ip)

	req, _ := http.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	meRR := httptest.NewRecorder()
	testApp.Router.ServeHTTP(meRR, req)
	assert.Equal(t, http.StatusOK, meRR.Code)
	assert.Contains(t, meRR.Body.String(), "a@x.com")

	body := fmt.Sprintf(`{"refreshToken": "%s"}`, login.RefreshToken)
	rr = doJSON(t, testApp.Router, "POST", "/logout", body, ip)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, testApp.Router, "POST", "/refresh", body, ip)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
