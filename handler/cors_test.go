// file: handler/cors_test.go

package handler

import (
	"go-auth-api/config"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsRequest(t *testing.T, method string) *httptest.ResponseRecorder {
	t.Helper()
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, "/login", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestCORS_ConfiguredOriginAllowsCredentials(t *testing.T) {
	originalURL := config.AppConfig.Server.FrontendURL
	config.AppConfig.Server.FrontendURL = "http://localhost:3000"
	defer func() { config.AppConfig.Server.FrontendURL = originalURL }()

	rr := corsRequest(t, "POST")
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_WildcardOriginOmitsCredentials(t *testing.T) {
	originalURL := config.AppConfig.Server.FrontendURL
	config.AppConfig.Server.FrontendURL = ""
	defer func() { config.AppConfig.Server.FrontendURL = originalURL }()

	rr := corsRequest(t, "POST")
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	rr := corsRequest(t, "OPTIONS")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Access-Control-Allow-Methods"))
}
