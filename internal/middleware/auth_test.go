package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xelth-com/eckplanogram/internal/utils"
)

const secret = "middleware-secret"

func protected() http.Handler {
	return NewAuthMiddleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(id.TenantID + "|" + id.Subject))
	}))
}

func TestAuthMiddleware(t *testing.T) {
	valid, err := utils.GenerateTenantToken("tenant-a", "alice", secret, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	noTenant, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "bob",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	foreign, _ := utils.GenerateTenantToken("tenant-a", "eve", "other-secret", time.Hour)

	cases := []struct {
		name   string
		header string
		query  string
		status int
		body   string
	}{
		{"header", "Bearer " + valid, "", http.StatusOK, "tenant-a|alice"},
		{"query token", "", "?token=" + valid, http.StatusOK, "tenant-a|alice"},
		{"missing", "", "", http.StatusUnauthorized, ""},
		{"bad scheme", "Basic " + valid, "", http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + foreign, "", http.StatusUnauthorized, ""},
		{"no tenant", "Bearer " + noTenant, "", http.StatusForbidden, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/planograms"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			protected().ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("Expected %d, got %d", tc.status, rec.Code)
			}
			if tc.body != "" && rec.Body.String() != tc.body {
				t.Errorf("Unexpected body %q", rec.Body.String())
			}
		})
	}
}
