package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-call-router/internal/auth"
)

type stubVerifier map[string]string

func (s stubVerifier) Verify(token string) (auth.Claims, error) {
	uid, ok := s[token]
	if !ok {
		return auth.Claims{}, errors.Join(auth.ErrInvalidToken, errors.New("unknown"))
	}
	return auth.Claims{UserID: uid}, nil
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequireAuth(stubVerifier{"good": "u-1"}))
	r.GET("/secure", func(c *gin.Context) {
		uid, _ := UserID(c)
		c.String(http.StatusOK, uid)
	})

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{name: "valid", header: "Bearer good", status: http.StatusOK, body: "u-1"},
		{name: "lowercase scheme", header: "bearer good", status: http.StatusOK, body: "u-1"},
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", status: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", status: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/secure", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.status {
				t.Fatalf("status=%d want %d", w.Code, tc.status)
			}
			if tc.status == http.StatusOK {
				if w.Body.String() != tc.body {
					t.Fatalf("user id=%q want %q", w.Body.String(), tc.body)
				}
				return
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("json: %v", err)
			}
			if body["code"] != "unauthorized" || body["error"] != "Unauthorized" {
				t.Fatalf("unexpected body: %v", body)
			}
			if w.Header().Get("WWW-Authenticate") == "" {
				t.Fatalf("expected WWW-Authenticate header")
			}
		})
	}
}

func TestUserID_Absent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if _, ok := UserID(c); ok {
		t.Fatalf("expected no user")
	}
	c.Set(userIDKey, 42)
	if _, ok := UserID(c); ok {
		t.Fatalf("non-string user id must be ignored")
	}
}
