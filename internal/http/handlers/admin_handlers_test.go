package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-call-router/internal/domain"
	"github.com/tbourn/go-call-router/internal/services"
)

// memExtensions is an in-memory ExtensionService.
type memExtensions struct {
	items map[string]domain.Extension
}

func (m *memExtensions) List(context.Context) ([]domain.Extension, error) {
	out := []domain.Extension{}
	for _, e := range m.items {
		out = append(out, e)
	}
	return out, nil
}

func (m *memExtensions) Get(_ context.Context, id string) (*domain.Extension, error) {
	e, ok := m.items[id]
	if !ok {
		return nil, services.ErrExtensionNotFound
	}
	return &e, nil
}

func (m *memExtensions) Create(_ context.Context, in services.ExtensionInput) (*domain.Extension, error) {
	if in.Number == "" || in.Extension == "" {
		return nil, services.ErrInvalidExtension
	}
	e := domain.Extension{ID: "e1", Number: in.Number, Extension: in.Extension}
	m.items[e.ID] = e
	return &e, nil
}

func (m *memExtensions) Update(_ context.Context, id string, in services.ExtensionInput) (*domain.Extension, error) {
	if _, ok := m.items[id]; !ok {
		return nil, services.ErrExtensionNotFound
	}
	e := domain.Extension{ID: id, Number: in.Number, Extension: in.Extension}
	m.items[id] = e
	return &e, nil
}

func (m *memExtensions) Delete(_ context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return services.ErrExtensionNotFound
	}
	delete(m.items, id)
	return nil
}

type stubAuth struct{}

func (stubAuth) Register(_ context.Context, in services.RegisterInput) (*domain.User, error) {
	switch in.Email {
	case "taken@example.com":
		return nil, services.ErrEmailTaken
	case "":
		return nil, services.ErrInvalidUser
	}
	return &domain.User{ID: "u1", Name: in.Name, Email: in.Email, Password: "hash"}, nil
}

func (stubAuth) Login(_ context.Context, email, password string) (string, error) {
	if email == "ada@example.com" && password == "s3cret!" {
		return "jwt-token", nil
	}
	return "", services.ErrInvalidCredentials
}

func newAdminRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(nil, nil, &memExtensions{items: map[string]domain.Extension{}}, stubAuth{})
	r := gin.New()
	r.GET("/extensions", h.ListExtensions)
	r.GET("/extensions/:id", h.GetExtension)
	r.POST("/extensions", h.CreateExtension)
	r.PUT("/extensions/:id", h.UpdateExtension)
	r.DELETE("/extensions/:id", h.DeleteExtension)
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	return r
}

func TestExtensionHandlers_CRUD(t *testing.T) {
	r := newAdminRouter()

	w := doJSON(r, http.MethodPost, "/extensions", `{"number":"+15550001111","extension":"101"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var created domain.Extension
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.ID != "e1" || created.Extension != "101" {
		t.Fatalf("create body %s (%v)", w.Body.String(), err)
	}

	if w := doJSON(r, http.MethodGet, "/extensions/e1", ""); w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	w = doJSON(r, http.MethodGet, "/extensions", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"number":"+15550001111"`) {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodPut, "/extensions/e1", `{"number":"sip:desk@example.com","extension":"102"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"extension":"102"`) {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodDelete, "/extensions/e1", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"message":"Extension deleted successfully"`) {
		t.Fatalf("delete: %d %s", w.Code, w.Body.String())
	}
}

func TestExtensionHandlers_Errors(t *testing.T) {
	r := newAdminRouter()

	cases := []struct {
		method, path, body string
		status             int
		code               string
	}{
		{http.MethodGet, "/extensions/missing", "", http.StatusNotFound, ErrCodeNotFound},
		{http.MethodPut, "/extensions/missing", `{"number":"+1","extension":"1"}`, http.StatusNotFound, ErrCodeNotFound},
		{http.MethodDelete, "/extensions/missing", "", http.StatusNotFound, ErrCodeNotFound},
		{http.MethodPost, "/extensions", `{"number":`, http.StatusBadRequest, ErrCodeBadRequest},
		{http.MethodPost, "/extensions", `{"number":"","extension":""}`, http.StatusBadRequest, ErrCodeBadRequest},
		{http.MethodPut, "/extensions/e1", `not json`, http.StatusBadRequest, ErrCodeBadRequest},
	}
	for _, tc := range cases {
		w := doJSON(r, tc.method, tc.path, tc.body)
		if w.Code != tc.status {
			t.Fatalf("%s %s: status=%d want %d (%s)", tc.method, tc.path, w.Code, tc.status, w.Body.String())
		}
		var er ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != tc.code {
			t.Fatalf("%s %s: body %s (%v)", tc.method, tc.path, w.Body.String(), err)
		}
	}
}

func TestAuthHandlers(t *testing.T) {
	r := newAdminRouter()

	w := doJSON(r, http.MethodPost, "/auth/register", `{"name":"Ada","email":"ada@example.com","password":"s3cret!"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"message":"User registered successfully"`) || strings.Contains(body, "hash") {
		t.Fatalf("register body leaked or wrong: %s", body)
	}

	w = doJSON(r, http.MethodPost, "/auth/register", `{"name":"Ada","email":"taken@example.com","password":"s3cret!"}`)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), `"code":"email_taken"`) {
		t.Fatalf("taken: %d %s", w.Code, w.Body.String())
	}
	if w := doJSON(r, http.MethodPost, "/auth/register", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid: %d", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/auth/register", `{`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json: %d", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"s3cret!"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"token":"jwt-token"`) {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	for _, b := range []string{`{"email":"ada@example.com","password":"nope"}`, `{`} {
		w := doJSON(r, http.MethodPost, "/auth/login", b)
		if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), `"error":"Invalid credentials"`) {
			t.Fatalf("login %s: %d %s", b, w.Code, w.Body.String())
		}
	}
}
