package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-call-router/internal/twilio"
)

const (
	sigToken = "12345"
	sigBase  = "https://voice.example.com"
)

func signedRouter(enabled bool) *gin.Engine {
	r := gin.New()
	r.Use(TwilioSignature(SignatureOptions{
		Enabled:       enabled,
		AuthToken:     sigToken,
		PublicBaseURL: sigBase + "/",
	}))
	r.POST("/api/calls/handle-extension", func(c *gin.Context) {
		c.String(http.StatusOK, c.PostForm("Digits"))
	})
	return r
}

func signedRequest(path string, form url.Values, sig string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sig != "" {
		req.Header.Set(twilio.SignatureHeader, sig)
	}
	return req
}

func TestTwilioSignature_ValidPasses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := signedRouter(true)

	form := url.Values{"Digits": {"101"}, "CallSid": {"CA123"}, "From": {"+15557654321"}}
	path := "/api/calls/handle-extension?attempt=1"
	sig := twilio.Signature(sigToken, sigBase+path, form)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(path, form, sig))
	if w.Code != http.StatusOK || w.Body.String() != "101" {
		t.Fatalf("valid signature -> %d %q", w.Code, w.Body.String())
	}
}

func TestTwilioSignature_Rejects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := signedRouter(true)

	form := url.Values{"Digits": {"101"}}
	path := "/api/calls/handle-extension"
	good := twilio.Signature(sigToken, sigBase+path, form)

	tampered := url.Values{"Digits": {"999"}}
	cases := map[string]*http.Request{
		"missing":       signedRequest(path, form, ""),
		"tampered form": signedRequest(path, tampered, good),
		"wrong url":     signedRequest(path, form, twilio.Signature(sigToken, "http://other"+path, form)),
		"wrong token":   signedRequest(path, form, twilio.Signature("other", sigBase+path, form)),
	}
	for name, req := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Fatalf("%s: status=%d want 403", name, w.Code)
		}
	}
}

func TestTwilioSignature_DisabledIsNoop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := signedRouter(false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest("/api/calls/handle-extension", url.Values{"Digits": {"7"}}, ""))
	if w.Code != http.StatusOK {
		t.Fatalf("disabled validation -> %d", w.Code)
	}
}
