package captcha

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/form-relay/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newSiteverify(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("secret") != "s3cret" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":false,"error-codes":["invalid-input-secret"]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if r.PostForm.Get("response") == "good" {
			_ = json.NewEncoder(w).Encode(body)
			return
		}
		_, _ = w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newRouter(cfg config.Captcha) *gin.Engine {
	cc := NewController(NewVerifier(cfg), nil)
	r := gin.New()
	_ = cc.Register(r.Group(cc.BasePath(), cc.Handlers()...))
	return r
}

func verify(r http.Handler, body string) map[string]any {
	req := httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	out["_status"] = w.Code
	return out
}

func TestVerifyEndpoint(t *testing.T) {
	srv := newSiteverify(t, http.StatusOK, map[string]any{"success": true, "hostname": "example.com"})
	cfg := config.Captcha{SecretKey: "s3cret", VerifyURL: srv.URL, Timeout: time.Second}

	tests := []struct {
		name        string
		cfg         config.Captcha
		body        string
		wantSuccess bool
		wantErrors  []any
	}{
		{name: "valid token", cfg: cfg, body: `{"token":"good"}`, wantSuccess: true},
		{name: "invalid token", cfg: cfg, body: `{"token":"bad"}`, wantErrors: []any{"invalid-input-response"}},
		{name: "malformed body", cfg: cfg, body: `{`},
		{name: "missing secret", cfg: config.Captcha{VerifyURL: srv.URL, Timeout: time.Second}, body: `{"token":"good"}`},
		{name: "upstream unreachable", cfg: config.Captcha{SecretKey: "s3cret", VerifyURL: "http://127.0.0.1:1", Timeout: time.Second}, body: `{"token":"good"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := verify(newRouter(tt.cfg), tt.body)
			assert.Equal(t, http.StatusOK, out["_status"])
			assert.Equal(t, tt.wantSuccess, out["success"])
			if tt.wantErrors != nil {
				assert.Equal(t, tt.wantErrors, out["errors"])
			} else {
				assert.NotContains(t, out, "errors")
			}
		})
	}
}

func TestVerifier_UpstreamError(t *testing.T) {
	srv := newSiteverify(t, http.StatusInternalServerError, map[string]any{"success": true})
	v := NewVerifier(config.Captcha{SecretKey: "s3cret", VerifyURL: srv.URL, Timeout: time.Second})

	_, err := v.Verify(t.Context(), "good")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
