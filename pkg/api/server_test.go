package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/installkit/installkit/pkg/account"
	"github.com/installkit/installkit/pkg/config"
	"github.com/installkit/installkit/pkg/installer"
	"github.com/installkit/installkit/pkg/model"
	"github.com/installkit/installkit/pkg/setup"
	"github.com/installkit/installkit/pkg/telemetry"
)

type Admin struct {
	ID       int64  `db:"id,pk"`
	Email    string `db:"email,unique"`
	Password string
	Roles    []string
	SmtpHost string
}

func (a *Admin) AccountIdentifier() string { return a.Email }

type apiHarness struct {
	dir    string
	server *Server
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "var"), 0755))

	def, err := config.Parse([]byte("entities: [Admin]\ndatabase:\n  driver: sqlite\n"), dir)
	require.NoError(t, err)

	reg := model.NewRegistry()
	reg.MustRegister(&Admin{})

	tel := telemetry.NewNop()
	metrics, err := telemetry.NewMetrics(telemetry.DefaultConfig().Metrics)
	require.NoError(t, err)
	tel.Metrics = metrics

	in, err := installer.New(def, reg,
		installer.WithTelemetry(tel),
		installer.WithHasher(&account.BcryptHasher{Cost: bcrypt.MinCost}),
	)
	require.NoError(t, err)

	return &apiHarness{
		dir:    dir,
		server: NewServer(def.RoutePrefix, func() *installer.Installer { return in }, metrics.Handler(), zerolog.Nop()),
	}
}

func (h *apiHarness) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		outcome setup.Outcome
		success bool
		want    int
	}{
		{setup.OutcomeSuccess, true, http.StatusOK},
		{setup.OutcomeSkipped, true, http.StatusOK},
		{setup.OutcomeValidation, false, http.StatusBadRequest},
		{setup.OutcomePrecondition, false, http.StatusBadRequest},
		{setup.OutcomeConnectivity, false, http.StatusBadRequest},
		{setup.OutcomeConflict, false, http.StatusConflict},
		{setup.OutcomeConfiguration, false, http.StatusInternalServerError},
		{setup.OutcomeInternal, false, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusCode(setup.Result{Success: tt.success, Outcome: tt.outcome}), tt.outcome)
	}
}

func TestAPI_FullFlow(t *testing.T) {
	h := newAPIHarness(t)

	code, body := h.do(t, http.MethodGet, "/install/api/status", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["completed"])
	assert.Equal(t, "database_config", body["next_step"])

	code, body = h.do(t, http.MethodGet, "/install/api/system-check", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "checks")
	assert.Contains(t, body, "can_proceed")

	code, body = h.do(t, http.MethodPost, "/install/api/install-tables", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Database configuration not found. Complete Step 2 first.", body["message"])

	code, body = h.do(t, http.MethodPost, "/install/api/database-config", map[string]interface{}{
		"db_name": filepath.Join(h.dir, "var", "app.db"),
		"host":    "localhost",
		"port":    "3306",
		"db_user": "root",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Field password is required", body["message"])

	code, body = h.do(t, http.MethodPost, "/install/api/database-config", map[string]interface{}{
		"db_name":  filepath.Join(h.dir, "var", "app.db"),
		"host":     "localhost",
		"port":     3306,
		"db_user":  "root",
		"password": "",
	})
	require.Equal(t, http.StatusOK, code, body)

	code, body = h.do(t, http.MethodPost, "/install/api/install-tables", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.EqualValues(t, 1, body["entities_installed"])

	code, body = h.do(t, http.MethodPost, "/install/api/create-admin", map[string]string{"email": "not-an-email", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "email", body["field"])

	admin := map[string]string{"email": "admin@example.com", "password": "hunter12", "fullName": "Admin"}
	code, body = h.do(t, http.MethodPost, "/install/api/create-admin", admin)
	require.Equal(t, http.StatusOK, code, body)

	code, body = h.do(t, http.MethodPost, "/install/api/create-admin", admin)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", body["outcome"])

	code, body = h.do(t, http.MethodPost, "/install/api/smtp-config", map[string]interface{}{"skip": true})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["skipped"])

	code, body = h.do(t, http.MethodPost, "/install/api/smtp-config", map[string]interface{}{
		"smtpHost":   "smtp.example.com",
		"adminEmail": "ADMIN@example.com",
	})
	require.Equal(t, http.StatusOK, code, body)

	code, body = h.do(t, http.MethodPost, "/install/api/app-config", map[string]string{"baseUrl": "https://x/", "basePath": "/"})
	require.Equal(t, http.StatusOK, code, body)
	cfg := body["config"].(map[string]interface{})
	assert.Equal(t, "https://x", cfg["app.base_url"])
	assert.Equal(t, "", cfg["app.base_path"])

	code, body = h.do(t, http.MethodGet, "/install/api/status", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["completed"])

	code, body = h.do(t, http.MethodPost, "/install/api/install-tables", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, false, body["success"])

	code, _ = h.do(t, http.MethodGet, "/install/api/status", nil)
	assert.Equal(t, http.StatusOK, code, "read-only routes stay open after install")
}

func TestAPI_InvalidJSON(t *testing.T) {
	h := newAPIHarness(t)

	code, body := h.do(t, http.MethodPost, "/install/api/database-config", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid JSON data", body["message"])
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	h := newAPIHarness(t)

	code, _ := h.do(t, http.MethodGet, "/install/api/database-config", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestAPI_Metrics(t *testing.T) {
	h := newAPIHarness(t)
	h.do(t, http.MethodGet, "/install/api/status", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "installkit_steps_total")
	assert.Contains(t, rec.Body.String(), "installkit_status_signal")
}

func TestAPI_History(t *testing.T) {
	h := newAPIHarness(t)

	code, body := h.do(t, http.MethodGet, "/install/api/history?limit=5", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []interface{}{}, body["entries"])
}

func TestAPI_SMTPPortAsString(t *testing.T) {
	h := newAPIHarness(t)

	code, body := h.do(t, http.MethodPost, "/install/api/database-config", map[string]interface{}{
		"db_name":  filepath.Join(h.dir, "var", "app.db"),
		"host":     "localhost",
		"port":     3306,
		"db_user":  "root",
		"password": "",
	})
	require.Equal(t, http.StatusOK, code, body)
	code, body = h.do(t, http.MethodPost, "/install/api/install-tables", nil)
	require.Equal(t, http.StatusOK, code, body)
	code, body = h.do(t, http.MethodPost, "/install/api/create-admin", map[string]string{"email": "admin@example.com", "password": "hunter12"})
	require.Equal(t, http.StatusOK, code, body)

	code, body = h.do(t, http.MethodPost, "/install/api/smtp-config", "{\"smtpPort\":\"abc\",\"smtpHost\":\"smtp.example.com\"}")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid JSON data", body["message"])

	code, body = h.do(t, http.MethodPost, "/install/api/smtp-config", map[string]interface{}{
		"smtpHost":     "smtp.example.com",
		"smtpPort":     "2525",
		"smtpUsername": "mailer",
		"adminEmail":   "admin@example.com",
	})
	require.Equal(t, http.StatusOK, code, body)

	data, err := os.ReadFile(filepath.Join(h.dir, "config", "mailer.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "mailer_port: 2525")
}
