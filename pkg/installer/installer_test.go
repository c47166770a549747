package installer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/installkit/installkit/pkg/account"
	"github.com/installkit/installkit/pkg/config"
	"github.com/installkit/installkit/pkg/database"
	"github.com/installkit/installkit/pkg/mailer"
	"github.com/installkit/installkit/pkg/model"
	"github.com/installkit/installkit/pkg/setup"
	"github.com/installkit/installkit/pkg/stores"
	"github.com/installkit/installkit/pkg/telemetry"
)

type User struct {
	ID           int64  `db:"id,pk"`
	Email        string `db:"email,unique"`
	Password     string
	Roles        []string
	FullName     string
	IsActive     bool
	SmtpHost     string
	SmtpPort     int
	SmtpUsername string
	SmtpPassword string
}

func (u *User) AccountIdentifier() string { return u.Email }

const definition = `
entities: [User]
database:
  driver: sqlite
requirements:
  min_free_disk_mb: 1
`

type harness struct {
	dir       string
	def       *config.Definition
	installer *Installer
	journal   *stores.SQLiteStore
	metrics   *telemetry.Metrics
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	dir := t.TempDir()

	def, err := config.Parse([]byte(definition), dir)
	if err != nil {
		t.Fatalf("parse definition: %v", err)
	}

	journal, err := stores.NewSQLiteStore(stores.Config{Path: def.JournalPath})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := journal.Init(ctx); err != nil {
		t.Fatalf("journal init: %v", err)
	}
	if err := journal.Migrate(ctx); err != nil {
		t.Fatalf("journal migrate: %v", err)
	}
	t.Cleanup(func() { _ = journal.Close() })

	tel := telemetry.NewNop()
	metrics, err := telemetry.NewMetrics(telemetry.DefaultConfig().Metrics)
	if err != nil {
		t.Fatal(err)
	}
	tel.Metrics = metrics

	reg := model.NewRegistry()
	reg.MustRegister(&User{})

	opts = append([]Option{
		WithTelemetry(tel),
		WithJournal(journal),
		WithHasher(&account.BcryptHasher{Cost: bcrypt.MinCost}),
	}, opts...)
	in, err := New(def, reg, opts...)
	if err != nil {
		t.Fatalf("new installer: %v", err)
	}

	return &harness{dir: dir, def: def, installer: in, journal: journal, metrics: metrics}
}

func (h *harness) connectionRequest() ConnectionRequest {
	empty := ""
	return ConnectionRequest{
		DBName:   filepath.Join(h.dir, "var", "app.db"),
		Host:     "localhost",
		Port:     3306,
		User:     "root",
		Password: &empty,
	}
}

func statusOf(t *testing.T, res setup.Result) setup.InstallationStatus {
	t.Helper()
	v, ok := res.Get("status")
	if !ok {
		t.Fatalf("status result has no status: %+v", res)
	}
	return v.(setup.InstallationStatus)
}

func TestInstall_EndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	in := h.installer

	for _, d := range []string{"config", "var"} {
		if err := os.MkdirAll(filepath.Join(h.dir, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(h.dir, ".env"), []byte("APP_ENV=prod\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if st := statusOf(t, in.Status(ctx)); st != (setup.InstallationStatus{}) {
		t.Fatalf("fresh status should be all false: %+v", st)
	}

	res := in.CheckEnvironment(ctx)
	if !res.Success {
		t.Fatalf("environment check: %s", res.Message)
	}
	if v, _ := res.Get("can_proceed"); v != true {
		t.Errorf("environment should allow proceeding: %+v", res.Extra)
	}

	res = in.SaveConnection(ctx, h.connectionRequest())
	if !res.Success {
		t.Fatalf("save connection: %s", res.Message)
	}
	if v, _ := res.Get("env_updated"); v != true {
		t.Error("existing .env should receive DATABASE_URL")
	}
	env, _ := os.ReadFile(filepath.Join(h.dir, ".env"))
	if !strings.Contains(string(env), "DATABASE_URL=") || !strings.Contains(string(env), "APP_ENV=") {
		t.Errorf("unexpected .env content: %s", env)
	}

	st := statusOf(t, in.Status(ctx))
	if !st.ConnectionConfigured || st.SchemaInstalled || st.AccountProvisioned || st.AppConfigured {
		t.Fatalf("after connection: %+v", st)
	}

	res = in.InstallSchema(ctx)
	if !res.Success {
		t.Fatalf("install schema: %s", res.Message)
	}
	if n, _ := res.Get("entities_installed"); n != 1 {
		t.Errorf("entities_installed = %v", n)
	}
	if res = in.InstallSchema(ctx); !res.Success {
		t.Fatalf("second install should be idempotent: %s", res.Message)
	}

	admin := account.Data{Identity: "admin@example.com", Secret: "hunter12"}
	if res = in.CreateAccount(ctx, admin); !res.Success {
		t.Fatalf("create account: %s", res.Message)
	}
	if res = in.CreateAccount(ctx, admin); res.Outcome != setup.OutcomeConflict {
		t.Fatalf("second create should conflict, got %s: %s", res.Outcome, res.Message)
	}

	st = statusOf(t, in.Status(ctx))
	if !st.ConnectionConfigured || !st.SchemaInstalled || !st.AccountProvisioned || !st.TransportConfigured || st.AppConfigured {
		t.Fatalf("after account: %+v", st)
	}

	res = in.SaveTransport(ctx, mailer.Settings{Host: "smtp.example.com", Port: 2525, User: "mailer", Password: "pw"}, "")
	if !res.Success {
		t.Fatalf("save transport: %s", res.Message)
	}

	res = in.SaveAppParameters(ctx, map[string]interface{}{"baseUrl": "https://x", "basePath": "/"})
	if !res.Success {
		t.Fatalf("save app parameters: %s", res.Message)
	}

	res = in.Status(ctx)
	if v, _ := res.Get("completed"); v != true {
		t.Fatalf("installation should be complete: %+v", res.Extra)
	}
	if !in.Installed() {
		t.Error("marker should exist")
	}
	if st := statusOf(t, res); !st.TransportRecord {
		t.Error("transport record should be reported")
	}

	entries, err := h.journal.List(ctx, stores.Filter{}, 50, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 7 {
		t.Errorf("expected 7 journaled steps, got %d", len(entries))
	}
	if entries[0].Step != StepSaveApp || entries[0].Outcome != setup.OutcomeSuccess {
		t.Errorf("latest entry should be the app step: %+v", entries[0])
	}

	families, err := h.metrics.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	counted := false
	for _, f := range families {
		if f.GetName() == "installkit_steps_total" && len(f.GetMetric()) > 0 {
			counted = true
		}
	}
	if !counted {
		t.Error("steps should be counted")
	}
}

func TestSaveConnection_Validation(t *testing.T) {
	empty := ""
	tests := []struct {
		name      string
		req       ConnectionRequest
		wantField string
	}{
		{"missing db name", ConnectionRequest{Host: "h", Port: 3306, User: "u", Password: &empty}, "db_name"},
		{"missing host", ConnectionRequest{DBName: "d", Port: 3306, User: "u", Password: &empty}, "host"},
		{"missing port", ConnectionRequest{DBName: "d", Host: "h", User: "u", Password: &empty}, "port"},
		{"missing user", ConnectionRequest{DBName: "d", Host: "h", Port: "3306", Password: &empty}, "db_user"},
		{"missing password key", ConnectionRequest{DBName: "d", Host: "h", Port: 3306, User: "u"}, "password"},
		{"non-numeric port", ConnectionRequest{DBName: "d", Host: "h", Port: "abc", User: "u", Password: &empty}, "port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			res := h.installer.SaveConnection(context.Background(), tt.req)
			if res.Outcome != setup.OutcomeValidation || res.Field != tt.wantField {
				t.Errorf("outcome=%s field=%s, want validation/%s", res.Outcome, res.Field, tt.wantField)
			}
			if _, err := os.Stat(h.def.Database.ConfigPath); err == nil {
				t.Error("nothing should be written on validation failure")
			}
		})
	}
}

func TestConnectionRequest_PortAsString(t *testing.T) {
	pw := "secret"
	cfg, err := ConnectionRequest{DBName: "app", Host: " db ", Port: "5432", User: "app", Password: &pw}.Config()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 5432 || cfg.Host != "db" || !cfg.PasswordSet {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestSteps_RequireConnectionConfig(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for name, res := range map[string]setup.Result{
		"schema":    h.installer.InstallSchema(ctx),
		"account":   h.installer.CreateAccount(ctx, account.Data{Identity: "a@b.c", Secret: "x"}),
		"transport": h.installer.SaveTransport(ctx, mailer.Settings{Host: "smtp"}, ""),
	} {
		if res.Outcome != setup.OutcomePrecondition {
			t.Errorf("%s: expected precondition, got %s (%s)", name, res.Outcome, res.Message)
		}
	}
}

func TestSaveTransport_SkipAlwaysSucceeds(t *testing.T) {
	h := newHarness(t)
	res := h.installer.SaveTransport(context.Background(), mailer.Settings{Skip: true}, "")
	if !res.Success {
		t.Fatalf("skip should succeed: %s", res.Message)
	}
	if v, _ := res.Get("skipped"); v != true {
		t.Error("expected skipped=true")
	}
}

type panickingOpener struct{}

func (panickingOpener) Open(context.Context, database.ConnectionConfig) (*database.Conn, error) {
	panic("driver exploded")
}

func TestRun_RecoversPanics(t *testing.T) {
	h := newHarness(t, WithOpener(panickingOpener{}))
	ctx := context.Background()

	cfg, _ := h.connectionRequest().Config()
	store := database.NewConfigStore(h.def.Database.ConfigPath, nil, h.installer.logger)
	if err := store.Write(cfg); err != nil {
		t.Fatal(err)
	}

	res := h.installer.InstallSchema(ctx)
	if res.Success || res.Outcome != setup.OutcomeInternal {
		t.Fatalf("expected internal failure, got %+v", res)
	}

	entries, _ := h.journal.List(ctx, stores.Filter{}, 10, 0)
	if len(entries) != 1 || entries[0].Outcome != setup.OutcomeInternal {
		t.Errorf("panicked step should be journaled: %+v", entries)
	}
}

func TestHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.installer.InstallSchema(ctx)
	res := h.installer.History(ctx, stores.Filter{}, 10, 0)
	if !res.Success {
		t.Fatalf("history: %s", res.Message)
	}
	v, _ := res.Get("entries")
	if entries := v.([]*stores.Entry); len(entries) != 1 || entries[0].Step != StepInstallSchema {
		t.Errorf("unexpected history %+v", entries)
	}
}

func TestAccountFields(t *testing.T) {
	h := newHarness(t)
	res := h.installer.AccountFields()
	if !res.Success {
		t.Fatalf("account fields: %s", res.Message)
	}
	if v, _ := res.Get("model"); v != "User" {
		t.Errorf("model = %v", v)
	}
}
