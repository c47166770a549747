package mailer

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/installkit/installkit/pkg/database"
	"github.com/installkit/installkit/pkg/introspect"
	"github.com/installkit/installkit/pkg/model"
	"github.com/installkit/installkit/pkg/schema"
	"github.com/installkit/installkit/pkg/setup"
)

type Member struct {
	ID            int64  `db:"id,pk"`
	Email         string `db:"email,unique"`
	Password      string
	SmtpHost      string
	SmtpPort      int
	SmtpUsername  string
	SmtpPassword  string
	SmtpFromEmail string
}

func (m *Member) AccountIdentifier() string { return m.Email }

type Page struct {
	ID    int64
	Title string
}

type fixture struct {
	registry *model.Registry
	store    *Store
	conn     *database.Conn
	record   string
}

func newFixture(t *testing.T, models ...interface{}) *fixture {
	t.Helper()
	reg := model.NewRegistry()
	reg.MustRegister(models...)
	in := introspect.New(reg, zerolog.Nop())

	dir := t.TempDir()
	connector, _ := database.NewConnector("sqlite", "")
	conn, err := connector.Open(context.Background(), database.ConnectionConfig{DBName: filepath.Join(dir, "app.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	names := make([]string, 0)
	for _, m := range reg.Models() {
		names = append(names, m.Name)
	}
	if res := schema.NewProvisioner(reg, zerolog.Nop()).Install(context.Background(), conn, names); !res.Success {
		t.Fatalf("schema: %s", res.Message)
	}

	record := filepath.Join(dir, "config", "mailer.yaml")
	return &fixture{
		registry: reg,
		store:    NewStore(in, record, zerolog.Nop()),
		conn:     conn,
		record:   record,
	}
}

func (f *fixture) insertMember(t *testing.T, email string) {
	t.Helper()
	if _, err := f.conn.DB().Exec(`INSERT INTO member (email, password) VALUES (?, 'x')`, email); err != nil {
		t.Fatal(err)
	}
}

func TestSave_Skip(t *testing.T) {
	// A skip never touches the store, so even a nil connection is fine
	store := NewStore(nil, filepath.Join(t.TempDir(), "mailer.yaml"), zerolog.Nop())

	res := store.Save(context.Background(), nil, nil, nil, Settings{Skip: true}, "")
	if !res.Success {
		t.Fatalf("skip must succeed: %s", res.Message)
	}
	if v, _ := res.Get("skipped"); v != true {
		t.Error("expected skipped=true")
	}
	if store.RecordExists() {
		t.Error("skip must not write the side record")
	}
}

func TestSave_MostRecentAccount(t *testing.T) {
	f := newFixture(t, &Page{}, &Member{})
	f.insertMember(t, "first@example.com")
	f.insertMember(t, "second@example.com")

	res := f.store.Save(context.Background(), f.conn, nil, nil, Settings{
		Host:      "smtp.example.com",
		Port:      2525,
		User:      "mailer",
		Password:  "secret",
		FromEmail: "noreply@example.com",
		FromName:  "Example",
	}, "")
	if !res.Success {
		t.Fatalf("save failed: %s", res.Message)
	}
	if n, _ := res.Get("fields_updated"); n != 5 {
		t.Errorf("expected 5 mapped fields updated, got %v", n)
	}

	var host string
	_ = f.conn.DB().Get(&host, `SELECT COALESCE(smtp_host, '') FROM member WHERE email = 'second@example.com'`)
	if host != "smtp.example.com" {
		t.Errorf("most recent account should be updated, got host %q", host)
	}
	_ = f.conn.DB().Get(&host, `SELECT COALESCE(smtp_host, '') FROM member WHERE email = 'first@example.com'`)
	if host != "" {
		t.Errorf("older account must stay untouched, got host %q", host)
	}

	rec, err := f.store.ReadRecord()
	if err != nil || rec == nil {
		t.Fatalf("side record missing: %v", err)
	}
	p := rec.Parameters
	if p.Transport != "smtp" || p.Host != "smtp.example.com" || p.Port != 2525 || p.Encryption != DefaultEncryption || p.FromName != "Example" {
		t.Errorf("unexpected side record: %+v", p)
	}
}

func TestSave_TargetIdentity(t *testing.T) {
	f := newFixture(t, &Member{})
	f.insertMember(t, "first@example.com")
	f.insertMember(t, "second@example.com")

	res := f.store.Save(context.Background(), f.conn, nil, nil, Settings{Host: "mail.local"}, " First@Example.com")
	if !res.Success {
		t.Fatalf("save failed: %s", res.Message)
	}

	var host string
	_ = f.conn.DB().Get(&host, `SELECT COALESCE(smtp_host, '') FROM member WHERE email = 'first@example.com'`)
	if host != "mail.local" {
		t.Errorf("target account should be updated, got %q", host)
	}

	rec, _ := f.store.ReadRecord()
	if rec.Parameters.Port != DefaultPort {
		t.Errorf("expected default port %d, got %d", DefaultPort, rec.Parameters.Port)
	}
}

func TestSave_NoAccount(t *testing.T) {
	f := newFixture(t, &Member{})

	res := f.store.Save(context.Background(), f.conn, nil, nil, Settings{Host: "mail.local"}, "")
	if res.Success || res.Outcome != setup.OutcomePrecondition {
		t.Errorf("expected precondition failure, got %+v", res)
	}

	res = f.store.Save(context.Background(), f.conn, nil, nil, Settings{Host: "mail.local"}, "nobody@example.com")
	if res.Outcome != setup.OutcomePrecondition {
		t.Errorf("expected precondition failure for unknown identity, got %s", res.Outcome)
	}
	if f.store.RecordExists() {
		t.Error("failed save must not write the side record")
	}
}

func TestSave_NoAccountModel(t *testing.T) {
	f := newFixture(t, &Page{})

	res := f.store.Save(context.Background(), f.conn, nil, nil, Settings{Host: "mail.local"}, "")
	if res.Success || res.Outcome != setup.OutcomeConfiguration {
		t.Errorf("expected configuration failure, got %+v", res)
	}
}

func TestPort_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input   string
		want    Port
		wantErr bool
	}{
		{`{"smtpPort":587}`, 587, false},
		{`{"smtpPort":"2525"}`, 2525, false},
		{`{"smtpPort":""}`, 0, false},
		{`{"smtpPort":null}`, 0, false},
		{`{}`, 0, false},
		{`{"smtpPort":"abc"}`, 0, true},
		{`{"smtpPort":70000}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var s Settings
			err := json.Unmarshal([]byte(tt.input), &s)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && s.Port != tt.want {
				t.Errorf("Port = %d, want %d", s.Port, tt.want)
			}
		})
	}
}
