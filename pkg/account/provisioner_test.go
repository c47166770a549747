package account

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/installkit/installkit/pkg/database"
	"github.com/installkit/installkit/pkg/introspect"
	"github.com/installkit/installkit/pkg/model"
	"github.com/installkit/installkit/pkg/schema"
	"github.com/installkit/installkit/pkg/setup"
)

type User struct {
	ID       int64  `db:"id,pk"`
	Email    string `db:"email,unique"`
	Password string
	Roles    []string
	FullName string
	IsActive bool
}

func (u *User) AccountIdentifier() string { return u.Email }

type Operator struct {
	ID       int64
	Login    string `db:"login,unique"`
	Password string
}

func (o *Operator) AccountIdentifier() string { return o.Login }

type Anonymous struct {
	ID    int64
	Title string
}

type fixture struct {
	registry     *model.Registry
	introspector *introspect.Introspector
	provisioner  *Provisioner
	hasher       *BcryptHasher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := model.NewRegistry()
	reg.MustRegister(&User{}, &Operator{}, &Anonymous{})
	in := introspect.New(reg, zerolog.Nop())
	hasher := &BcryptHasher{Cost: bcrypt.MinCost}
	return &fixture{
		registry:     reg,
		introspector: in,
		provisioner:  NewProvisioner(in, hasher, nil, zerolog.Nop()),
		hasher:       hasher,
	}
}

func (f *fixture) sqlite(t *testing.T, entities ...string) *database.Conn {
	t.Helper()
	connector, _ := database.NewConnector("sqlite", "")
	conn, err := connector.Open(context.Background(), database.ConnectionConfig{
		DBName: filepath.Join(t.TempDir(), "app.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	res := schema.NewProvisioner(f.registry, zerolog.Nop()).Install(context.Background(), conn, entities)
	if !res.Success {
		t.Fatalf("schema install failed: %s", res.Message)
	}
	return conn
}

func (f *fixture) model(t *testing.T, name string) (*model.Model, introspect.FieldMap) {
	t.Helper()
	m, err := f.registry.Resolve(name)
	if err != nil {
		t.Fatal(err)
	}
	return m, f.introspector.DetectFields(m)
}

func TestCreate_ThenConflict(t *testing.T) {
	f := newFixture(t)
	conn := f.sqlite(t, "User")
	m, fm := f.model(t, "User")
	ctx := context.Background()

	data := Data{Identity: "  Admin@Example.com ", Secret: "hunter12", DisplayName: " Site Admin "}

	res := f.provisioner.Create(ctx, conn, m, fm, data)
	if !res.Success {
		t.Fatalf("first create failed: %s", res.Message)
	}

	var row struct {
		Email    string `db:"email"`
		Password string `db:"password"`
		Roles    string `db:"roles"`
		FullName string `db:"full_name"`
		IsActive bool   `db:"is_active"`
	}
	if err := conn.DB().Get(&row, `SELECT email, password, roles, full_name, is_active FROM user`); err != nil {
		t.Fatalf("select: %v", err)
	}
	if row.Email != "admin@example.com" {
		t.Errorf("identity should be trimmed and lower-cased, got %q", row.Email)
	}
	if row.Password == "hunter12" || !f.hasher.Verify(row.Password, "hunter12") {
		t.Error("secret should be stored hashed")
	}
	if row.Roles != `["ROLE_ADMIN"]` {
		t.Errorf("unexpected roles %q", row.Roles)
	}
	if row.FullName != "Site Admin" || !row.IsActive {
		t.Errorf("unexpected display name/active flag: %q %v", row.FullName, row.IsActive)
	}

	res = f.provisioner.Create(ctx, conn, m, fm, data)
	if res.Success {
		t.Fatal("second create must fail")
	}
	if res.Outcome != setup.OutcomeConflict {
		t.Errorf("expected conflict outcome, got %s (%s)", res.Outcome, res.Message)
	}

	var count int
	_ = conn.DB().Get(&count, `SELECT COUNT(*) FROM user`)
	if count != 1 {
		t.Errorf("expected exactly one account, got %d", count)
	}
}

func TestCreate_SkipsAbsentRoles(t *testing.T) {
	f := newFixture(t)
	conn := f.sqlite(t, "Operator")
	m, fm := f.model(t, "Operator")

	// Login is not email-like, so no address syntax check applies
	res := f.provisioner.Create(context.Background(), conn, m, fm, Data{Identity: "Root", Secret: "pw", DisplayName: "ignored"})
	if !res.Success {
		t.Fatalf("create failed: %s", res.Message)
	}

	var login string
	_ = conn.DB().Get(&login, `SELECT login FROM operator`)
	if login != "root" {
		t.Errorf("expected normalized login, got %q", login)
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	m, fm := f.model(t, "User")

	tests := []struct {
		name  string
		data  Data
		field string
	}{
		{"missing identity", Data{Secret: "pw"}, "email"},
		{"blank identity", Data{Identity: "   ", Secret: "pw"}, "email"},
		{"malformed email", Data{Identity: "not-an-email", Secret: "pw"}, "email"},
		{"missing secret", Data{Identity: "a@example.com"}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// No connection: validation must fail before any store access
			res := f.provisioner.Create(context.Background(), nil, m, fm, tt.data)
			if res.Success || res.Outcome != setup.OutcomeValidation {
				t.Fatalf("expected validation failure, got %+v", res)
			}
			if res.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, res.Field)
			}
		})
	}
}

func TestCreate_MissingIdentityRole(t *testing.T) {
	f := newFixture(t)
	m, fm := f.model(t, "Anonymous")

	res := f.provisioner.Create(context.Background(), nil, m, fm, Data{Identity: "a@example.com", Secret: "pw"})
	if res.Outcome != setup.OutcomeConfiguration {
		t.Errorf("expected configuration outcome, got %s", res.Outcome)
	}
}

func TestCreate_UniqueViolationAtInsert(t *testing.T) {
	f := newFixture(t)
	m, fm := f.model(t, "User")

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	d, _ := database.DialectFor("mysql")
	conn := database.NewConn(sqlx.NewDb(db, "mysql"), d)

	// The pre-check sees nothing; a concurrent request wins the insert
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `user` WHERE `email` = \\?").
		WithArgs("admin@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO `user`").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	res := f.provisioner.Create(context.Background(), conn, m, fm, Data{Identity: "admin@example.com", Secret: "pw"})
	if res.Outcome != setup.OutcomeConflict {
		t.Errorf("expected conflict outcome, got %s (%s)", res.Outcome, res.Message)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreate_LookupFailure(t *testing.T) {
	f := newFixture(t)
	m, fm := f.model(t, "User")

	db, mock, _ := sqlmock.New()
	defer db.Close()
	d, _ := database.DialectFor("mysql")
	conn := database.NewConn(sqlx.NewDb(db, "mysql"), d)

	mock.ExpectQuery("SELECT COUNT").WillReturnError(&mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"})

	res := f.provisioner.Create(context.Background(), conn, m, fm, Data{Identity: "admin@example.com", Secret: "pw"})
	if res.Success || res.Outcome != setup.OutcomeInternal {
		t.Errorf("expected internal failure, got %+v", res)
	}
}

func TestBcryptHasher(t *testing.T) {
	h := &BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := h.Hash("hunter12")
	if err != nil {
		t.Fatal(err)
	}
	if !h.Verify(hash, "hunter12") || h.Verify(hash, "wrong") {
		t.Error("hash verification mismatch")
	}
}
