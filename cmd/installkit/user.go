package main

// User is the account model of a standalone deployment. Hosts embedding the
// installer register their own models instead.
type User struct {
	ID       int64  `db:"id,pk"`
	Email    string `db:"email,unique"`
	Password string
	Roles    []string
	FullName string
	IsActive bool

	SmtpHost       string
	SmtpPort       int
	SmtpUsername   string
	SmtpPassword   string
	SmtpEncryption string
	SmtpFromEmail  string
	SmtpFromName   string
}

// AccountIdentifier implements setup.Account.
func (u *User) AccountIdentifier() string {
	return u.Email
}
