package introspect

import (
	"encoding/json"

	"github.com/installkit/installkit/pkg/model"
)

// Role is a canonical field purpose, independent of host field names.
type Role string

const (
	RoleIdentity             Role = "identity"
	RoleSecret               Role = "secret"
	RoleRoleList             Role = "roleList"
	RoleDisplayName          Role = "displayName"
	RoleActiveFlag           Role = "activeFlag"
	RoleTransportHost        Role = "transportHost"
	RoleTransportPort        Role = "transportPort"
	RoleTransportUser        Role = "transportUser"
	RoleTransportSecret      Role = "transportSecret"
	RoleTransportEncryption  Role = "transportEncryption"
	RoleTransportFromAddress Role = "transportFromAddress"
	RoleTransportFromName    Role = "transportFromName"
)

// Roles is the closed role set in matching order.
var Roles = []Role{
	RoleIdentity,
	RoleSecret,
	RoleRoleList,
	RoleDisplayName,
	RoleActiveFlag,
	RoleTransportHost,
	RoleTransportPort,
	RoleTransportUser,
	RoleTransportSecret,
	RoleTransportEncryption,
	RoleTransportFromAddress,
	RoleTransportFromName,
}

// TransportRoles are the roles written by transport configuration.
var TransportRoles = []Role{
	RoleTransportHost,
	RoleTransportPort,
	RoleTransportUser,
	RoleTransportSecret,
	RoleTransportEncryption,
	RoleTransportFromAddress,
	RoleTransportFromName,
}

// aliases lists the lower-case field names accepted per role.
var aliases = map[Role][]string{
	RoleIdentity:             {"email", "username", "user", "login"},
	RoleSecret:               {"password"},
	RoleRoleList:             {"roles"},
	RoleDisplayName:          {"fullname", "full_name", "name", "displayname"},
	RoleActiveFlag:           {"isactive", "is_active", "active", "enabled", "status"},
	RoleTransportHost:        {"smtphost", "smtp_host", "mailhost", "mail_host"},
	RoleTransportPort:        {"smtpport", "smtp_port", "mailport", "mail_port"},
	RoleTransportUser:        {"smtpusername", "smtp_username", "smtpuser", "smtp_user", "mailuser", "mail_user"},
	RoleTransportSecret:      {"smtppassword", "smtp_password", "smtppass", "smtp_pass", "mailpassword", "mail_password"},
	RoleTransportEncryption:  {"smtpencryption", "smtp_encryption", "mailencryption", "mail_encryption", "smtptls", "smtp_tls"},
	RoleTransportFromAddress: {"smtpfromemail", "smtp_from_email", "mailfrom", "mail_from", "fromemail", "from_email"},
	RoleTransportFromName:    {"smtpfromname", "smtp_from_name", "mailfromname", "mail_from_name", "fromname", "from_name"},
}

// Valid reports whether r is one of the canonical roles.
func (r Role) Valid() bool {
	_, ok := aliases[r]
	return ok
}

// FieldMap maps every canonical role to a field name, "" meaning absent.
// Every role is always a key.
type FieldMap map[Role]string

func newFieldMap() FieldMap {
	fm := make(FieldMap, len(Roles))
	for _, r := range Roles {
		fm[r] = ""
	}
	return fm
}

// Field returns the field mapped to r.
func (fm FieldMap) Field(r Role) (string, bool) {
	name := fm[r]
	return name, name != ""
}

// Column returns the storage column of the field mapped to r.
func (fm FieldMap) Column(m *model.Model, r Role) (string, bool) {
	name, ok := fm.Field(r)
	if !ok {
		return "", false
	}
	f, ok := m.Field(name)
	if !ok {
		return "", false
	}
	return f.Column, true
}

// MarshalJSON encodes absent roles as null.
func (fm FieldMap) MarshalJSON() ([]byte, error) {
	out := make(map[string]*string, len(Roles))
	for _, r := range Roles {
		if name, ok := fm.Field(r); ok {
			n := name
			out[string(r)] = &n
		} else {
			out[string(r)] = nil
		}
	}
	return json.Marshal(out)
}
