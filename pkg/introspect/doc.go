// Package introspect discovers, by name matching, which fields of a host
// account model play which canonical role (identity, secret, role list,
// display name, active flag and the mail transport settings), and builds the
// table of mutators used to write them.
package introspect
