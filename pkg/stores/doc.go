// Package stores provides the installer's own persistence: an append-only
// journal of step attempts kept in a local SQLite file, migrated with
// embedded golang-migrate migrations.
//
// The journal is an audit trail. It is never consulted to derive the
// installation status.
package stores
