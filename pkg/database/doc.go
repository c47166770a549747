// Package database stores connection credentials and opens connections to
// the relational store.
//
// Credentials live in a YAML document of the form
//
//	parameters:
//	    dbname: app
//	    host: localhost
//	    port: 3306
//	    user: root
//	    password: ""
//
// Three dialects are supported: mysql (go-sql-driver/mysql), postgres
// (lib/pq) and sqlite (modernc.org/sqlite, dbname is the file path). Each
// dialect knows its DSN, column types, column introspection and how to
// recognize a uniqueness violation.
package database
