// Package schema provisions tables for registered models. It only ever adds
// structures: missing tables, missing columns and unique indexes.
package schema
