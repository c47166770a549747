// Package account provisions the single privileged account on a host model
// whose fields are discovered at runtime, and provides the bcrypt password
// hasher.
package account
