// Package requirements runs the static environment check list: Go runtime
// version, registered SQL drivers, writable directories and free disk space.
// Only critical failures block the installation.
package requirements
