// Package appconfig writes the final application parameters, links them
// into services.yaml and records the completion marker.
package appconfig
