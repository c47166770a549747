// Package status derives the installation status from live signals.
//
// Nothing is persisted: each query reads the connection config, probes the
// relational store and checks the completion marker. A failed probe never
// surfaces as an error; it turns the affected signals false.
package status
