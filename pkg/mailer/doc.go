// Package mailer stores outbound mail transport settings on the privileged
// account and mirrors them to a side YAML record. Skipping the step always
// succeeds.
package mailer
