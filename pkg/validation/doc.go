// Package validation checks contact-form submissions. Every violated rule is
// reported in one pass, in field order, and batches are validated element by
// element so one bad element never hides the errors of another.
package validation
