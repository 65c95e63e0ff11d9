// Package mail is the primary delivery channel. It renders a form submission
// into a plain-text email and hands it to an SMTP server through gomail.
//
// A Sender performs exactly one delivery attempt per call; retrying is the
// dispatcher's job.
package mail
