// Package sms is the secondary delivery channel used to escalate a submission
// whose email could not be delivered. It talks to a Twilio-compatible REST API.
package sms
