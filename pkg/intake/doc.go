// Package intake is the HTTP entry point of the delivery pipeline. Its
// controller admits a request through the rate limiter, validates the
// submission (or every element of a batch) and hands valid submissions to the
// dispatcher.
//
// Two acknowledgement policies are supported:
//   - immediate: answer as soon as the job is queued.
//   - first-attempt: answer after the first delivery attempt; retries continue
//     in the background when it fails.
package intake
