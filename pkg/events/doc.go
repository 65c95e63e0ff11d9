// Package events publishes the terminal state of every notification job
// (delivered, escalated or dropped) to one or more sinks: the structured log
// and optionally a Kafka topic.
package events
