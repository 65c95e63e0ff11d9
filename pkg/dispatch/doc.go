// Package dispatch drives every accepted submission to a terminal state.
//
// A Dispatcher owns a Queue of Jobs and a pool of workers. Each worker takes
// one job, makes exactly one attempt on the primary channel and either marks
// it delivered or schedules the next attempt on a clock timer that puts the
// job back on the queue once its backoff delay has elapsed. A job that used
// up its attempts is escalated: an alert goes out on the secondary channel and
// a record is appended to the fallback store, independently of each other.
//
// Queues:
//   - MemoryQueue: bounded channel, lost on restart.
//   - RedisQueue: Redis list (LPUSH/BRPOP), survives restarts.
package dispatch
