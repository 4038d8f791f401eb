// Package worker implements the background pool that drains the task
// queue. Each worker dequeues a task id, selects a provider account,
// records an assignment for the attempt, executes the provider call and
// settles the outcome. Failed attempts are retried up to a configured
// maximum by re-enqueueing the task at its original priority; selection
// exhaustion fails the task immediately.
package worker
