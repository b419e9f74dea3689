// Package retry retries transient failures with a pluggable backoff policy.
//
// [Do] runs an operation up to MaxRetries+1 times. The delay before retry n
// is chosen by a [Backoff]; [Linear] gives n*step, the SSH connect policy.
// Errors wrapped with [Fatal] stop retrying immediately.
package retry
