// Package batch upgrades a list of hosts and collects their outcomes.
//
// Hosts run independently: a failing host is recorded and the batch moves
// on. Optionally the first connection failure stops the batch, leaving hosts
// that have not started marked as skipped. With Parallelism above one, hosts
// run on a bounded pool, but each host's OS phase always completes before
// its firmware phase starts.
package batch
