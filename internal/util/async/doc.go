// Package async runs independent tasks concurrently with a bound on how many
// run at once.
//
// [RunParallel] starts tasks in slice order, never cancels siblings when one
// fails, and returns every failure joined together.
package async
