// Package clock abstracts wall-clock reads and context-aware sleeping so that
// polling loops and settle delays can be driven by a fake clock in tests.
//
// It builds on k8s.io/utils/clock: [Real] wraps the real clock and [Fake]
// wraps the stepping fake from k8s.io/utils/clock/testing.
package clock
