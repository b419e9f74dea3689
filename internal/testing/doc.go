// Package testing provides test doubles shared across package tests.
//
//   - FakeConnector and FakeDevice script RouterOS console output per command
//     and record every command and session lifecycle event.
//   - FakeProbe returns scripted reachability results.
//   - TestContext returns a bounded context carrying a test logger.
//
// Usage:
//
//	conn := testing.NewFakeConnector()
//	conn.Device("r1").
//	    Respond("/system resource print", "version: 7.14 (stable)").
//	    OnStart("/system package update install", func(d *testing.FakeDevice) {
//	        d.Respond("/system resource print", "version: 7.15 (stable)")
//	    })
package testing
