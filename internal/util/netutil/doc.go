// Package netutil waits for hosts to come back on the network.
//
// A Waiter polls a Probe until it succeeds or a deadline passes. Two probes
// are provided: ICMPProbe sends echo requests, TCPProbe dials a port (usually
// the SSH port) for environments where raw sockets are not permitted.
package netutil
