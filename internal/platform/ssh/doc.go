// Package ssh opens password-authenticated SSH sessions to RouterOS devices.
//
// [Client.Connect] dials with bounded retries and a linearly increasing
// delay, so a device that is still finishing its boot gets a few chances.
// The returned [Session] runs console commands and must be closed; use
// [WithSession] to scope it.
//
// Security: by default any host key is accepted on every connection and
// nothing is remembered. This is a deliberate convenience, not a security
// feature: routers are addressed by management IP and re-keyed on reinstall.
// Supply Config.HostKeyCallback to verify keys.
package ssh
