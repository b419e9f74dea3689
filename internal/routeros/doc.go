// Package routeros knows the RouterOS console: the fixed command lines the
// upgrader issues, the "key: value" text those commands print, and how
// RouterOS version strings order.
//
// Output is parsed into a [Record] restricted to the [AttributeSet] declared
// for each command, then decoded into a typed result such as [Resource]
// whose optional fields stay nil when the device did not print them.
package routeros
