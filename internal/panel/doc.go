// Package panel implements the driver for the NX-587E virtual keypad module
// used by NX-series alarm panels.
//
// The NX-587E exposes panel state over a 9600 baud serial link as compact
// ASCII lines and accepts single-character keypad commands, numeric user
// codes, and a configuration string. This package turns that byte stream into
// typed state-change notifications and provides a small command API.
//
// # Architecture
//
// The driver runs one supervisor goroutine plus, per active session, three
// workers connected by channels:
//
//	serial port ──► reader ──► raw lines ──► processor ──► device bank ──► OnEvent
//	commands    ──► writer ──► serial port
//
// The supervisor probes the serial port for availability, establishes a
// session, rehydrates the full device state with direct queries, and tears
// the session down and re-probes on any transport fault (for example a USB
// adapter being unplugged). State is never carried across sessions; every
// reconnect rebuilds the device bank from a full poll.
//
// # Wire format
//
// A status line is `<2-char category code><id digits><topic characters>`,
// e.g. "ZN002FttBaillb": zone 2, with each payload character mapping
// positionally onto the category's topic list, upper case meaning true.
// Lines with an unknown category prefix are dropped silently; the protocol
// has no checksum, so tolerating noise is the correct policy.
//
// # Thread Safety
//
// All exported methods on Controller are safe for concurrent use. The device
// bank is mutated only by the processor worker; reads via Status are
// mutex-guarded.
package panel
