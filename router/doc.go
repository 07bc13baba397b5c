// Package router maps decoded messages to registered destinations.
//
// Trace text and debugger packets always go to the log sink; debugger
// packets additionally reach a per-core view when one is open. Window
// command and sample messages route by window name, and traffic for a
// window that has not been created yet is parked in a bounded per-name
// queue, delivered in order the moment the destination registers. Taps
// observe the full routed stream, which is how the broker mirror sees
// every message.
package router
