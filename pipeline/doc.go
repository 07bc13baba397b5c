// Package pipeline is the single-threaded core of the decoder.
//
// One goroutine owns the frame extractor, the reset controller, the router,
// and the log sink. Byte chunks from the serial input, logical reset
// transitions, destination changes, and flush-timer fires all enter a
// bounded FIFO queue and apply strictly in arrival order, which gives the
// system its central ordering guarantee: data fed before a reset is decoded
// in the old session epoch, data fed after decodes in the new one, and no
// message ever interleaves across the boundary.
//
// Collaborators on other goroutines interact through the context-aware
// producer methods (Feed, SetAsserted, Register) and use Do to run a
// closure on the loop when they need a consistent view of loop-owned
// state, such as a display snapshot.
package pipeline
