// Package frame decodes the debug probe's serial byte stream into typed
// messages.
//
// Three frame grammars share the stream, discriminated by the byte at frame
// start:
//
//   - Binary debugger packets: a marker byte in the reserved range selects
//     the source core, a little-endian uint16 declares the payload length,
//     and exactly that many payload bytes follow. The declared length alone
//     decides the frame end; payload bytes are never pattern-scanned, so
//     identical back-to-back packets each extract exactly once.
//   - Window frames: a backtick, a window name, a body, terminated by LF.
//     A body whose first token starts with a letter is a WindowCommand;
//     anything else is a WindowSample carrying the raw body.
//   - Text lines: any other leading byte starts a LF-terminated trace line,
//     attributed to a core when it carries a CogN prefix.
//
// The Extractor is a resumable state machine: partial frames survive across
// Feed calls, corrupt input resynchronizes one byte at a time with a Warning
// per skipped frame start, and Reset discards in-flight state at a session
// boundary. It performs no locking and no I/O; the pipeline goroutine owns
// it and collaborators never touch it directly.
package frame
