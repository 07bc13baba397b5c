// Package serial provides the serial-port input component for the decode pipeline.
//
// # Overview
//
// The serial input owns the probe's USB-serial device. It reads raw byte
// chunks with a short read deadline and feeds them, in arrival order, to the
// pipeline; the frame extractor handles reassembly, so chunk boundaries
// carry no meaning here. The component also drives the DTR pin for hardware
// resets, implementing reset.LineSetter.
//
// # Quick Start
//
//	input := serial.NewInput(serial.InputDeps{
//	    Name:    "serial",
//	    Config:  serial.Config{Device: "/dev/ttyUSB0", Baud: 2_000_000},
//	    Sink:    pipe, // the decode pipeline
//	    Metrics: registry,
//	    Logger:  logger,
//	})
//
//	if err := input.Initialize(); err != nil { ... }
//	if err := input.Start(ctx); err != nil { ... }
//	defer input.Stop(5 * time.Second)
//
//	pipe.BindResetLine(input) // resets now toggle DTR
//
// # Lifecycle
//
// Initialize validates the device path, baud rate and sink without touching
// hardware. Start opens the port with exponential backoff (the probe may
// still be enumerating at boot), discards any stale input, and launches the
// read loop. Stop closes the port to unblock a pending read and joins the
// loop within the timeout.
//
// # Error handling
//
// Read deadline expiry is not an error; it is how the loop polls for
// shutdown. A real read error usually means the USB device dropped off the
// bus: the loop counts it, reopens the port with backoff, and continues. If
// the device stays gone the loop exits and Health reports unhealthy with the
// last error (sanitized upstream before leaving the process). The pipeline
// keeps running either way; only this input degrades.
//
// A chunk the pipeline refuses (because it is stopping) is counted and
// dropped. Serial data has no replay, so there is nothing better to do with
// it.
package serial
