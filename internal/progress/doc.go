// Package progress carries user-visible state transitions from the sync
// engine to a presentation layer.
//
// Every significant transition (scanning, downloading, resuming,
// decompressing, skipping, completed, failed) is published as an Event to a
// single Sink per run, in discovery order. The Reporter sink renders events
// as prefixed lines:
//
//	[fastdlx]  42% Downloading de_dust2.bsp.bz2: 12 MB / 28.5 MB
//
// FormatBytes and ParseBytes provide the byte-size rendering used in event
// messages and configuration files.
package progress
