// Package downloader transfers single remote resources to local paths with
// crash-safe resume.
//
// Every transfer streams into a temp artifact named destination + ".part".
// The temp is promoted to the destination only after the stream completes,
// so for any target path exactly one of absent, partial temp, or complete
// holds at any time.
//
// # Resume
//
// A fresh attempt measures the existing temp, asks the server for the total
// size, and issues a byte-range request for the unfetched tail. If the
// server ignores the range, the temp is discarded and the download restarts
// from zero rather than appending mismatched data.
//
// # Retry
//
// Attempts are retried with a linear delay schedule (k * RetryDelay before
// attempt k+1). Exhaustion keeps the temp artifact on disk so the next run
// resumes where this one stopped.
package downloader
