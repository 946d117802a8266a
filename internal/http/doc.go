// Package http provides the thin HTTP client used by the sync engine.
//
// This package handles:
//   - HEAD requests to get file metadata
//   - Range requests for resumed downloads
//   - Status code classification into sentinel errors
//
// Each call performs exactly one request. The downloader owns the retry
// schedule because every retry must recompute the resume offset from the
// bytes the failed attempt left on disk.
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	info, err := client.Head(ctx, url)
//	// info.Size, info.AcceptsRanges
//
//	resp, err := client.GetRange(ctx, url, startByte)
//	defer resp.Body.Close()
package http
