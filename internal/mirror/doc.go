// Package mirror orchestrates one content-mirroring run against a remote
// autoindex tree.
//
// A run validates its options, performs a best-effort counting pass to seed
// the progress percentage, then walks the tree sequentially and depth-first
// with exactly one network operation in flight at a time. Each discovered
// file goes to the resumable downloader, or to the decompression pipeline
// when it carries a compressed extension. The local tree mirrors the remote
// one, except compressed pairs resolve to only their decompressed artifact.
//
// Directory-read failures abort only their own subtree and mark the run
// incomplete; exhausted per-file retries are acceptable partial outcomes
// that a later run resumes.
package mirror
