// Package decompress materializes compressed remote artifacts as their
// canonical decompressed form (the FastDL "compressed pair" convention:
// name.bsp.bz2 on the mirror becomes name.bsp locally).
//
// The pipeline is crash-recoverable at every stage. Four artifacts mark the
// stages: the downloader's compressed temp, the compressed file, the
// decompression temp (".dec"), and the decompressed file. If the
// decompressed file does not exist, at most one of the compressed file and
// the decompression temp is the recoverable artifact, and Fetch always
// finds and uses it. Fully persisted work is never silently discarded,
// except the deliberately disposable compressed file after success.
package decompress
