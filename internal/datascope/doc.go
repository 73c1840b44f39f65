// Package datascope encodes touch-sensor channel readings into the binary
// frame format read by the DataScope desktop tool.
//
// A frame carrying n channels (1 <= n <= 10) is 4n+2 bytes long:
//
//	offset 0         '$' header
//	offset 1..4n     n little-endian IEEE-754 float32 values
//	offset 4n+1      trailer byte whose value is its own offset (4n+1)
//
// The tool uses the self-referential trailer to check frame length and
// alignment. Only the final trailer is written; the slots at interior channel
// boundaries are overwritten by the following channel's payload.
package datascope
