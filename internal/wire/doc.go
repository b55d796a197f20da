// Package wire implements the framed protocol spoken between the pool and its
// worker processes.
//
// Every unit on the wire is a frame: a 4-byte little-endian length followed by
// exactly that many bytes. A frame holds either a JSON control message, tagged
// by its "type" field, or raw document bytes. Raw frames never travel alone;
// they always follow the control message that declares their size.
//
//	worker stdin:  init | convert_file | convert_buffer + <document>
//	worker stdout: init_result | result [+ <pdf>]
//
// Reads treat a stream that ends early as "no message" rather than an error,
// which is how the caller detects a worker that died mid-response.
package wire
