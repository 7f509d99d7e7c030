// Package protocol implements the line-based text protocol spoken between the
// blackjack server and its clients: framing raw byte streams into lines,
// and encoding/decoding the colon-delimited `BJ:CCCCCCCC[:arg]*` grammar.
package protocol

import "bytes"

// FrameDecoder accumulates raw bytes from one connection and extracts
// complete newline-terminated lines from them. Bytes that do not yet form a
// full line stay buffered until the next chunk arrives, so the sequence of
// extracted lines is independent of how the stream was split into reads.
//
// A FrameDecoder is owned by a single connection and is not safe for
// concurrent use. There is no cap on the buffered partial line beyond what
// the transport delivers; a hostile peer can grow the buffer until its
// connection is torn down by the liveness sweep.
type FrameDecoder struct {
	buf []byte
}

// Push appends chunk to the internal buffer and returns all complete lines
// now available, in arrival order. Line terminators are `\n` with an optional
// preceding `\r`; terminators are stripped and empty lines are discarded.
//
// Parameters:
//   - chunk: The raw bytes read from the connection
//
// Returns:
//   - The complete lines extracted from the buffer, without terminators
func (d *FrameDecoder) Push(chunk []byte) []string {
	d.buf = append(d.buf, chunk...)

	var lines []string
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}

		line := d.buf[:idx]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		if len(line) > 0 {
			lines = append(lines, string(line))
		}

		d.buf = d.buf[idx+1:]
	}

	return lines
}

// Pending returns the number of buffered bytes not yet forming a full line.
func (d *FrameDecoder) Pending() int {
	return len(d.buf)
}
