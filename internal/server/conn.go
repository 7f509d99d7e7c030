package server

import (
	"net"

	"github.com/cyberinferno/blackjack-server/internal/protocol"
)

type eventKind int

const (
	eventAccept eventKind = iota
	eventData
	eventClosed
)

// event is one unit of work for the server's event loop: a freshly accepted
// connection, a chunk of bytes from a live one, or a connection teardown.
type event struct {
	kind eventKind
	conn net.Conn
	id   uint32
	data []byte
}

const readBufferSize = 1024

// connection pairs a socket with its session key and stream decoder. The
// decoder is touched only by the event loop; the reader goroutine just moves
// raw chunks.
type connection struct {
	id      uint32
	conn    net.Conn
	decoder protocol.FrameDecoder
	events  chan<- event
}

// readLoop moves raw chunks from the socket to the event loop until the
// connection fails or is closed. It always emits a final closed event.
func (c *connection) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			c.events <- event{kind: eventData, id: c.id, data: chunk}
		}
		if err != nil {
			c.events <- event{kind: eventClosed, id: c.id}
			return
		}
	}
}
