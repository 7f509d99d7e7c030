// Package client provides an event-driven client for the blackjack wire
// protocol. Register handlers, call Connect, and every decoded server message
// is delivered to the message handler.
package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cyberinferno/blackjack-server/internal/protocol"
)

// MessageHandler is called with each decoded server message. Handlers are
// invoked from the read goroutine; implementations must not block for long.
type MessageHandler func(msg protocol.Message)

// DisconnectHandler is called once when the connection is lost or closed.
// The error is nil for a locally initiated Close.
type DisconnectHandler func(err error)

// Config holds connection settings for the client.
type Config struct {
	// Address is the "host:port" to connect to.
	Address string
	// DialTimeout is the max duration for establishing the connection.
	DialTimeout time.Duration
	// WriteTimeout is the max duration for a single send; 0 means no timeout.
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with sane defaults for the given address.
func DefaultConfig(address string) Config {
	return Config{
		Address:      address,
		DialTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Client is a line-protocol TCP client. Register handlers before Connect;
// Send and Close are safe for concurrent use.
type Client struct {
	config Config

	mu           sync.RWMutex
	conn         net.Conn
	closed       bool
	onMessage    MessageHandler
	onDisconnect DisconnectHandler

	wg sync.WaitGroup
}

// New creates a client for the given config. Call Connect to establish the
// connection.
func New(config Config) *Client {
	return &Client{config: config}
}

// OnMessage registers the handler for decoded server messages. Repeated calls
// replace the previous handler.
func (c *Client) OnMessage(handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = handler
}

// OnDisconnect registers the handler for connection loss.
func (c *Client) OnDisconnect(handler DisconnectHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = handler
}

// Connect dials the server and starts the read goroutine.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}
	if c.conn != nil {
		return fmt.Errorf("already connected")
	}

	dialer := net.Dialer{Timeout: c.config.DialTimeout}
	conn, err := dialer.Dial("tcp", c.config.Address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.config.Address, err)
	}

	c.conn = conn
	c.wg.Add(1)
	go c.readLoop(conn)

	return nil
}

// Send encodes and writes one command.
func (c *Client) Send(cmd protocol.Command, args ...string) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	if c.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return err
		}
	}

	_, err := conn.Write(protocol.Encode(cmd, args...))
	return err
}

// Close shuts the connection down and waits for the read goroutine to exit.
// Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

func (c *Client) readLoop(conn net.Conn) {
	defer c.wg.Done()

	var decoder protocol.FrameDecoder
	buf := make([]byte, 1024)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			for _, line := range decoder.Push(buf[:n]) {
				c.emitMessage(protocol.Parse(line))
			}
		}
		if err != nil {
			c.emitDisconnect(err)
			return
		}
	}
}

func (c *Client) emitMessage(msg protocol.Message) {
	c.mu.RLock()
	handler := c.onMessage
	c.mu.RUnlock()

	if handler != nil {
		handler(msg)
	}
}

func (c *Client) emitDisconnect(err error) {
	c.mu.RLock()
	handler := c.onDisconnect
	closed := c.closed
	c.mu.RUnlock()

	if handler == nil {
		return
	}
	if closed {
		err = nil
	}
	handler(err)
}
