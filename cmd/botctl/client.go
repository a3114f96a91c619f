package main

import (
	"errors"
	"io"
	"strings"
	"time"
)

var ErrNoReply = errors.New("no reply")

// Client runs one request/reply exchange at a time. The port must return
// from Read periodically (a read timeout) so the reply deadline is honoured.
type Client struct {
	port    io.ReadWriter
	timeout time.Duration
	pending []byte
}

func NewClient(port io.ReadWriter, timeout time.Duration) *Client {
	return &Client{port: port, timeout: timeout}
}

// Do sends cmd and returns the first reply line without its line ending.
func (c *Client) Do(cmd string) (string, error) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return "", errors.New("empty command")
	}
	c.pending = c.pending[:0]
	if _, err := c.port.Write([]byte(cmd + "\n")); err != nil {
		return "", err
	}

	buf := make([]byte, 64)
	deadline := time.Now().Add(c.timeout)
	for time.Now().Before(deadline) {
		n, err := c.port.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		c.pending = append(c.pending, buf[:n]...)
		if i := strings.IndexByte(string(c.pending), '\n'); i >= 0 {
			return strings.TrimRight(string(c.pending[:i]), "\r\x00"), nil
		}
		if n == 0 && errors.Is(err, io.EOF) {
			break
		}
	}
	return "", ErrNoReply
}

// IsError reports whether a console reply is an "err <code>" line.
func IsError(reply string) bool { return strings.HasPrefix(reply, "err ") }
