package ftp

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/textproto"
	"regexp"
	"sync"
	"time"
)

// Client is an FTP client connection. Its methods are safe for concurrent
// use, but commands are serialized on the single control connection.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	text *textproto.Conn

	// host is the control connection's remote host, used when a PASV reply
	// announces 0.0.0.0.
	host string

	timeout time.Duration
	logger  *slog.Logger
}

// Dial connects to the FTP server at addr ("host:port") and reads the
// greeting.
//
// Example:
//
//	client, err := ftp.Dial("127.0.0.1:2121", ftp.WithTimeout(10*time.Second))
func Dial(addr string, options ...Option) (*Client, error) {
	c := &Client{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	c.host = host

	c.logger.Debug("connecting to ftp server", "addr", addr)
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn
	c.text = textproto.NewConn(conn)

	resp, err := c.readReply()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read greeting: %w", err)
	}
	if resp.Code != 220 {
		conn.Close()
		return nil, &ProtocolError{Command: "connect", Response: resp.Message, Code: resp.Code}
	}

	return c, nil
}

// Login authenticates with USER and PASS.
func (c *Client) Login(username, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.expect([]int{230, 331}, "USER", username)
	if err != nil {
		return err
	}
	if resp.Code == 230 {
		return nil
	}

	_, err = c.expect([]int{230}, "PASS", password)
	return err
}

// Quit sends QUIT and closes the connection. The connection is closed even
// if the server does not answer.
func (c *Client) Quit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.expect([]int{221}, "QUIT")
	c.text.Close()
	return err
}

// Close closes the control connection without sending QUIT.
func (c *Client) Close() error {
	return c.text.Close()
}

var pwdRegex = regexp.MustCompile(`^"((?:[^"]|"")*)"`)

// CurrentDir returns the server's working directory.
func (c *Client) CurrentDir() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.expect([]int{257}, "PWD")
	if err != nil {
		return "", err
	}

	m := pwdRegex.FindStringSubmatch(resp.Message)
	if m == nil {
		return "", fmt.Errorf("invalid PWD response: %s", resp.Message)
	}
	return m[1], nil
}

// ChangeDir changes the server's working directory.
func (c *Client) ChangeDir(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.expect([]int{250}, "CWD", path)
	return err
}

// Quote sends a raw command line and returns the reply without checking
// its code.
//
// Example:
//
//	resp, err := client.Quote("NOOP")
//	if err == nil && resp.Code == 502 {
//	    // not implemented
//	}
func (c *Client) Quote(command string, args ...string) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sendCommand(command, args...)
}
