package ftp

import (
	"fmt"
	"strings"
	"time"
)

// Response represents an FTP server reply.
type Response struct {
	// Code is the three-digit reply code (e.g., 220, 550).
	Code int

	// Message is the reply text. Lines of a multi-line reply are joined
	// with "\n".
	Message string
}

// Is2xx returns true if the reply code is in the 2xx range (success).
func (r *Response) Is2xx() bool {
	return r.Code >= 200 && r.Code < 300
}

// Is5xx returns true if the reply code is in the 5xx range (permanent failure).
func (r *Response) Is5xx() bool {
	return r.Code >= 500 && r.Code < 600
}

// String returns the reply as the server sent its last line.
func (r *Response) String() string {
	return fmt.Sprintf("%d %s", r.Code, r.Message)
}

// readReply reads one reply from the control connection.
func (c *Client) readReply() (*Response, error) {
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	code, msg, err := c.text.ReadResponse(0)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("ftp response", "code", code, "message", msg)
	return &Response{Code: code, Message: msg}, nil
}

// sendCommand writes one command line and reads the reply. The caller
// must hold c.mu.
func (c *Client) sendCommand(command string, args ...string) (*Response, error) {
	line := command
	if len(args) > 0 {
		line = command + " " + strings.Join(args, " ")
	}

	c.logger.Debug("ftp command", "cmd", redact(command, line))

	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set write deadline: %w", err)
		}
	}
	if err := c.text.PrintfLine("%s", line); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	return c.readReply()
}

// expect sends a command and checks the reply code against the accepted
// codes.
func (c *Client) expect(codes []int, command string, args ...string) (*Response, error) {
	resp, err := c.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}
	if err := checkCode(resp, command, codes...); err != nil {
		return resp, err
	}
	return resp, nil
}

func checkCode(resp *Response, command string, codes ...int) error {
	for _, code := range codes {
		if resp.Code == code {
			return nil
		}
	}
	return &ProtocolError{
		Command:  command,
		Response: resp.Message,
		Code:     resp.Code,
	}
}

// redact hides the argument of PASS in logs.
func redact(command, line string) string {
	if strings.EqualFold(command, "PASS") {
		return "PASS ****"
	}
	return line
}
