package ftp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"time"
)

// pasvRegex matches the address in "227 Entering Passive Mode (h1,h2,h3,h4,p1,p2)".
var pasvRegex = regexp.MustCompile(`\((\d+),(\d+),(\d+),(\d+),(\d+),(\d+)\)`)

// parsePASV parses a PASV reply and returns the host and port.
// Example: "Entering Passive Mode (192,168,1,1,195,149)"
// Returns: "192.168.1.1:50069" (195*256 + 149 = 50069)
func parsePASV(message string) (string, error) {
	m := pasvRegex.FindStringSubmatch(message)
	if m == nil {
		return "", fmt.Errorf("invalid PASV response: %s", message)
	}

	var parts [6]int
	for i := range parts {
		v, err := strconv.Atoi(m[i+1])
		if err != nil || v > 255 {
			return "", fmt.Errorf("invalid PASV field %q", m[i+1])
		}
		parts[i] = v
	}

	ip := net.IPv4(byte(parts[0]), byte(parts[1]), byte(parts[2]), byte(parts[3]))
	port := parts[4]*256 + parts[5]
	return net.JoinHostPort(ip.String(), strconv.Itoa(port)), nil
}

// resolveDataAddr replaces an unspecified PASV address with the control
// connection host.
func resolveDataAddr(pasvAddr, controlHost string) string {
	host, port, err := net.SplitHostPort(pasvAddr)
	if err != nil {
		return pasvAddr
	}
	if host == "0.0.0.0" {
		return net.JoinHostPort(controlHost, port)
	}
	return pasvAddr
}

// openPassive sends PASV and connects to the announced address. The caller
// must hold c.mu.
func (c *Client) openPassive() (net.Conn, error) {
	resp, err := c.expect([]int{227}, "PASV")
	if err != nil {
		return nil, err
	}

	addr, err := parsePASV(resp.Message)
	if err != nil {
		return nil, err
	}
	addr = resolveDataAddr(addr, c.host)

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open data connection: %w", err)
	}
	return conn, nil
}

// transfer runs one data-connection command: PASV, connect, send the
// command, expect 150, hand the data connection to fn, then expect 226.
func (c *Client) transfer(fn func(io.Reader) error, command string, args ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.openPassive()
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := c.expect([]int{150, 125}, command, args...); err != nil {
		return err
	}

	if c.timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.timeout))
	}
	ferr := fn(conn)
	conn.Close()

	resp, err := c.readReply()
	if err != nil {
		return errors.Join(ferr, err)
	}
	if err := checkCode(resp, command, 226, 250); err != nil {
		return errors.Join(ferr, err)
	}
	return ferr
}

// NameList returns the names of the entries in path, or in the working
// directory when path is empty.
func (c *Client) NameList(path string) ([]string, error) {
	var args []string
	if path != "" {
		args = append(args, path)
	}

	var names []string
	err := c.transfer(func(r io.Reader) error {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				names = append(names, line)
			}
		}
		return scanner.Err()
	}, "LIST", args...)
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Retrieve downloads path into w and returns the number of bytes copied.
func (c *Client) Retrieve(path string, w io.Writer) (int64, error) {
	var n int64
	err := c.transfer(func(r io.Reader) error {
		var err error
		n, err = io.Copy(w, r)
		return err
	}, "RETR", path)
	return n, err
}
