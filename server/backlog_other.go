//go:build !linux

package server

import "net"

// setListenBacklog is a no-op where the accept queue cannot be resized
// after the socket is listening.
func setListenBacklog(ln *net.TCPListener, backlog int) error {
	return nil
}
