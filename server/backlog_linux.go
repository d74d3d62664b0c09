//go:build linux

package server

import (
	"net"

	"golang.org/x/sys/unix"
)

// setListenBacklog re-issues listen(2) on an already listening socket,
// which on Linux replaces the accept queue length.
func setListenBacklog(ln *net.TCPListener, backlog int) error {
	rc, err := ln.SyscallConn()
	if err != nil {
		return err
	}

	var lerr error
	if err := rc.Control(func(fd uintptr) {
		lerr = unix.Listen(int(fd), backlog)
	}); err != nil {
		return err
	}
	return lerr
}
