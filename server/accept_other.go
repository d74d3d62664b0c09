//go:build !linux

package server

import (
	"errors"
	"net"
	"syscall"
)

func (s *Server) acceptLoop(l net.Listener, handle func(net.Conn)) error {
	return s.acceptBlocking(l, handle)
}

func isTemporaryAcceptError(err error) bool {
	return errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE)
}
