package server

import (
	"net"
	"sync"
)

// registry is the state shared between the dispatcher and the sessions:
// the running flag and the set of live control connections. A single
// mutex guards both and is never held across I/O.
type registry struct {
	mu      sync.Mutex
	running bool
	conns   map[net.Conn]struct{}
}

func newRegistry() *registry {
	return &registry{
		running: true,
		conns:   make(map[net.Conn]struct{}),
	}
}

// register adds conn to the live set. It returns false once the registry
// has been stopped, in which case the caller owns conn and must close it.
func (r *registry) register(conn net.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return false
	}
	r.conns[conn] = struct{}{}
	return true
}

func (r *registry) deregister(conn net.Conn) {
	r.mu.Lock()
	delete(r.conns, conn)
	r.mu.Unlock()
}

func (r *registry) isRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// stop clears the running flag and returns the connections that were live
// at that moment. Only the first call returns true.
func (r *registry) stop() ([]net.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	first := r.running
	r.running = false

	conns := make([]net.Conn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	return conns, first
}

// interrupt unblocks reads on conn without releasing it. TCP connections are
// half-closed so that a pending reply can still be written; anything else
// gets an expired read deadline.
func interrupt(conn net.Conn) {
	type readCloser interface {
		CloseRead() error
	}
	if rc, ok := conn.(readCloser); ok {
		if err := rc.CloseRead(); err == nil {
			return
		}
	}
	_ = conn.SetReadDeadline(aLongTimeAgo)
}
