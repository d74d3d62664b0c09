//go:build linux

package server

import (
	"errors"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// poller is an epoll instance watching the control listener edge-triggered,
// plus an eventfd used to wake a pending wait.
type poller struct {
	// mu is held shared across epoll_wait and exclusively by close, so the
	// descriptors are never closed under a waiter.
	mu     sync.RWMutex
	epfd   int
	wakefd int
	closed bool
}

func newPoller() (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, os.NewSyscallError("eventfd", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, os.NewSyscallError("epoll_ctl", err)
	}
	return &poller{epfd: epfd, wakefd: wakefd}, nil
}

// add watches fd for readability, edge-triggered.
func (p *poller) add(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(fd)}
	return os.NewSyscallError("epoll_ctl", unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev))
}

// wait blocks for at most timeout and reports whether a watched descriptor
// became readable. It returns net.ErrClosed once the poller is closed.
func (p *poller) wait(timeout time.Duration) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false, net.ErrClosed
	}

	msec := int(timeout / time.Millisecond)
	if msec < 1 {
		msec = 1
	}

	var events [8]unix.EpollEvent
	n, err := unix.EpollWait(p.epfd, events[:], msec)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return false, nil
		}
		return false, os.NewSyscallError("epoll_wait", err)
	}

	ready := false
	for _, ev := range events[:n] {
		if int(ev.Fd) == p.wakefd {
			var buf [8]byte
			_, _ = unix.Read(p.wakefd, buf[:])
			continue
		}
		ready = true
	}
	return ready, nil
}

// wake interrupts a pending wait.
func (p *poller) wake() {
	one := [8]byte{1}
	_, _ = unix.Write(p.wakefd, one[:])
}

// close wakes any waiter, then releases both descriptors. It is idempotent.
func (p *poller) close() {
	p.mu.RLock()
	if !p.closed {
		p.wake()
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	unix.Close(p.wakefd)
	unix.Close(p.epfd)
}

// acceptLoop waits for readiness on the listening socket with epoll and,
// on each edge, drains the accept queue with non-blocking accept4 until
// EAGAIN. A single edge may cover several queued connections.
func (s *Server) acceptLoop(l net.Listener, handle func(net.Conn)) error {
	tl, ok := l.(*net.TCPListener)
	if !ok {
		return s.acceptBlocking(l, handle)
	}
	rc, err := tl.SyscallConn()
	if err != nil {
		return s.acceptBlocking(l, handle)
	}

	p, err := newPoller()
	if err != nil {
		s.logger.Warn("epoll unavailable, using blocking accept", "error", err)
		return s.acceptBlocking(l, handle)
	}
	defer p.close()

	var addErr error
	if err := rc.Control(func(fd uintptr) {
		addErr = p.add(int(fd))
	}); err != nil {
		if !s.reg.isRunning() || errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	}
	if addErr != nil {
		return addErr
	}

	s.mu.Lock()
	s.closePoller = p.close
	s.mu.Unlock()

	var tempDelay time.Duration
	// connections queued before registration produced no edge
	ready := true
	for {
		if !s.reg.isRunning() {
			return nil
		}

		if ready {
			if err := s.drainAccept(rc, handle); err != nil {
				if !s.reg.isRunning() || errors.Is(err, net.ErrClosed) {
					return nil
				}
				if isTemporaryAcceptError(err) {
					// the queue is not empty, so no new edge will come
					tempDelay = backoff(tempDelay)
					s.logger.Warn("accept error, retrying", "error", err, "delay", tempDelay)
					time.Sleep(tempDelay)
					continue
				}
				return err
			}
			tempDelay = 0
		}

		ready, err = p.wait(s.pollInterval)
		if err != nil {
			if !s.reg.isRunning() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

// drainAccept accepts every queued connection and hands each to handle.
// The listener descriptor is only touched inside RawConn.Control, which
// keeps it open for the duration.
func (s *Server) drainAccept(rc syscall.RawConn, handle func(net.Conn)) error {
	var (
		accepted  []int
		acceptErr error
	)
	err := rc.Control(func(fd uintptr) {
		for {
			nfd, _, err := unix.Accept4(int(fd), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
			switch {
			case err == nil:
				accepted = append(accepted, nfd)
			case errors.Is(err, unix.EAGAIN):
				return
			case errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED):
			default:
				acceptErr = err
				return
			}
		}
	})

	for _, fd := range accepted {
		conn, cerr := fdConn(fd)
		if cerr != nil {
			s.logger.Warn("failed to wrap accepted socket", "error", cerr)
			continue
		}
		handle(conn)
	}

	if err != nil {
		return err
	}
	if acceptErr != nil {
		return os.NewSyscallError("accept4", acceptErr)
	}
	return nil
}

// fdConn turns an accepted descriptor into a net.Conn registered with the
// runtime poller. The descriptor is consumed.
func fdConn(fd int) (net.Conn, error) {
	f := os.NewFile(uintptr(fd), "")
	if f == nil {
		unix.Close(fd)
		return nil, errors.New("invalid descriptor")
	}
	defer f.Close()
	return net.FileConn(f)
}

func isTemporaryAcceptError(err error) bool {
	return errors.Is(err, unix.EMFILE) ||
		errors.Is(err, unix.ENFILE) ||
		errors.Is(err, unix.ENOBUFS) ||
		errors.Is(err, unix.ENOMEM)
}
