package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"time"
)

// DataMode is the negotiation state of a session's data channel.
type DataMode int

const (
	// DataInactive means no data connection has been negotiated.
	DataInactive DataMode = iota
	// DataPassiveReady means a passive listener is waiting for the client.
	DataPassiveReady
	// DataActiveReady is reserved for active mode, which is never completed.
	DataActiveReady
)

func (m DataMode) String() string {
	switch m {
	case DataPassiveReady:
		return "passive"
	case DataActiveReady:
		return "active"
	default:
		return "inactive"
	}
}

var errChannelNotReady = errors.New("data channel not ready")

// passiveConfig controls where passive listeners are opened.
type passiveConfig struct {
	// host is the interface address the listener binds to and advertises.
	host string
	// minPort and maxPort select a port range; zero means any free port.
	minPort int
	maxPort int
	// acceptTimeout bounds the wait for the client; zero waits until the
	// server stops.
	acceptTimeout time.Duration
	// next is the shared round-robin cursor into the port range.
	next *atomic.Int32

	pollInterval time.Duration
	running      func() bool
}

// dataChannel owns the passive listener and the transfer connection of one
// session. At most one transfer connection exists at a time.
type dataChannel struct {
	cfg      passiveConfig
	mode     DataMode
	listener *net.TCPListener
	conn     net.Conn
	port     int
}

func newDataChannel(cfg passiveConfig) *dataChannel {
	return &dataChannel{cfg: cfg}
}

// setup opens a passive listener with a backlog of one connection. On
// failure the channel stays inactive.
func (d *dataChannel) setup() error {
	d.reset()

	ln, err := d.listen()
	if err != nil {
		return err
	}

	if err := setListenBacklog(ln, 1); err != nil {
		ln.Close()
		return fmt.Errorf("set backlog: %w", err)
	}

	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		ln.Close()
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		ln.Close()
		return err
	}

	d.listener = ln
	d.port = port
	d.mode = DataPassiveReady
	return nil
}

func (d *dataChannel) listen() (*net.TCPListener, error) {
	host := d.cfg.host
	if host == "" {
		host = "127.0.0.1"
	}

	if d.cfg.minPort > 0 && d.cfg.maxPort >= d.cfg.minPort {
		rangeLen := int32(d.cfg.maxPort - d.cfg.minPort + 1)
		var start int32
		if d.cfg.next != nil {
			start = d.cfg.next.Add(1)
		}
		for i := int32(0); i < rangeLen; i++ {
			offset := (start + i) % rangeLen
			if offset < 0 {
				offset += rangeLen
			}
			port := d.cfg.minPort + int(offset)
			ln, err := listenTCP4(net.JoinHostPort(host, strconv.Itoa(port)))
			if err == nil {
				return ln, nil
			}
		}
		return nil, fmt.Errorf("no available ports in range [%d, %d]", d.cfg.minPort, d.cfg.maxPort)
	}

	return listenTCP4(net.JoinHostPort(host, "0"))
}

func listenTCP4(addr string) (*net.TCPListener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return nil, err
	}
	return net.ListenTCP("tcp4", tcpAddr)
}

// Port returns the listening port, or zero when inactive.
func (d *dataChannel) Port() int {
	return d.port
}

// ready reports whether a transfer may be attempted.
func (d *dataChannel) ready() bool {
	return d.mode != DataInactive
}

// accept waits for the client to open the transfer connection.
func (d *dataChannel) accept() (net.Conn, error) {
	if d.mode != DataPassiveReady || d.listener == nil {
		return nil, errChannelNotReady
	}

	poll := d.cfg.pollInterval
	if poll <= 0 {
		poll = time.Second
	}
	var deadline time.Time
	if d.cfg.acceptTimeout > 0 {
		deadline = time.Now().Add(d.cfg.acceptTimeout)
	}

	for {
		wake := time.Now().Add(poll)
		if !deadline.IsZero() && deadline.Before(wake) {
			wake = deadline
		}
		_ = d.listener.SetDeadline(wake)

		conn, err := d.listener.Accept()
		if err == nil {
			d.conn = conn
			return conn, nil
		}
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, err
		}
		if d.cfg.running != nil && !d.cfg.running() {
			return nil, ErrServerClosed
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return nil, err
		}
	}
}

// closeConn closes the transfer connection, leaving the listener alone.
func (d *dataChannel) closeConn() error {
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

// reset closes whatever the channel owns and returns it to inactive. It is
// idempotent.
func (d *dataChannel) reset() {
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
	if d.listener != nil {
		d.listener.Close()
		d.listener = nil
	}
	d.port = 0
	d.mode = DataInactive
}
