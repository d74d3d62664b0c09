package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
)

type sessionState int

const (
	stateAwaitingUser sessionState = iota
	stateAwaitingPassword
	stateAuthenticated
	stateTransferring
)

func (st sessionState) String() string {
	switch st {
	case stateAwaitingUser:
		return "awaiting_user"
	case stateAwaitingPassword:
		return "awaiting_password"
	case stateAuthenticated:
		return "authenticated"
	case stateTransferring:
		return "transferring"
	default:
		return "unknown"
	}
}

var (
	errIdleTimeout  = errors.New("idle timeout")
	errShuttingDown = errors.New("server shutting down")
)

// session represents an FTP client session. It is driven by a single
// worker goroutine and needs no locking.
type session struct {
	server *Server
	conn   net.Conn
	lines  *lineReader
	writer *bufio.Writer

	sessionID string
	remoteIP  string
	started   time.Time

	state     sessionState
	user      string
	workDir   string
	data      *dataChannel
	connected bool

	// lastCode is the code of the most recent reply, for metrics.
	lastCode int
}

func newSession(server *Server, conn net.Conn) *session {
	remoteAddr := conn.RemoteAddr().String()
	remoteIP, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		remoteIP = remoteAddr
	}

	return &session{
		server:    server,
		conn:      conn,
		lines:     newLineReader(conn),
		writer:    bufio.NewWriter(conn),
		sessionID: uuid.NewString(),
		remoteIP:  remoteIP,
		started:   time.Now(),
		state:     stateAwaitingUser,
		workDir:   server.rootDir,
		data:      newDataChannel(server.passive),
		connected: true,
	}
}

// serve runs the command loop until the client quits, the connection
// fails, or the server shuts down.
func (s *session) serve() {
	defer s.close()

	if !s.server.reg.isRunning() {
		s.reply(ReplyServiceUnavailable)
		return
	}

	s.reply(ReplyServiceReady)

	s.server.logger.Info("session_started",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
	)

	for s.connected {
		line, err := s.readCommand()
		if errors.Is(err, errLineTooLong) {
			s.server.logger.Warn("command too long",
				"session_id", s.sessionID,
				"remote_ip", s.remoteIP,
			)
			s.reply(ReplyLineTooLong)
			continue
		}
		if err != nil {
			s.handleReadError(err)
			return
		}

		cmd := ParseCommand(line)
		start := time.Now()
		s.handleCommand(cmd)

		if s.server.metrics != nil {
			s.server.metrics.RecordCommand(cmd.Verb.String(), s.lastCode < 400, time.Since(start))
		}
	}
}

func (s *session) handleReadError(err error) {
	switch {
	case errors.Is(err, errIdleTimeout):
		s.server.logger.Info("session idle timeout",
			"session_id", s.sessionID,
			"remote_ip", s.remoteIP,
			"user", s.user,
		)
		s.reply(ReplyServiceUnavailable)
	case errors.Is(err, errShuttingDown):
		s.reply(ReplyServiceUnavailable)
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
	default:
		s.server.logger.Warn("read error",
			"session_id", s.sessionID,
			"remote_ip", s.remoteIP,
			"user", s.user,
			"error", err,
		)
	}
}

// readCommand waits for the next command line. The read is bounded by the
// poll interval; on each expiry the session checks whether the server is
// stopping and whether the idle budget is spent.
func (s *session) readCommand() (string, error) {
	idleSince := time.Now()
	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.server.pollInterval))

		line, err := s.lines.readLine()
		if err == nil {
			_ = s.conn.SetReadDeadline(time.Time{})
			return line, nil
		}
		if errors.Is(err, errLineTooLong) {
			return "", err
		}
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			if !s.server.reg.isRunning() {
				return "", errShuttingDown
			}
			return "", err
		}

		if !s.server.reg.isRunning() {
			return "", errShuttingDown
		}
		if s.server.maxIdleTime > 0 && time.Since(idleSince) >= s.server.maxIdleTime {
			return "", errIdleTimeout
		}
	}
}

// handleCommand applies cmd to the state machine. QUIT is honored in every
// state; FEAT, AUTH and NOOP are never implemented; everything else must
// be legal in the current state or gets 503.
func (s *session) handleCommand(cmd Command) {
	s.server.logger.Debug("command",
		"session_id", s.sessionID,
		"verb", cmd.Verb.String(),
		"state", s.state.String(),
	)

	switch cmd.Verb {
	case VerbQUIT:
		s.handleQUIT()
		return
	case VerbFEAT, VerbAUTH, VerbNOOP:
		s.reply(ReplyNotImplemented)
		return
	}

	switch s.state {
	case stateAwaitingUser:
		if cmd.Verb == VerbUSER {
			s.handleUSER(cmd.Arg(0))
			return
		}
	case stateAwaitingPassword:
		if cmd.Verb == VerbPASS {
			s.handlePASS(cmd.Arg(0))
			return
		}
	case stateAuthenticated:
		switch cmd.Verb {
		case VerbPASV:
			s.handlePASV()
			return
		case VerbPORT:
			s.reply(ReplyNotImplemented)
			return
		case VerbCWD:
			s.handleCWD(cmd.Arg(0))
			return
		case VerbPWD:
			s.handlePWD()
			return
		case VerbLIST, VerbRETR, VerbSTOR:
			s.handleTransfer(cmd)
			return
		}
	}

	s.reply(ReplyBadSequence)
}

// reply writes one catalog reply and flushes it. A write failure ends the
// session.
func (s *session) reply(r Reply, args ...any) {
	s.lastCode = r.Code()
	if _, err := s.writer.WriteString(r.Line(args...)); err != nil {
		s.connected = false
		return
	}
	if err := s.writer.Flush(); err != nil {
		s.connected = false
	}
}

func (s *session) close() {
	s.data.reset()
	s.conn.Close()

	s.server.logger.Info("session_ended",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"user", s.user,
		"duration_ms", time.Since(s.started).Milliseconds(),
	)
}
