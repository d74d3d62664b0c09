package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gonzalop/miniftp/internal/throttle"
)

func (s *session) handlePASV() {
	if err := s.data.setup(); err != nil {
		s.server.logger.Warn("passive listener failed",
			"session_id", s.sessionID,
			"error", err,
		)
		s.reply(ReplyCantOpenData)
		return
	}

	ip := net.ParseIP(s.data.cfg.host)
	s.reply(ReplyPassiveMode, passiveAddress(ip, s.data.Port()))
}

// handleTransfer runs LIST, RETR or STOR over a negotiated data channel.
// Whatever the outcome, the channel is reset afterwards and the session is
// back in the authenticated state.
func (s *session) handleTransfer(cmd Command) {
	if !s.data.ready() {
		s.reply(ReplyBadSequence)
		return
	}

	s.state = stateTransferring
	defer func() {
		s.data.reset()
		s.state = stateAuthenticated
	}()

	switch cmd.Verb {
	case VerbLIST:
		s.handleLIST(cmd.Arg(0))
	case VerbRETR:
		s.handleRETR(cmd.Arg(0))
	default:
		s.reply(ReplyNotImplemented)
	}
}

func (s *session) handleLIST(arg string) {
	path := resolvePath(s.workDir, arg)
	if err := statDir(path); err != nil {
		s.reply(ReplyFileUnavailable)
		return
	}

	names, err := listNames(path)
	if err != nil {
		s.reply(ReplyFileUnavailable)
		return
	}

	conn, err := s.data.accept()
	if err != nil {
		s.server.logger.Debug("data connection failed",
			"session_id", s.sessionID,
			"error", err,
		)
		s.reply(ReplyCantOpenData)
		return
	}
	s.reply(ReplyFileStatusOK)

	var buf bytes.Buffer
	for _, name := range names {
		buf.WriteString(name)
		buf.WriteString("\r\n")
	}

	start := time.Now()
	n, err := buf.WriteTo(conn)
	if cerr := s.data.closeConn(); err == nil {
		err = cerr
	}
	s.finishTransfer("LIST", path, n, start, err)
}

func (s *session) handleRETR(arg string) {
	path := resolvePath(s.workDir, arg)
	f, info, err := openFile(path)
	if err != nil {
		s.reply(ReplyFileUnavailable)
		return
	}
	defer f.Close()

	conn, err := s.data.accept()
	if err != nil {
		s.server.logger.Debug("data connection failed",
			"session_id", s.sessionID,
			"error", err,
		)
		s.reply(ReplyCantOpenData)
		return
	}
	s.reply(ReplyFileStatusOK)

	dst := throttle.NewWriter(context.Background(), conn, throttle.NewLimiter(s.server.bandwidthLimit))

	start := time.Now()
	n, err := io.Copy(dst, f)
	if err == nil && n < info.Size() {
		err = fmt.Errorf("short transfer: sent %d of %d bytes", n, info.Size())
	}
	if cerr := s.data.closeConn(); err == nil {
		err = cerr
	}
	s.finishTransfer("RETR", path, n, start, err)
}

// finishTransfer sends the final reply of a transfer and records it.
func (s *session) finishTransfer(op, path string, n int64, start time.Time, err error) {
	duration := time.Since(start)

	if err != nil {
		s.server.logger.Warn("transfer_aborted",
			"session_id", s.sessionID,
			"remote_ip", s.remoteIP,
			"user", s.user,
			"operation", op,
			"path", path,
			"bytes", n,
			"error", err,
		)
		s.reply(ReplyTransferAborted)
	} else {
		throughputMBps := float64(0)
		if duration.Seconds() > 0 {
			throughputMBps = float64(n) / duration.Seconds() / 1024 / 1024
		}
		s.server.logger.Info("transfer_complete",
			"session_id", s.sessionID,
			"remote_ip", s.remoteIP,
			"user", s.user,
			"operation", op,
			"path", path,
			"bytes", n,
			"duration_ms", duration.Milliseconds(),
			"throughput_mbps", fmt.Sprintf("%.2f", throughputMBps),
		)
		s.reply(ReplyClosingData)
	}

	if s.server.metrics != nil {
		s.server.metrics.RecordTransfer(op, n, duration)
	}
}
