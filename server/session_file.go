package server

func (s *session) handleCWD(arg string) {
	path := resolvePath(s.workDir, arg)
	if err := statDir(path); err != nil {
		s.server.logger.Debug("CWD failed",
			"session_id", s.sessionID,
			"path", path,
			"error", err,
		)
		s.reply(ReplyFileUnavailable)
		return
	}
	s.workDir = path
	s.reply(ReplyFileActionOK)
}

func (s *session) handlePWD() {
	s.reply(ReplyCurrentDir, s.workDir)
}
