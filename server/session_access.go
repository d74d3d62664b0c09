package server

func (s *session) handleUSER(user string) {
	s.user = user
	s.state = stateAwaitingPassword
	s.reply(ReplyNeedPassword)
}

// handlePASS accepts any password.
func (s *session) handlePASS(_ string) {
	s.state = stateAuthenticated
	s.reply(ReplyLoggedIn)

	s.server.logger.Info("authentication_success",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"user", s.user,
	)
	if s.server.metrics != nil {
		s.server.metrics.RecordAuthentication(true, s.user)
	}
}

func (s *session) handleQUIT() {
	s.reply(ReplyClosingControl)
	s.connected = false
}
