package ftp

import "fmt"

// ProtocolError is an unexpected reply to a command.
type ProtocolError struct {
	// Command is the command that was sent, without arguments (e.g., "RETR").
	Command string

	// Response is the reply text received from the server.
	Response string

	// Code is the numeric reply code (e.g., 550).
	Code int
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ftp: %s failed: %s (code %d)", e.Command, e.Response, e.Code)
}

// IsTemporary returns true for 4xx replies, which may succeed on retry.
func (e *ProtocolError) IsTemporary() bool {
	return e.Code >= 400 && e.Code < 500
}

// IsPermanent returns true for 5xx replies.
func (e *ProtocolError) IsPermanent() bool {
	return e.Code >= 500 && e.Code < 600
}
