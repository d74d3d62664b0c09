package server

import (
	"fmt"
	"net"
)

// Reply identifies one entry of the server's reply catalog. Every line the
// server writes on a control connection comes from this set.
type Reply int

const (
	ReplyFileStatusOK Reply = iota
	ReplyServiceReady
	ReplyClosingControl
	ReplyClosingData
	ReplyPassiveMode
	ReplyLoggedIn
	ReplyFileActionOK
	ReplyCurrentDir
	ReplyNeedPassword
	ReplyServiceUnavailable
	ReplyCantOpenData
	ReplyTransferAborted
	ReplyLineTooLong
	ReplyNotImplemented
	ReplyBadSequence
	ReplyFileUnavailable
)

type replyEntry struct {
	code int
	text string
}

// replyCatalog holds the code and text of every reply. Entries whose text
// contains a verb are templates filled by Reply.Line.
var replyCatalog = map[Reply]replyEntry{
	ReplyFileStatusOK:       {150, "File status okay; about to open data connection"},
	ReplyServiceReady:       {220, "Service ready for new user"},
	ReplyClosingControl:     {221, "Service closing control connection. Logged out if appropriate."},
	ReplyClosingData:        {226, "Closing data connection"},
	ReplyPassiveMode:        {227, "Entering Passive Mode (%s)"},
	ReplyLoggedIn:           {230, "User logged in, proceed"},
	ReplyFileActionOK:       {250, "Requested file action was okay, completed"},
	ReplyCurrentDir:         {257, "\"%s\" is current directory."},
	ReplyNeedPassword:       {331, "User name okay, password needed."},
	ReplyServiceUnavailable: {421, "Service not available, closing control connection."},
	ReplyCantOpenData:       {425, "Can't open data connection."},
	ReplyTransferAborted:    {426, "Connection closed; transfer aborted."},
	ReplyLineTooLong:        {500, "Syntax error, command line too long."},
	ReplyNotImplemented:     {502, "Command not implemented"},
	ReplyBadSequence:        {503, "Bad sequence of commands"},
	ReplyFileUnavailable:    {550, "Requested action not taken. File unavailable"},
}

// Code returns the three-digit reply code.
func (r Reply) Code() int {
	return replyCatalog[r].code
}

// Line renders the reply as it goes on the wire, CRLF included. Template
// replies (227, 257) take their single argument from args.
func (r Reply) Line(args ...any) string {
	e, ok := replyCatalog[r]
	if !ok {
		return fmt.Sprintf("%d %s\r\n", ReplyBadSequence.Code(), replyCatalog[ReplyBadSequence].text)
	}
	text := e.text
	if len(args) > 0 {
		text = fmt.Sprintf(text, args...)
	}
	return fmt.Sprintf("%d %s\r\n", e.code, text)
}

func (r Reply) String() string {
	e, ok := replyCatalog[r]
	if !ok {
		return fmt.Sprintf("Reply(%d)", int(r))
	}
	return fmt.Sprintf("%d", e.code)
}

// passiveAddress formats an IPv4 address and port as h1,h2,h3,h4,p1,p2.
// Non-IPv4 addresses fall back to the loopback address.
func passiveAddress(ip net.IP, port int) string {
	ip4 := ip.To4()
	if ip4 == nil {
		ip4 = net.IPv4(127, 0, 0, 1).To4()
	}
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d",
		ip4[0], ip4[1], ip4[2], ip4[3], port/256, port%256)
}
