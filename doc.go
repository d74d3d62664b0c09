// Package ftp implements a small FTP client that speaks the subset of the
// protocol served by the miniftp server: login, PWD, CWD, and passive-mode
// LIST and RETR.
//
// # Basic Usage
//
//	client, err := ftp.Dial("127.0.0.1:2121", ftp.WithTimeout(10*time.Second))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Quit()
//
//	if err := client.Login("anonymous", "anonymous"); err != nil {
//	    log.Fatal(err)
//	}
//
//	names, err := client.NameList("pub")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Data Connections
//
// Every transfer negotiates its own passive data connection: the client
// sends PASV, connects to the announced address, then sends the transfer
// command. The server tears the listener down after one transfer.
//
// # Errors
//
// Unexpected replies are returned as *ProtocolError, which carries the
// command, the reply text and the reply code:
//
//	var perr *ftp.ProtocolError
//	if errors.As(err, &perr) && perr.Code == 550 {
//	    // file unavailable
//	}
package ftp
