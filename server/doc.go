// Package server implements a small passive-mode FTP server.
//
// # Overview
//
// The server understands a deliberately narrow command set: USER, PASS,
// QUIT, CWD, PWD, PASV, LIST and RETR. STOR and PORT are recognised and
// answered with 502, as are FEAT, AUTH and NOOP. Any password is accepted.
// Every reply text comes from a fixed catalog (see Reply).
//
// # Getting Started
//
//	package main
//
//	import (
//	    "log"
//	    "github.com/gonzalop/miniftp/server"
//	)
//
//	func main() {
//	    s, err := server.NewServer(":2121", server.WithRootDir("/srv/ftp"))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    log.Fatal(s.ListenAndServe())
//	}
//
// # Sessions
//
// Each control connection moves through four states:
//
//	awaiting user -> awaiting password -> authenticated <-> transferring
//
// Commands outside the state they belong to get "503 Bad sequence of
// commands". QUIT is accepted everywhere. A transfer needs a prior PASV;
// the passive listener is used for exactly one transfer and then torn down,
// so every LIST or RETR is preceded by its own PASV.
//
// # Concurrency
//
// One dispatcher goroutine accepts control connections. On Linux it waits
// on the runtime poller and drains the accept queue with non-blocking
// accept4 calls; elsewhere it uses plain Accept. Each connection becomes a
// task in a fixed-size worker pool (WithWorkers). A session occupies its
// worker until it ends, so connections beyond the pool size wait in the
// queue. WithMaxPending bounds that queue.
//
// # Shutdown
//
// Shutdown stops accepting, half-closes every live control connection so
// that blocked reads return, and waits for the pool to drain. Sessions
// that are mid-transfer finish the transfer first.
//
// # Metrics
//
// Pass a MetricsCollector with WithMetricsCollector. The
// internal/metrics package provides a Prometheus implementation.
package server
