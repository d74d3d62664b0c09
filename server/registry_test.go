package server

import (
	"io"
	"net"
	"testing"
	"time"
)

func TestRegistry_Lifecycle(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	if !r.isRunning() {
		t.Fatal("new registry should be running")
	}
	if !r.register(a) {
		t.Fatal("register refused while running")
	}
	if r.count() != 1 {
		t.Fatalf("count = %d", r.count())
	}

	conns, first := r.stop()
	if !first || len(conns) != 1 || conns[0] != a {
		t.Fatalf("stop() = %v, %v", conns, first)
	}
	if r.isRunning() {
		t.Error("still running after stop")
	}
	if _, first := r.stop(); first {
		t.Error("second stop reported first")
	}

	if r.register(b) {
		t.Error("register accepted after stop")
	}

	r.deregister(a)
	r.deregister(a)
	if r.count() != 0 {
		t.Errorf("count = %d after deregister", r.count())
	}
}

func TestInterrupt_TCPHalfClose(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	fatalIfErr(t, err, "listen")
	defer ln.Close()

	client, err := net.Dial("tcp", ln.Addr().String())
	fatalIfErr(t, err, "dial")
	defer client.Close()

	srv, err := ln.Accept()
	fatalIfErr(t, err, "accept")
	defer srv.Close()

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		_, err := srv.Read(buf)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	interrupt(srv)

	select {
	case err := <-done:
		if err != io.EOF {
			t.Errorf("read after interrupt = %v, want EOF", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("interrupt did not unblock read")
	}

	// the write side still works
	if _, err := srv.Write([]byte("x")); err != nil {
		t.Errorf("write after interrupt: %v", err)
	}
}

func TestInterrupt_DeadlineFallback(t *testing.T) {
	t.Parallel()

	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		_, err := a.Read(buf)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	interrupt(a)

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected an error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("interrupt did not unblock read")
	}
}
