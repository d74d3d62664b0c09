package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	ftp "github.com/gonzalop/miniftp"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startServer serves rootDir on a loopback port and shuts the server down
// when the test ends.
func startServer(t *testing.T, rootDir string, opts ...Option) (*Server, string) {
	t.Helper()

	opts = append([]Option{
		WithRootDir(rootDir),
		WithLogger(quietLogger()),
		WithPollInterval(25 * time.Millisecond),
	}, opts...)
	s, err := NewServer("127.0.0.1:0", opts...)
	fatalIfErr(t, err, "NewServer")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	fatalIfErr(t, err, "listen")

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
		select {
		case err := <-errCh:
			if !errors.Is(err, ErrServerClosed) {
				t.Errorf("Serve returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after Shutdown")
		}
	})

	return s, ln.Addr().String()
}

// rawConn is a bare control connection for checking exact reply lines.
type rawConn struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dialRaw(t *testing.T, addr string) *rawConn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	fatalIfErr(t, err, "dial")
	t.Cleanup(func() { conn.Close() })
	return &rawConn{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *rawConn) readLine() string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := c.r.ReadString('\n')
	fatalIfErr(c.t, err, "read reply")
	return line
}

func (c *rawConn) send(cmd string) string {
	c.t.Helper()
	_, err := fmt.Fprintf(c.conn, "%s\r\n", cmd)
	fatalIfErr(c.t, err, "send %q", cmd)
	return c.readLine()
}

func (c *rawConn) expect(cmd string, want string) {
	c.t.Helper()
	if got := c.send(cmd); got != want {
		c.t.Fatalf("%s: got %q, want %q", cmd, got, want)
	}
}

func (c *rawConn) greeting() {
	c.t.Helper()
	if got := c.readLine(); got != ReplyServiceReady.Line() {
		c.t.Fatalf("greeting = %q", got)
	}
}

func (c *rawConn) login() {
	c.t.Helper()
	c.greeting()
	c.expect("USER a", ReplyNeedPassword.Line())
	c.expect("PASS b", ReplyLoggedIn.Line())
}

func (c *rawConn) expectEOF() {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if line, err := c.r.ReadString('\n'); err != io.EOF {
		c.t.Fatalf("expected EOF, got %q, %v", line, err)
	}
}

var pasvReplyRegex = regexp.MustCompile(`^227 Entering Passive Mode \(127,0,0,1,(\d+),(\d+)\)\r\n$`)

func (c *rawConn) pasv() int {
	c.t.Helper()
	line := c.send("PASV")
	m := pasvReplyRegex.FindStringSubmatch(line)
	if m == nil {
		c.t.Fatalf("PASV reply = %q", line)
	}
	p1, _ := strconv.Atoi(m[1])
	p2, _ := strconv.Atoi(m[2])
	return p1*256 + p2
}

func dialData(t *testing.T, port int) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 2*time.Second)
	fatalIfErr(t, err, "dial data port %d", port)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestNewServer_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewServer(":0"); err == nil {
		t.Error("expected error without root directory")
	}
	if _, err := NewServer(":0", WithRootDir(filepath.Join(t.TempDir(), "missing"))); err == nil {
		t.Error("expected error for missing root")
	}

	file := filepath.Join(t.TempDir(), "file")
	fatalIfErr(t, os.WriteFile(file, nil, 0o644), "write")
	if _, err := NewServer(":0", WithRootDir(file)); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("expected ErrNotDirectory, got %v", err)
	}

	root := t.TempDir()
	bad := []Option{
		WithWorkers(0),
		WithPollInterval(0),
		WithMaxIdleTime(-1),
		WithMaxPending(-1),
		WithPassiveHost("::1"),
		WithPassiveHost("not-an-ip"),
		WithPassivePortRange(100, 10),
		WithDataAcceptTimeout(-time.Second),
		WithBandwidthLimit(-1),
		WithLogger(nil),
	}
	for i, opt := range bad {
		if _, err := NewServer(":0", WithRootDir(root), opt); err == nil {
			t.Errorf("option %d: expected error", i)
		}
	}

	s, err := NewServer(":0", WithRootDir(root+string(filepath.Separator)))
	fatalIfErr(t, err, "NewServer")
	if s.RootDir() != filepath.Clean(root) {
		t.Errorf("RootDir() = %q", s.RootDir())
	}
}

// Connect, log in, and PWD reports the root.
func TestSession_LoginAndPWD(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	_, addr := startServer(t, root)

	c := dialRaw(t, addr)
	c.login()
	c.expect("PWD", ReplyCurrentDir.Line(root))
	c.expect("QUIT", ReplyClosingControl.Line())
	c.expectEOF()
}

// RETR needs PASV first; a missing file is 550 once the channel is ready.
func TestSession_RetrSequencing(t *testing.T) {
	t.Parallel()
	_, addr := startServer(t, t.TempDir())

	c := dialRaw(t, addr)
	c.login()
	c.expect("RETR nofile.txt", ReplyBadSequence.Line())
	c.pasv()
	c.expect("RETR nofile.txt", ReplyFileUnavailable.Line())

	// the channel was reset by the failed transfer
	c.expect("RETR nofile.txt", ReplyBadSequence.Line())
}

// LIST of an empty directory yields 150, no data, then 226.
func TestSession_ListEmptyDirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	fatalIfErr(t, os.Mkdir(filepath.Join(root, "sub"), 0o755), "mkdir")
	_, addr := startServer(t, root)

	c := dialRaw(t, addr)
	c.login()
	port := c.pasv()
	data := dialData(t, port)

	c.expect("LIST sub", ReplyFileStatusOK.Line())
	_ = data.SetReadDeadline(time.Now().Add(5 * time.Second))
	body, err := io.ReadAll(data)
	fatalIfErr(t, err, "read data")
	if len(body) != 0 {
		t.Errorf("expected empty listing, got %q", body)
	}
	if got := c.readLine(); got != ReplyClosingData.Line() {
		t.Errorf("after LIST: %q", got)
	}
}

func TestSession_ListIsStable(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "dir"} {
		fatalIfErr(t, os.WriteFile(filepath.Join(root, name), []byte(name), 0o644), "write")
	}
	_, addr := startServer(t, root)

	c := dialRaw(t, addr)
	c.login()

	list := func() []string {
		port := c.pasv()
		data := dialData(t, port)
		c.expect("LIST", ReplyFileStatusOK.Line())
		_ = data.SetReadDeadline(time.Now().Add(5 * time.Second))
		body, err := io.ReadAll(data)
		fatalIfErr(t, err, "read data")
		if got := c.readLine(); got != ReplyClosingData.Line() {
			t.Fatalf("after LIST: %q", got)
		}
		if !strings.HasSuffix(string(body), "\r\n") {
			t.Fatalf("listing not CRLF terminated: %q", body)
		}
		names := strings.Split(strings.TrimSuffix(string(body), "\r\n"), "\r\n")
		sort.Strings(names)
		return names
	}

	first := list()
	second := list()
	want := []string{"a.txt", "b.txt", "dir"}
	if strings.Join(first, ",") != strings.Join(want, ",") {
		t.Errorf("first listing = %v", first)
	}
	if strings.Join(first, ",") != strings.Join(second, ",") {
		t.Errorf("listings differ: %v vs %v", first, second)
	}
}

func TestSession_ListNotADirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	fatalIfErr(t, os.WriteFile(filepath.Join(root, "f"), nil, 0o644), "write")
	_, addr := startServer(t, root)

	c := dialRaw(t, addr)
	c.login()
	c.pasv()
	c.expect("LIST f", ReplyFileUnavailable.Line())
	c.pasv()
	c.expect("LIST missing", ReplyFileUnavailable.Line())
}

func TestSession_CWDRoundTrip(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	sub := filepath.Join(root, "d")
	fatalIfErr(t, os.MkdirAll(filepath.Join(sub, "e"), 0o755), "mkdir")
	_, addr := startServer(t, root)

	c := dialRaw(t, addr)
	c.login()

	c.expect("CWD d", ReplyFileActionOK.Line())
	c.expect("PWD", ReplyCurrentDir.Line(sub))

	c.expect("CWD nonexistent", ReplyFileUnavailable.Line())
	c.expect("PWD", ReplyCurrentDir.Line(sub))

	c.expect("CWD e/..", ReplyFileActionOK.Line())
	c.expect("PWD", ReplyCurrentDir.Line(sub))

	c.expect("CWD ..", ReplyFileActionOK.Line())
	c.expect("PWD", ReplyCurrentDir.Line(root))

	c.expect("CWD "+sub, ReplyFileActionOK.Line())
	c.expect("PWD", ReplyCurrentDir.Line(sub))
}

func TestSession_StateMachine(t *testing.T) {
	t.Parallel()
	_, addr := startServer(t, t.TempDir())

	c := dialRaw(t, addr)
	c.greeting()

	// nothing but USER (and QUIT) before login
	c.expect("PASS b", ReplyBadSequence.Line())
	c.expect("PWD", ReplyBadSequence.Line())
	c.expect("PASV", ReplyBadSequence.Line())
	c.expect("LIST", ReplyBadSequence.Line())
	c.expect("user a", ReplyBadSequence.Line())
	c.expect("GARBAGE", ReplyBadSequence.Line())
	c.expect("ABOR", ReplyBadSequence.Line())

	// never implemented, in any state
	c.expect("FEAT", ReplyNotImplemented.Line())
	c.expect("AUTH TLS", ReplyNotImplemented.Line())
	c.expect("NOOP", ReplyNotImplemented.Line())

	c.expect("USER a", ReplyNeedPassword.Line())
	c.expect("USER again", ReplyBadSequence.Line())
	c.expect("PWD", ReplyBadSequence.Line())
	c.expect("PASS b", ReplyLoggedIn.Line())

	c.expect("PASS b", ReplyBadSequence.Line())
	c.expect("USER a", ReplyBadSequence.Line())
	c.expect("PORT 127,0,0,1,4,1", ReplyNotImplemented.Line())
	c.expect("NOOP", ReplyNotImplemented.Line())
	c.expect("LIST", ReplyBadSequence.Line())
	c.expect("STOR x", ReplyBadSequence.Line())

	// STOR with a ready channel is not implemented and consumes the channel
	c.pasv()
	c.expect("STOR x", ReplyNotImplemented.Line())
	c.expect("LIST", ReplyBadSequence.Line())
}

func TestSession_QuitFromEveryState(t *testing.T) {
	t.Parallel()
	_, addr := startServer(t, t.TempDir())

	steps := [][]string{
		nil,
		{"USER a"},
		{"USER a", "PASS b"},
		{"USER a", "PASS b", "PASV"},
	}
	for _, prefix := range steps {
		c := dialRaw(t, addr)
		c.greeting()
		for _, cmd := range prefix {
			c.send(cmd)
		}
		c.expect("QUIT", ReplyClosingControl.Line())
		c.expectEOF()
	}
}

func TestSession_PasvTwiceReplacesListener(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	fatalIfErr(t, os.WriteFile(filepath.Join(root, "x"), nil, 0o644), "write")
	_, addr := startServer(t, root)

	c := dialRaw(t, addr)
	c.login()
	first := c.pasv()
	second := c.pasv()

	if first != second {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(first)), time.Second)
		if err == nil {
			conn.Close()
			t.Error("first passive listener still open")
		}
	}

	data := dialData(t, second)
	c.expect("LIST", ReplyFileStatusOK.Line())
	_ = data.SetReadDeadline(time.Now().Add(5 * time.Second))
	body, _ := io.ReadAll(data)
	if string(body) != "x\r\n" {
		t.Errorf("listing = %q", body)
	}
	if got := c.readLine(); got != ReplyClosingData.Line() {
		t.Errorf("after LIST: %q", got)
	}
}

func TestSession_CommandTooLong(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	_, addr := startServer(t, root)

	c := dialRaw(t, addr)
	c.login()
	c.expect(strings.Repeat("A", MaxCommandLength+100), ReplyLineTooLong.Line())
	// the session survives
	c.expect("PWD", ReplyCurrentDir.Line(root))
}

func TestSession_IdleTimeout(t *testing.T) {
	t.Parallel()
	_, addr := startServer(t, t.TempDir(), WithMaxIdleTime(100*time.Millisecond))

	c := dialRaw(t, addr)
	c.greeting()
	if got := c.readLine(); got != ReplyServiceUnavailable.Line() {
		t.Fatalf("expected 421, got %q", got)
	}
	c.expectEOF()
}

func TestSession_DataAcceptTimeout(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	fatalIfErr(t, os.WriteFile(filepath.Join(root, "f"), []byte("data"), 0o644), "write")
	_, addr := startServer(t, root, WithDataAcceptTimeout(100*time.Millisecond))

	c := dialRaw(t, addr)
	c.login()
	c.pasv()
	// nobody connects to the data port
	c.expect("RETR f", ReplyCantOpenData.Line())
	c.expect("LIST", ReplyBadSequence.Line())
}

func TestClient_RetrieveAndList(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	content := bytes.Repeat([]byte("0123456789abcdef"), 64*1024)
	fatalIfErr(t, os.MkdirAll(filepath.Join(root, "pub"), 0o755), "mkdir")
	fatalIfErr(t, os.WriteFile(filepath.Join(root, "pub", "big.bin"), content, 0o644), "write")
	_, addr := startServer(t, root)

	c, err := ftp.Dial(addr, ftp.WithTimeout(5*time.Second))
	fatalIfErr(t, err, "Dial")
	defer c.Quit()
	fatalIfErr(t, c.Login("anonymous", "anonymous"), "Login")

	fatalIfErr(t, c.ChangeDir("pub"), "ChangeDir")
	dir, err := c.CurrentDir()
	fatalIfErr(t, err, "CurrentDir")
	if dir != filepath.Join(root, "pub") {
		t.Errorf("CurrentDir() = %q", dir)
	}

	names, err := c.NameList("")
	fatalIfErr(t, err, "NameList")
	if len(names) != 1 || names[0] != "big.bin" {
		t.Errorf("NameList() = %v", names)
	}

	var buf bytes.Buffer
	n, err := c.Retrieve("big.bin", &buf)
	fatalIfErr(t, err, "Retrieve")
	if n != int64(len(content)) || !bytes.Equal(buf.Bytes(), content) {
		t.Errorf("Retrieve() got %d bytes, want %d", n, len(content))
	}

	// absolute paths work too
	buf.Reset()
	_, err = c.Retrieve(filepath.Join(root, "pub", "big.bin"), &buf)
	fatalIfErr(t, err, "Retrieve absolute")

	_, err = c.Retrieve("missing.bin", io.Discard)
	var perr *ftp.ProtocolError
	if !errors.As(err, &perr) || perr.Code != 550 {
		t.Errorf("Retrieve(missing) = %v, want 550", err)
	}

	// a directory is not retrievable
	_, err = c.Retrieve(".", io.Discard)
	if !errors.As(err, &perr) || perr.Code != 550 {
		t.Errorf("Retrieve(dir) = %v, want 550", err)
	}
}

func TestClient_RetrieveThrottled(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	content := bytes.Repeat([]byte("z"), 256*1024)
	fatalIfErr(t, os.WriteFile(filepath.Join(root, "f.bin"), content, 0o644), "write")
	_, addr := startServer(t, root, WithBandwidthLimit(1<<20))

	c, err := ftp.Dial(addr, ftp.WithTimeout(5*time.Second))
	fatalIfErr(t, err, "Dial")
	defer c.Quit()
	fatalIfErr(t, c.Login("a", "b"), "Login")

	var buf bytes.Buffer
	_, err = c.Retrieve("f.bin", &buf)
	fatalIfErr(t, err, "Retrieve")
	if !bytes.Equal(buf.Bytes(), content) {
		t.Error("content mismatch")
	}
}

// A client that drops the data connection mid-RETR gets 426, and the
// channel is reset so the next transfer needs a fresh PASV.
func TestSession_RetrieveAbortedByClient(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	content := bytes.Repeat([]byte("q"), 4<<20)
	fatalIfErr(t, os.WriteFile(filepath.Join(root, "big.bin"), content, 0o644), "write")
	// slow enough that the transfer is still running when the client leaves
	_, addr := startServer(t, root, WithBandwidthLimit(256*1024))

	c := dialRaw(t, addr)
	c.login()
	data := dialData(t, c.pasv())
	c.expect("RETR big.bin", ReplyFileStatusOK.Line())

	buf := make([]byte, 4096)
	_ = data.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := data.Read(buf); err != nil {
		t.Fatalf("first data read: %v", err)
	}
	// discard unread data with a reset rather than a FIN
	if tc, ok := data.(*net.TCPConn); ok {
		_ = tc.SetLinger(0)
	}
	data.Close()

	_ = c.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	line, err := c.r.ReadString('\n')
	fatalIfErr(t, err, "read RETR result")
	if line != ReplyTransferAborted.Line() {
		t.Fatalf("RETR result = %q, want %q", line, ReplyTransferAborted.Line())
	}

	c.expect("LIST", ReplyBadSequence.Line())
	c.expect("QUIT", ReplyClosingControl.Line())
}

// More connections than workers: all complete once workers free up.
func TestServer_MoreConnectionsThanWorkers(t *testing.T) {
	t.Parallel()
	_, addr := startServer(t, t.TempDir(), WithWorkers(2))

	const clients = 8
	var wg sync.WaitGroup
	errs := make(chan error, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := ftp.Dial(addr, ftp.WithTimeout(10*time.Second))
			if err != nil {
				errs <- err
				return
			}
			if err := c.Login(fmt.Sprintf("user%d", i), "pw"); err != nil {
				errs <- err
				c.Close()
				return
			}
			if err := c.Quit(); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("client failed: %v", err)
	}
}

func TestServer_MaxPending(t *testing.T) {
	t.Parallel()
	s, addr := startServer(t, t.TempDir(), WithWorkers(1), WithMaxPending(1))

	busy := dialRaw(t, addr)
	busy.greeting()

	queued := dialRaw(t, addr)
	waitFor(t, func() bool {
		_, pending := s.Stats()
		return pending == 1
	})

	rejected := dialRaw(t, addr)
	if got := rejected.readLine(); got != ReplyServiceUnavailable.Line() {
		t.Fatalf("expected 421, got %q", got)
	}
	rejected.expectEOF()

	// the queued session is served once the worker frees up
	busy.expect("QUIT", ReplyClosingControl.Line())
	queued.greeting()
	queued.expect("QUIT", ReplyClosingControl.Line())
}

func TestServer_Shutdown(t *testing.T) {
	t.Parallel()

	s, err := NewServer("127.0.0.1:0",
		WithRootDir(t.TempDir()),
		WithLogger(quietLogger()),
		WithPollInterval(25*time.Millisecond),
		WithMaxIdleTime(0),
	)
	fatalIfErr(t, err, "NewServer")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	fatalIfErr(t, err, "listen")
	addr := ln.Addr().String()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	c := dialRaw(t, addr)
	c.login()
	waitFor(t, func() bool {
		active, _ := s.Stats()
		return active == 1
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	fatalIfErr(t, s.Shutdown(ctx), "Shutdown")

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrServerClosed) {
			t.Errorf("Serve() = %v, want ErrServerClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}

	if got := c.readLine(); got != ReplyServiceUnavailable.Line() {
		t.Errorf("expected 421 on shutdown, got %q", got)
	}
	c.expectEOF()

	if _, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		t.Error("listener still accepting after Shutdown")
	}

	// serving again is refused
	ln2, err := net.Listen("tcp", "127.0.0.1:0")
	fatalIfErr(t, err, "listen")
	if err := s.Serve(ln2); !errors.Is(err, ErrServerClosed) {
		t.Errorf("Serve after Shutdown = %v", err)
	}
	if err := s.ListenAndServe(); !errors.Is(err, ErrServerClosed) {
		t.Errorf("ListenAndServe after Shutdown = %v", err)
	}
}

func TestServer_ShutdownBeforeServe(t *testing.T) {
	t.Parallel()

	s, err := NewServer("127.0.0.1:0", WithRootDir(t.TempDir()), WithLogger(quietLogger()))
	fatalIfErr(t, err, "NewServer")
	fatalIfErr(t, s.Shutdown(context.Background()), "Shutdown")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	fatalIfErr(t, err, "listen")
	if err := s.Serve(ln); !errors.Is(err, ErrServerClosed) {
		t.Errorf("Serve() = %v", err)
	}
}

type countingMetrics struct {
	mu          sync.Mutex
	commands    map[string]int
	failures    int
	transfers   map[string]int64
	connections map[string]int
	logins      int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		commands:    make(map[string]int),
		transfers:   make(map[string]int64),
		connections: make(map[string]int),
	}
}

func (m *countingMetrics) RecordCommand(cmd string, success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[cmd]++
	if !success {
		m.failures++
	}
}

func (m *countingMetrics) RecordTransfer(op string, bytes int64, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers[op] += bytes
}

func (m *countingMetrics) RecordConnection(_ bool, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[reason]++
}

func (m *countingMetrics) RecordAuthentication(success bool, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.logins++
	}
}

func (m *countingMetrics) RecordWorkers(int, int) {}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	fatalIfErr(t, os.WriteFile(filepath.Join(root, "f"), []byte("hello"), 0o644), "write")
	m := newCountingMetrics()
	_, addr := startServer(t, root, WithMetricsCollector(m))

	c, err := ftp.Dial(addr, ftp.WithTimeout(5*time.Second))
	fatalIfErr(t, err, "Dial")
	fatalIfErr(t, c.Login("a", "b"), "Login")
	_, err = c.Retrieve("f", io.Discard)
	fatalIfErr(t, err, "Retrieve")
	_ = c.ChangeDir("missing")
	fatalIfErr(t, c.Quit(), "Quit")

	waitFor(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.commands["QUIT"] == 1
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connections["accepted"] != 1 || m.logins != 1 {
		t.Errorf("connections=%v logins=%d", m.connections, m.logins)
	}
	if m.transfers["RETR"] != 5 {
		t.Errorf("transfers = %v", m.transfers)
	}
	if m.commands["CWD"] != 1 || m.failures != 1 {
		t.Errorf("commands=%v failures=%d", m.commands, m.failures)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
