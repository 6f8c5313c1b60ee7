package management

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWireRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	if err := writeCommand(&buf, CommandArchive); err != nil {
		t.Fatalf("writeCommand: %v", err)
	}
	args := []string{"primary", "newest", "", "/tmp/out"}
	for _, s := range args {
		if err := writeString(&buf, s); err != nil {
			t.Fatalf("writeString(%q): %v", s, err)
		}
	}
	if err := writeResult(&buf, 1); err != nil {
		t.Fatalf("writeResult: %v", err)
	}

	cmd, err := readCommand(&buf)
	if err != nil || cmd != CommandArchive {
		t.Fatalf("readCommand = %v, %v", cmd, err)
	}
	var got []string
	for range args {
		s, err := readString(&buf)
		if err != nil {
			t.Fatalf("readString: %v", err)
		}
		got = append(got, s)
	}
	if diff := cmp.Diff(args, got); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	code, err := readResult(&buf)
	if err != nil || code != 1 {
		t.Fatalf("readResult = %d, %v", code, err)
	}
}

func TestReadString_RejectsOversizedLength(t *testing.T) {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], maxStringLen+1)

	_, err := readString(bytes.NewReader(hdr[:]))
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
}

func TestReadString_TruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 10)
	buf.Write(hdr[:])
	buf.WriteString("short")

	if _, err := readString(&buf); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

type fakeHandler struct {
	mu    sync.Mutex
	calls []string
	code  int32
}

func (h *fakeHandler) record(parts ...string) int32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, strings.Join(parts, " "))
	return h.code
}

func (h *fakeHandler) Backup(server string) int32 {
	return h.record("backup", server)
}

func (h *fakeHandler) Restore(server, backupID, position, directory string) int32 {
	return h.record("restore", server, backupID, position, directory)
}

func (h *fakeHandler) Archive(server, backupID, position, directory string) int32 {
	return h.record("archive", server, backupID, position, directory)
}

func (h *fakeHandler) Verify(server, backupID string) int32 {
	return h.record("verify", server, backupID)
}

func (h *fakeHandler) setCode(code int32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.code = code
}

func (h *fakeHandler) recorded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func TestHandleDispatch(t *testing.T) {
	h := &fakeHandler{}
	s := NewServer(h, nil)

	send := func(cmd Command, args ...string) (int32, error) {
		t.Helper()
		client, server := net.Pipe()
		done := make(chan struct{})
		go func() {
			s.handle(server)
			close(done)
		}()
		defer func() {
			client.Close()
			<-done
		}()
		if err := writeCommand(client, cmd); err != nil {
			return 0, err
		}
		for _, a := range args {
			if err := writeString(client, a); err != nil {
				return 0, err
			}
		}
		return readResult(client)
	}

	if code, err := send(CommandBackup, "primary"); err != nil || code != 0 {
		t.Fatalf("backup = %d, %v", code, err)
	}
	if code, err := send(CommandVerify, "primary", "newest"); err != nil || code != 0 {
		t.Fatalf("verify = %d, %v", code, err)
	}
	if code, err := send(CommandIsAlive); err != nil || code != aliveStatus {
		t.Fatalf("isalive = %d, %v", code, err)
	}

	want := []string{"backup primary", "verify primary newest"}
	if diff := cmp.Diff(want, h.recorded()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestHandle_UnknownCommandClosesWithoutReply(t *testing.T) {
	s := NewServer(&fakeHandler{}, nil)
	client, server := net.Pipe()
	defer client.Close()
	go s.handle(server)

	if err := writeCommand(client, Command(0xee)); err != nil {
		t.Fatalf("writeCommand: %v", err)
	}
	if _, err := readResult(client); !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want EOF", err)
	}
}

func TestServeClientRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	h := &fakeHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewServer(h, cancel)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	c := NewClient(ln.Addr().String())

	if code, err := c.IsAlive(); err != nil || code != aliveStatus {
		t.Fatalf("IsAlive = %d, %v", code, err)
	}
	if code, err := c.Archive("primary", "newest", "", "/tmp/out"); err != nil || code != 0 {
		t.Fatalf("Archive = %d, %v", code, err)
	}

	h.setCode(1)
	if code, err := c.Backup("primary"); err != nil || code != 1 {
		t.Fatalf("Backup = %d, %v", code, err)
	}

	// Stop is acknowledged first, then the server shuts down.
	if code, err := c.Stop(); err != nil || code != 0 {
		t.Fatalf("Stop = %d, %v", code, err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Serve: %v", err)
	}

	want := []string{"archive primary newest  /tmp/out", "backup primary"}
	if diff := cmp.Diff(want, h.recorded()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_DialFailure(t *testing.T) {
	// Grab a free port and release it so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	if _, err := NewClient(addr).IsAlive(); err == nil {
		t.Fatal("expected dial error")
	}
}
