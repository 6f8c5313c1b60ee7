// Package management implements the control socket: a TCP listener that
// accepts one command per connection, runs it synchronously and replies with
// a single int32 result code before closing. Clients learn success or
// failure; everything else lives in the log and the catalog.
package management

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"pgvault/internal/logging"
)

// Command identifies one management request.
type Command byte

const (
	CommandBackup Command = iota + 1
	CommandRestore
	CommandArchive
	CommandVerify
	CommandIsAlive
	CommandStop
)

func (c Command) String() string {
	switch c {
	case CommandBackup:
		return "backup"
	case CommandRestore:
		return "restore"
	case CommandArchive:
		return "archive"
	case CommandVerify:
		return "verify"
	case CommandIsAlive:
		return "isalive"
	case CommandStop:
		return "stop"
	}
	return fmt.Sprintf("command(%d)", byte(c))
}

// argCount returns the number of string arguments a command carries.
func argCount(cmd Command) (int, bool) {
	switch cmd {
	case CommandBackup:
		return 1, true
	case CommandRestore, CommandArchive:
		return 4, true
	case CommandVerify:
		return 2, true
	case CommandIsAlive, CommandStop:
		return 0, true
	}
	return 0, false
}

// aliveStatus is the IsAlive reply; 1 rather than the result convention's 0.
const aliveStatus int32 = 1

// Handler runs the operations behind the socket, reduced to their wire code.
type Handler interface {
	Backup(server string) int32
	Restore(server, backupID, position, directory string) int32
	Archive(server, backupID, position, directory string) int32
	Verify(server, backupID string) int32
}

// Server answers management connections, one goroutine per connection.
type Server struct {
	handler Handler
	stop    func()
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewServer returns a server dispatching to handler. stop is invoked after a
// Stop command's reply has been written; nil disables remote shutdown.
func NewServer(handler Handler, stop func()) *Server {
	return &Server{
		handler: handler,
		stop:    stop,
		logger:  logging.New("management"),
	}
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then waits for
// in-flight commands to finish. The listener is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	s.logger.Info("listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

// handle reads one command, runs it synchronously and writes the result.
// Malformed requests are dropped without a reply.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	cmd, err := readCommand(conn)
	if err != nil {
		s.logger.Warn("bad header", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}
	n, ok := argCount(cmd)
	if !ok {
		s.logger.Warn("unknown command", "remote", conn.RemoteAddr().String(), "command", byte(cmd))
		return
	}
	args := make([]string, n)
	for i := range args {
		if args[i], err = readString(conn); err != nil {
			s.logger.Warn("bad payload", "command", cmd.String(), "error", err)
			return
		}
	}

	s.logger.Debug("dispatch", "command", cmd.String(), "args", args)

	var code int32
	switch cmd {
	case CommandBackup:
		code = s.handler.Backup(args[0])
	case CommandRestore:
		code = s.handler.Restore(args[0], args[1], args[2], args[3])
	case CommandArchive:
		code = s.handler.Archive(args[0], args[1], args[2], args[3])
	case CommandVerify:
		code = s.handler.Verify(args[0], args[1])
	case CommandIsAlive:
		code = aliveStatus
	case CommandStop:
		code = 0
	}

	if err := writeResult(conn, code); err != nil {
		s.logger.Warn("write result failed", "command", cmd.String(), "error", err)
		return
	}

	if cmd == CommandStop && s.stop != nil {
		s.stop()
	}
}
