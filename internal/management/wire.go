package management

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Wire framing: a one-byte command header, each string argument as a 4-byte
// big-endian length followed by that many bytes, and a final 4-byte
// big-endian result code. An empty string is a zero length with no payload.

// ErrProtocol reports a malformed frame.
var ErrProtocol = errors.New("management: protocol error")

// maxStringLen bounds a single argument so a corrupt length prefix cannot
// force an arbitrarily large allocation.
const maxStringLen = 1 << 20

func readCommand(r io.Reader) (Command, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("read command: %w", err)
	}
	return Command(buf[0]), nil
}

func writeCommand(w io.Writer, cmd Command) error {
	if _, err := w.Write([]byte{byte(cmd)}); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

func readString(r io.Reader) (string, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return "", fmt.Errorf("read string length: %w", err)
	}
	n := binary.BigEndian.Uint32(buf[:])
	if n == 0 {
		return "", nil
	}
	if n > maxStringLen {
		return "", fmt.Errorf("%w: string length %d", ErrProtocol, n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("read string: %w", err)
	}
	return string(b), nil
}

func writeString(w io.Writer, s string) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(s)))
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("write string length: %w", err)
	}
	if len(s) > 0 {
		if _, err := io.WriteString(w, s); err != nil {
			return fmt.Errorf("write string: %w", err)
		}
	}
	return nil
}

func readResult(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("read result: %w", err)
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

func writeResult(w io.Writer, code int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(code))
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
