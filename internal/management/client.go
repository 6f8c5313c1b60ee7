package management

import (
	"fmt"
	"net"
	"time"
)

// dialTimeout bounds connection establishment. Command execution itself is
// unbounded; operations run for as long as the data takes.
const dialTimeout = 5 * time.Second

// Client issues management commands. Each call opens one connection, sends
// one command and reads the final result code.
type Client struct {
	addr string
}

// NewClient returns a client for the management address.
func NewClient(addr string) *Client {
	return &Client{addr: addr}
}

// Backup triggers a backup of the named server.
func (c *Client) Backup(server string) (int32, error) {
	return c.roundTrip(CommandBackup, server)
}

// Restore materializes a backup into directory.
func (c *Client) Restore(server, backupID, position, directory string) (int32, error) {
	return c.roundTrip(CommandRestore, server, backupID, position, directory)
}

// Archive produces a compressed archive of a backup in directory.
func (c *Client) Archive(server, backupID, position, directory string) (int32, error) {
	return c.roundTrip(CommandArchive, server, backupID, position, directory)
}

// Verify re-digests a backup against its manifest.
func (c *Client) Verify(server, backupID string) (int32, error) {
	return c.roundTrip(CommandVerify, server, backupID)
}

// IsAlive probes the server; an alive server replies 1.
func (c *Client) IsAlive() (int32, error) {
	return c.roundTrip(CommandIsAlive)
}

// Stop asks the server to shut down once the reply is on the wire.
func (c *Client) Stop() (int32, error) {
	return c.roundTrip(CommandStop)
}

func (c *Client) roundTrip(cmd Command, args ...string) (int32, error) {
	conn, err := net.DialTimeout("tcp", c.addr, dialTimeout)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer conn.Close()

	if err := writeCommand(conn, cmd); err != nil {
		return 0, err
	}
	for _, a := range args {
		if err := writeString(conn, a); err != nil {
			return 0, err
		}
	}
	return readResult(conn)
}
