// Package client is the FileLink client runtime. It mirrors the server's
// framing and enforces the protocol's per-connection ordering: one
// outstanding request at a time.
package client

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/sxlmons/filelink/pkg/constants"
	"github.com/sxlmons/filelink/pkg/wire"
)

// Client is one authenticated connection to a FileLink server. Methods are
// safe for concurrent use; requests are serialized on the connection.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	logger *zap.Logger

	maxPacketSize int

	mu     sync.Mutex // serializes request/response exchanges
	userID string
}

// Dial connects to a FileLink server.
func Dial(ctx context.Context, addr string, logger *zap.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return &Client{
		conn:          conn,
		reader:        bufio.NewReaderSize(conn, constants.DefaultNetworkBufferSize),
		logger:        logger.Named("client"),
		maxPacketSize: constants.DefaultMaxPacketSize,
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// UserID returns the authenticated user id, or "" before login.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Do sends one request and blocks for its response. Only one exchange is
// in flight on the connection at any time.
func (c *Client) Do(req *wire.Packet) (*wire.Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doLocked(req)
}

func (c *Client) doLocked(req *wire.Packet) (*wire.Packet, error) {
	if err := wire.WriteFrame(c.conn, req); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", req.CommandCode, err)
	}
	resp, err := wire.ReadFrame(c.reader, c.maxPacketSize)
	if err != nil {
		return nil, fmt.Errorf("no response to %s: %w", req.CommandCode, err)
	}
	return resp, nil
}

// failure turns an unsuccessful response into an error carrying the
// server's message.
func failure(resp *wire.Packet) error {
	msg := resp.Message()
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Errorf("server: %s", msg)
}

// CreateAccount registers a new user and returns its id.
func (c *Client) CreateAccount(username, password, email string) (string, error) {
	resp, err := c.Do(wire.NewCreateAccountRequest(username, password, email))
	if err != nil {
		return "", err
	}
	var body wire.CreateAccountResponseBody
	if err := resp.DecodeBody(&body); err != nil {
		return "", err
	}
	if !body.Success {
		return "", failure(resp)
	}
	return body.UserID, nil
}

// Login authenticates the connection.
func (c *Client) Login(username, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, err := c.doLocked(wire.NewLoginRequest(username, password))
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return failure(resp)
	}
	c.userID = resp.UserID
	c.logger.Debug("logged in", zap.String("userId", c.userID))
	return nil
}

// Logout ends the session; the server closes the connection afterwards.
func (c *Client) Logout() error {
	resp, err := c.Do(wire.NewLogoutRequest(c.UserID()))
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return failure(resp)
	}
	return nil
}

// ListFiles returns all of the user's files.
func (c *Client) ListFiles() ([]wire.FileInfo, error) {
	resp, err := c.Do(wire.NewFileListRequest(c.UserID()))
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, failure(resp)
	}
	var files []wire.FileInfo
	if err := resp.DecodeBody(&files); err != nil {
		return nil, err
	}
	return files, nil
}

// ListDirectory returns the files and subdirectories of one directory; an
// empty directoryID lists the root.
func (c *Client) ListDirectory(directoryID string) ([]wire.FileInfo, []wire.DirectoryInfo, error) {
	resp, err := c.Do(wire.NewDirectoryContentsRequest(c.UserID(), directoryID))
	if err != nil {
		return nil, nil, err
	}
	if !resp.IsSuccess() {
		return nil, nil, failure(resp)
	}
	var body wire.DirectoryContentsResponseBody
	if err := resp.DecodeBody(&body); err != nil {
		return nil, nil, err
	}
	return body.Files, body.Directories, nil
}

// CreateDirectory creates a directory and returns its id. An empty
// parentID creates it under the root.
func (c *Client) CreateDirectory(name, parentID string) (string, error) {
	resp, err := c.Do(wire.NewDirectoryCreateRequest(c.UserID(), name, parentID))
	if err != nil {
		return "", err
	}
	var body wire.DirectoryCreateResponseBody
	if err := resp.DecodeBody(&body); err != nil {
		return "", err
	}
	if !body.Success {
		return "", failure(resp)
	}
	return body.DirectoryID, nil
}

// DeleteDirectory removes a directory that has no subdirectories; the
// server moves any files it contains to the root.
func (c *Client) DeleteDirectory(directoryID string) error {
	resp, err := c.Do(wire.NewDirectoryDeleteRequest(c.UserID(), directoryID))
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return failure(resp)
	}
	return nil
}

// DeleteFile removes a file and its content.
func (c *Client) DeleteFile(fileID string) error {
	resp, err := c.Do(wire.NewFileDeleteRequest(c.UserID(), fileID))
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return failure(resp)
	}
	return nil
}

// MoveFiles moves files into a directory; an empty targetDirectoryID moves
// them to the root.
func (c *Client) MoveFiles(fileIDs []string, targetDirectoryID string) error {
	resp, err := c.Do(wire.NewFileMoveRequest(c.UserID(), fileIDs, targetDirectoryID))
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return failure(resp)
	}
	return nil
}
