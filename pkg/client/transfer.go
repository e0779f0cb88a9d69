package client

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"lukechampine.com/blake3"

	"github.com/sxlmons/filelink/pkg/constants"
	"github.com/sxlmons/filelink/pkg/wire"
)

// Progress reports completed chunks during a transfer. total is fixed for
// the whole transfer; done grows by one per chunk.
type Progress func(done, total int)

// UploadFile streams a local file to the server in 1 MiB chunks and
// finalizes the upload. Returns the server-assigned file id. An empty
// directoryID uploads to the root; progress may be nil.
func (c *Client) UploadFile(path, directoryID string, progress Progress) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	size := info.Size()
	if size < 1 {
		return "", fmt.Errorf("%s is empty", path)
	}
	total := int((size + constants.ChunkSize - 1) / constants.ChunkSize)

	c.mu.Lock()
	defer c.mu.Unlock()

	initResp, err := c.doLocked(wire.NewUploadInitRequest(c.userID,
		filepath.Base(path), size, "application/octet-stream", directoryID))
	if err != nil {
		return "", err
	}
	var initBody wire.UploadInitResponseBody
	if err := initResp.DecodeBody(&initBody); err != nil {
		return "", err
	}
	if !initBody.Success {
		return "", failure(initResp)
	}
	fileID := initBody.FileID

	buf := make([]byte, constants.ChunkSize)
	for index := 0; index < total; index++ {
		n, err := io.ReadFull(f, buf)
		if err != nil && err != io.ErrUnexpectedEOF {
			return "", fmt.Errorf("failed to read chunk %d: %w", index, err)
		}
		isLast := index == total-1

		resp, err := c.doLocked(wire.NewUploadChunkRequest(c.userID, fileID, index, isLast, buf[:n]))
		if err != nil {
			return "", err
		}
		if !resp.IsSuccess() {
			return "", failure(resp)
		}
		if progress != nil {
			progress(index+1, total)
		}
	}

	resp, err := c.doLocked(wire.NewUploadCompleteRequest(c.userID, fileID))
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", failure(resp)
	}

	c.logger.Info("upload finished",
		zap.String("fileId", fileID),
		zap.Int64("bytes", size),
		zap.Int("chunks", total))
	return fileID, nil
}

// DownloadFile streams a server file into destPath, writing chunks as they
// arrive. When the server announces a content hash the downloaded bytes
// are verified against it. progress may be nil.
func (c *Client) DownloadFile(fileID, destPath string, progress Progress) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	initResp, err := c.doLocked(wire.NewDownloadInitRequest(c.userID, fileID))
	if err != nil {
		return err
	}
	var initBody wire.DownloadInitResponseBody
	if err := initResp.DecodeBody(&initBody); err != nil {
		return err
	}
	if !initBody.Success {
		return failure(initResp)
	}
	wantHash := initResp.Meta(wire.MetaContentHash)

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer out.Close()

	hasher := blake3.New(32, nil)
	for index := 0; index < initBody.TotalChunks; index++ {
		resp, err := c.doLocked(wire.NewDownloadChunkRequest(c.userID, fileID, index))
		if err != nil {
			return err
		}
		if !resp.IsSuccess() {
			return failure(resp)
		}
		if _, err := out.Write(resp.Payload); err != nil {
			return fmt.Errorf("failed to write %s: %w", destPath, err)
		}
		hasher.Write(resp.Payload)

		if isLast := resp.BoolMeta(wire.MetaIsLastChunk); isLast != (index == initBody.TotalChunks-1) {
			return fmt.Errorf("chunk %d last-chunk flag disagrees with chunk count", index)
		}
		if progress != nil {
			progress(index+1, initBody.TotalChunks)
		}
	}

	resp, err := c.doLocked(wire.NewDownloadCompleteRequest(c.userID, fileID))
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return failure(resp)
	}

	if wantHash != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if got != wantHash {
			return fmt.Errorf("content hash mismatch: got %s, want %s", got, wantHash)
		}
	}

	c.logger.Info("download finished",
		zap.String("fileId", fileID),
		zap.String("dest", destPath),
		zap.Int("chunks", initBody.TotalChunks))
	return nil
}
