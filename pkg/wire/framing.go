package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Each packet travels on the stream behind a 4-byte little-endian unsigned
// length prefix. The prefix counts the encoded packet body only, never its
// own four bytes.

// ReadFrame reads one length-prefixed packet from r. maxSize bounds the
// announced body length; anything outside (0, maxSize] is a protocol error.
// The body is read fully even when it arrives across multiple reads.
func ReadFrame(r io.Reader, maxSize int) (*Packet, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(prefix[:])
	if n == 0 {
		return nil, NewProtocolError(ErrorBadFrame, "zero-length frame")
	}
	if int64(n) > int64(maxSize) {
		return nil, ErrOversize(int(n), maxSize)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrTruncated("frame body")
		}
		return nil, err
	}
	return Decode(body)
}

// WriteFrame encodes the packet and writes it to w behind its length prefix.
func WriteFrame(w io.Writer, p *Packet) error {
	body, err := Encode(p)
	if err != nil {
		return err
	}
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(body)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("failed to write frame prefix: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write frame body: %w", err)
	}
	return nil
}
