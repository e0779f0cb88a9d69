// Package wire implements the FileLink framing protocol: a length-prefixed
// binary packet with a fixed header, a string metadata map and an opaque
// payload. Encode and Decode are exact inverses for every well-formed packet.
package wire

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sxlmons/filelink/pkg/commands"
)

// Metadata keys with protocol-level meaning.
const (
	MetaSuccess     = "Success"
	MetaMessage     = "Message"
	MetaFileID      = "FileId"
	MetaChunkIndex  = "ChunkIndex"
	MetaIsLastChunk = "IsLastChunk"
	MetaDirectoryID = "DirectoryId"
	MetaContentHash = "ContentHash"
)

// Packet is the unit of exchange on the wire.
type Packet struct {
	CommandCode commands.Code
	PacketID    uuid.UUID
	UserID      string
	Timestamp   time.Time
	Metadata    map[string]string
	Payload     []byte
}

// NewPacket creates a packet with a fresh id, the current timestamp and an
// empty metadata map.
func NewPacket(code commands.Code) *Packet {
	return &Packet{
		CommandCode: code,
		PacketID:    uuid.New(),
		Timestamp:   time.Now().UTC(),
		Metadata:    make(map[string]string),
	}
}

// SetMeta sets a metadata entry and returns the packet for chaining.
func (p *Packet) SetMeta(key, value string) *Packet {
	if p.Metadata == nil {
		p.Metadata = make(map[string]string)
	}
	p.Metadata[key] = value
	return p
}

// Meta returns the metadata value for key, or "" when absent.
func (p *Packet) Meta(key string) string {
	return p.Metadata[key]
}

// BoolMeta interprets a metadata value as a boolean. Absent or malformed
// values read as false.
func (p *Packet) BoolMeta(key string) bool {
	v, err := strconv.ParseBool(p.Metadata[key])
	return err == nil && v
}

// IntMeta interprets a metadata value as a decimal integer.
func (p *Packet) IntMeta(key string) (int, bool) {
	v, err := strconv.Atoi(p.Metadata[key])
	if err != nil {
		return 0, false
	}
	return v, true
}

// IsSuccess reports whether the packet carries Success=true metadata.
func (p *Packet) IsSuccess() bool {
	return p.BoolMeta(MetaSuccess)
}

// Message returns the human-readable Message metadata, if any.
func (p *Packet) Message() string {
	return p.Metadata[MetaMessage]
}
