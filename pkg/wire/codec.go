package wire

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"

	"github.com/sxlmons/filelink/pkg/commands"
	"github.com/sxlmons/filelink/pkg/constants"
)

// Wire layout, in order:
//
//	version    1 byte  (0x01)
//	command    4 bytes little-endian signed
//	packet id  16 bytes, GUID little-endian byte order
//	user id    4-byte length + UTF-8 bytes
//	timestamp  8 bytes little-endian signed, 100-ns ticks since 0001-01-01 UTC
//	metadata   4-byte count, then per entry: 4-byte key length, key,
//	           4-byte value length, value
//	payload    4-byte length + bytes

// epochTicks is the tick count from 0001-01-01 UTC to the Unix epoch.
const epochTicks = 621355968000000000

const ticksPerSecond = 10_000_000

// toTicks converts via whole seconds rather than UnixNano, which overflows
// for dates far from the Unix epoch.
func toTicks(t time.Time) int64 {
	return t.Unix()*ticksPerSecond + int64(t.Nanosecond())/100 + epochTicks
}

func fromTicks(ticks int64) time.Time {
	rel := ticks - epochTicks
	return time.Unix(rel/ticksPerSecond, (rel%ticksPerSecond)*100).UTC()
}

// marshalGUID writes the packet id in GUID little-endian byte order: the
// first three groups are byte-reversed, the last eight bytes are as-is.
func marshalGUID(id uuid.UUID) [16]byte {
	var b [16]byte
	b[0], b[1], b[2], b[3] = id[3], id[2], id[1], id[0]
	b[4], b[5] = id[5], id[4]
	b[6], b[7] = id[7], id[6]
	copy(b[8:], id[8:])
	return b
}

func unmarshalGUID(b []byte) uuid.UUID {
	var id uuid.UUID
	id[0], id[1], id[2], id[3] = b[3], b[2], b[1], b[0]
	id[4], id[5] = b[5], b[4]
	id[6], id[7] = b[7], b[6]
	copy(id[8:], b[8:16])
	return id
}

// encodedSize returns the exact byte count Encode will produce for p.
func encodedSize(p *Packet) int {
	n := 1 + 4 + 16 + 4 + len(p.UserID) + 8 + 4
	for k, v := range p.Metadata {
		n += 4 + len(k) + 4 + len(v)
	}
	n += 4 + len(p.Payload)
	return n
}

// Encode serializes the packet to its wire form. The output round-trips
// with Decode exactly, including empty metadata and empty payload.
func Encode(p *Packet) ([]byte, error) {
	size := encodedSize(p)
	if size > constants.DefaultMaxPacketSize {
		return nil, ErrOversize(size, constants.DefaultMaxPacketSize)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, constants.ProtocolVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(p.CommandCode)))
	guid := marshalGUID(p.PacketID)
	buf = append(buf, guid[:]...)
	buf = appendString(buf, p.UserID)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(toTicks(p.Timestamp)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(len(p.Metadata))))
	for k, v := range p.Metadata {
		buf = appendString(buf, k)
		buf = appendString(buf, v)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(len(p.Payload))))
	buf = append(buf, p.Payload...)
	return buf, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(len(s))))
	return append(buf, s...)
}

// decoder walks the input buffer keeping a cursor; every read checks the
// remaining length first so truncated input surfaces as a protocol error.
type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) remaining() int { return len(d.data) - d.pos }

func (d *decoder) byte(field string) (byte, error) {
	if d.remaining() < 1 {
		return 0, ErrTruncated(field)
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) int32(field string) (int32, error) {
	if d.remaining() < 4 {
		return 0, ErrTruncated(field)
	}
	v := int32(binary.LittleEndian.Uint32(d.data[d.pos:]))
	d.pos += 4
	return v, nil
}

func (d *decoder) int64(field string) (int64, error) {
	if d.remaining() < 8 {
		return 0, ErrTruncated(field)
	}
	v := int64(binary.LittleEndian.Uint64(d.data[d.pos:]))
	d.pos += 8
	return v, nil
}

func (d *decoder) bytes(n int, field string) ([]byte, error) {
	if d.remaining() < n {
		return nil, ErrTruncated(field)
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) lenPrefixed(field string) ([]byte, error) {
	n, err := d.int32(field)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, ErrNegativeLength(field, n)
	}
	if int(n) > constants.DefaultMaxPacketSize {
		return nil, ErrOversize(int(n), constants.DefaultMaxPacketSize)
	}
	return d.bytes(int(n), field)
}

// Decode parses a packet from its wire form. The entire buffer must be
// consumed; trailing bytes are a protocol error.
func Decode(data []byte) (*Packet, error) {
	d := &decoder{data: data}

	version, err := d.byte("version")
	if err != nil {
		return nil, err
	}
	if version != constants.ProtocolVersion {
		return nil, ErrVersionMismatch(constants.ProtocolVersion, version)
	}

	code, err := d.int32("command code")
	if err != nil {
		return nil, err
	}

	guid, err := d.bytes(16, "packet id")
	if err != nil {
		return nil, err
	}

	userID, err := d.lenPrefixed("user id")
	if err != nil {
		return nil, err
	}

	ticks, err := d.int64("timestamp")
	if err != nil {
		return nil, err
	}

	count, err := d.int32("metadata count")
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, ErrNegativeLength("metadata count", count)
	}
	metadata := make(map[string]string, count)
	for i := int32(0); i < count; i++ {
		key, err := d.lenPrefixed("metadata key")
		if err != nil {
			return nil, err
		}
		if _, ok := metadata[string(key)]; ok {
			return nil, NewProtocolError(ErrorDuplicateKey, "duplicate metadata key "+string(key))
		}
		value, err := d.lenPrefixed("metadata value")
		if err != nil {
			return nil, err
		}
		metadata[string(key)] = string(value)
	}

	payload, err := d.lenPrefixed("payload")
	if err != nil {
		return nil, err
	}

	if d.remaining() != 0 {
		return nil, NewProtocolError(ErrorTrailingBytes,
			"trailing bytes after packet body")
	}

	p := &Packet{
		CommandCode: commands.Code(code),
		PacketID:    unmarshalGUID(guid),
		UserID:      string(userID),
		Timestamp:   fromTicks(ticks),
		Metadata:    metadata,
	}
	if len(payload) > 0 {
		p.Payload = append([]byte(nil), payload...)
	}
	return p, nil
}
