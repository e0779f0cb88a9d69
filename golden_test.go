// Package main provides golden tests for the FileLink wire format. The hex
// vectors here are the protocol contract: a change that breaks them breaks
// every deployed client.
package main

import (
	"bytes"
	"encoding/hex"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sxlmons/filelink/pkg/commands"
	"github.com/sxlmons/filelink/pkg/wire"
)

// goldenPacket is a fixed LOGIN_REQUEST-coded packet with one metadata
// entry and a two-byte payload.
func goldenPacket() *wire.Packet {
	return &wire.Packet{
		CommandCode: commands.LoginRequest,
		PacketID:    uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff"),
		UserID:      "alice",
		Timestamp:   time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		Metadata:    map[string]string{"Success": "true"},
		Payload:     []byte("hi"),
	}
}

// goldenHex is the exact wire form of goldenPacket: version 0x01, command
// 100 LE, GUID little-endian byte order, length-prefixed user id,
// 637450560000000000 ticks LE, one metadata pair, payload.
const goldenHex = "016400000033221100554477668899aabbccddeeff" +
	"05000000616c696365" +
	"0080ac2ee8add808" +
	"0100000007000000537563636573730400000074727565" +
	"020000006869"

func TestGoldenEncoding(t *testing.T) {
	want, err := hex.DecodeString(goldenHex)
	if err != nil {
		t.Fatalf("bad golden vector: %v", err)
	}

	got, err := wire.Encode(goldenPacket())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("encoding diverged from golden vector\n got: %x\nwant: %x", got, want)
	}
}

func TestGoldenDecoding(t *testing.T) {
	data, err := hex.DecodeString(goldenHex)
	if err != nil {
		t.Fatalf("bad golden vector: %v", err)
	}

	p, err := wire.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := goldenPacket()
	if p.CommandCode != want.CommandCode ||
		p.PacketID != want.PacketID ||
		p.UserID != want.UserID ||
		!p.Timestamp.Equal(want.Timestamp) ||
		p.Metadata["Success"] != "true" ||
		!bytes.Equal(p.Payload, want.Payload) {
		t.Errorf("decoded packet diverged: %+v", p)
	}
}

func TestGoldenDeterminism(t *testing.T) {
	// Encoding the same packet twice yields identical bytes.
	a, err := wire.Encode(goldenPacket())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	b, err := wire.Encode(goldenPacket())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("encoding is not deterministic")
	}
}

func TestGoldenFramePrefix(t *testing.T) {
	var stream bytes.Buffer
	if err := wire.WriteFrame(&stream, goldenPacket()); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	// 0x43 = 67 bytes of body behind a little-endian length prefix.
	wantPrefix, _ := hex.DecodeString("43000000")
	if !bytes.Equal(stream.Bytes()[:4], wantPrefix) {
		t.Errorf("frame prefix = %x, want %x", stream.Bytes()[:4], wantPrefix)
	}
	if stream.Len() != 4+67 {
		t.Errorf("frame length = %d, want 71", stream.Len())
	}
}
