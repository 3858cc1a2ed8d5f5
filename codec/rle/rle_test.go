package rle_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/kcenon/pacsgo/codec"
	"github.com/kcenon/pacsgo/transfersyntax"

	_ "github.com/kcenon/pacsgo/codec/rle"
)

func roundTrip(t *testing.T, pixels []byte, p codec.Params) {
	t.Helper()
	c, ok := codec.Create(transfersyntax.RLELossless)
	if !ok {
		t.Fatal("RLE Lossless codec not registered")
	}
	if !c.CanEncode(p) {
		t.Fatalf("CanEncode(%+v) = false", p)
	}
	enc, err := c.Encode(pixels, p, codec.Options{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dec, err := c.Decode(enc.Data, p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(dec.Data, pixels) {
		t.Errorf("round trip mismatch: got %v, want %v", dec.Data, pixels)
	}
}

func TestRoundTripGrayscale8Bit(t *testing.T) {
	p := codec.Params{Columns: 4, Rows: 4, BitsAllocated: 8, SamplesPerPixel: 1}
	pixels := []byte{
		1, 1, 1, 1,
		2, 2, 3, 4,
		5, 5, 5, 5,
		9, 8, 7, 6,
	}
	roundTrip(t, pixels, p)
}

func TestRoundTripRGB8Bit(t *testing.T) {
	p := codec.Params{Columns: 2, Rows: 2, BitsAllocated: 8, SamplesPerPixel: 3}
	pixels := make([]byte, 2*2*3)
	r := rand.New(rand.NewSource(1))
	r.Read(pixels)
	roundTrip(t, pixels, p)
}

func TestRoundTripGrayscale16Bit(t *testing.T) {
	p := codec.Params{Columns: 3, Rows: 3, BitsAllocated: 16, SamplesPerPixel: 1}
	pixels := []byte{
		0x00, 0x01, 0x00, 0x01, 0x00, 0x01,
		0xff, 0xff, 0x34, 0x12, 0x00, 0x00,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06,
	}
	roundTrip(t, pixels, p)
}

func TestCanEncodeRejectsOversized(t *testing.T) {
	c, _ := codec.Create(transfersyntax.RLELossless)
	if c.CanEncode(codec.Params{BitsAllocated: 32, SamplesPerPixel: 1}) {
		t.Errorf("CanEncode should reject 32-bit samples")
	}
	if c.CanEncode(codec.Params{BitsAllocated: 16, SamplesPerPixel: 8}) {
		t.Errorf("CanEncode should reject >15 segments")
	}
}

func TestDecodeRejectsTruncatedFrame(t *testing.T) {
	c, _ := codec.Create(transfersyntax.RLELossless)
	p := codec.Params{Columns: 4, Rows: 4, BitsAllocated: 8, SamplesPerPixel: 1}
	if _, err := c.Decode([]byte{1, 2, 3}, p); err == nil {
		t.Errorf("Decode of a too-short frame should fail")
	}
}

func TestDecodeRejectsSegmentCountMismatch(t *testing.T) {
	c, _ := codec.Create(transfersyntax.RLELossless)
	p := codec.Params{Columns: 4, Rows: 4, BitsAllocated: 8, SamplesPerPixel: 1}
	enc, err := c.Encode(make([]byte, 16), p, codec.Options{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	wrongParams := codec.Params{Columns: 4, Rows: 4, BitsAllocated: 8, SamplesPerPixel: 3}
	if _, err := c.Decode(enc.Data, wrongParams); err == nil {
		t.Errorf("Decode with mismatched segment count should fail")
	}
}
