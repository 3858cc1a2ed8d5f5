package jpeglossless_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/kcenon/pacsgo/codec"
	"github.com/kcenon/pacsgo/transfersyntax"

	_ "github.com/kcenon/pacsgo/codec/jpeglossless"
)

func roundTrip(t *testing.T, pixels []byte, p codec.Params) {
	t.Helper()
	c, ok := codec.Create(transfersyntax.JPEGLosslessSV1)
	if !ok {
		t.Fatal("JPEG Lossless codec not registered")
	}
	if !c.CanEncode(p) {
		t.Fatalf("CanEncode(%+v) = false", p)
	}
	enc, err := c.Encode(pixels, p, codec.Options{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if enc.Data[0] != 0xFF || enc.Data[1] != 0xD8 {
		t.Fatalf("encoded stream does not start with SOI marker: %x", enc.Data[:2])
	}
	dec, err := c.Decode(enc.Data, p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(dec.Data, pixels) {
		t.Errorf("round trip mismatch:\n got  %v\n want %v", dec.Data, pixels)
	}
}

func TestRoundTrip8BitGradient(t *testing.T) {
	p := codec.Params{Columns: 16, Rows: 16, BitsAllocated: 8, BitsStored: 8, SamplesPerPixel: 1}
	pixels := make([]byte, p.Columns*p.Rows)
	for i := range pixels {
		pixels[i] = byte(i * 7 % 256)
	}
	roundTrip(t, pixels, p)
}

func TestRoundTrip8BitFlat(t *testing.T) {
	p := codec.Params{Columns: 8, Rows: 8, BitsAllocated: 8, BitsStored: 8, SamplesPerPixel: 1}
	pixels := make([]byte, p.Columns*p.Rows)
	for i := range pixels {
		pixels[i] = 42
	}
	roundTrip(t, pixels, p)
}

func TestRoundTrip16BitRandom(t *testing.T) {
	p := codec.Params{Columns: 12, Rows: 10, BitsAllocated: 16, BitsStored: 12, SamplesPerPixel: 1}
	n := p.Columns * p.Rows
	pixels := make([]byte, n*2)
	r := rand.New(rand.NewSource(42))
	max := uint16(1<<uint(p.BitsStored)) - 1
	for i := 0; i < n; i++ {
		v := uint16(r.Intn(int(max) + 1))
		pixels[2*i] = byte(v)
		pixels[2*i+1] = byte(v >> 8)
	}
	roundTrip(t, pixels, p)
}

func TestCanEncodeRejectsMultiComponent(t *testing.T) {
	c, _ := codec.Create(transfersyntax.JPEGLosslessSV1)
	p := codec.Params{BitsAllocated: 8, SamplesPerPixel: 3}
	if c.CanEncode(p) {
		t.Errorf("CanEncode should reject SamplesPerPixel != 1")
	}
}

func TestDecodeRejectsWrongDimensions(t *testing.T) {
	c, _ := codec.Create(transfersyntax.JPEGLosslessSV1)
	p := codec.Params{Columns: 4, Rows: 4, BitsAllocated: 8, BitsStored: 8, SamplesPerPixel: 1}
	pixels := make([]byte, 16)
	enc, err := c.Encode(pixels, p, codec.Options{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	wrong := p
	wrong.Columns = 8
	if _, err := c.Decode(enc.Data, wrong); err == nil {
		t.Errorf("Decode with mismatched dimensions should fail")
	}
}
