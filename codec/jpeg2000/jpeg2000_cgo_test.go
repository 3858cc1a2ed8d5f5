//go:build cgo

package jpeg2000_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/kcenon/pacsgo/codec"
	"github.com/kcenon/pacsgo/transfersyntax"

	_ "github.com/kcenon/pacsgo/codec/jpeg2000"
)

func TestLosslessRoundTripGrayscale8Bit(t *testing.T) {
	c, ok := codec.Create(transfersyntax.JPEG2000Lossless)
	if !ok {
		t.Fatal("JPEG2000Lossless codec not registered")
	}
	p := codec.Params{Columns: 16, Rows: 16, BitsAllocated: 8, BitsStored: 8, SamplesPerPixel: 1}
	pixels := make([]byte, p.Columns*p.Rows)
	rnd := rand.New(rand.NewSource(1))
	rnd.Read(pixels)

	if !c.CanEncode(p) {
		t.Fatal("CanEncode() = false for a supported lossless grayscale frame")
	}
	encoded, err := c.Encode(pixels, p, codec.Options{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := c.Decode(encoded.Data, p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded.Data, pixels) {
		t.Errorf("decode(encode(x)) != x for JPEG 2000 lossless")
	}
}

func TestLossyVariantCannotEncode(t *testing.T) {
	c, ok := codec.Create(transfersyntax.JPEG2000)
	if !ok {
		t.Fatal("JPEG2000 codec not registered")
	}
	p := codec.Params{Columns: 8, Rows: 8, BitsAllocated: 8, SamplesPerPixel: 1}
	if c.CanEncode(p) {
		t.Errorf("CanEncode() = true, want false: the lossy J2K variant is decode-only")
	}
	if _, err := c.Encode(make([]byte, 64), p, codec.Options{}); err == nil {
		t.Errorf("Encode succeeded, want an error")
	}
}

func TestLosslessVsLossyVariants(t *testing.T) {
	lossless, ok := codec.Create(transfersyntax.JPEG2000Lossless)
	if !ok {
		t.Fatal("JPEG2000Lossless codec not registered")
	}
	if lossless.IsLossy() {
		t.Errorf("JPEG2000Lossless codec reports IsLossy() = true")
	}
	lossy, ok := codec.Create(transfersyntax.JPEG2000)
	if !ok {
		t.Fatal("JPEG2000 codec not registered")
	}
	if !lossy.IsLossy() {
		t.Errorf("JPEG2000 codec reports IsLossy() = false")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	c, _ := codec.Create(transfersyntax.JPEG2000Lossless)
	p := codec.Params{Columns: 8, Rows: 8, BitsAllocated: 8, SamplesPerPixel: 1}
	if _, err := c.Decode([]byte("not a jpeg2000 stream"), p); err == nil {
		t.Errorf("Decode of garbage input succeeded, want an error")
	}
}
