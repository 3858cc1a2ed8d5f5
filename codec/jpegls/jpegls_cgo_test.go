//go:build cgo

package jpegls_test

import (
	"bytes"
	"testing"

	"github.com/kcenon/pacsgo/codec"
	"github.com/kcenon/pacsgo/transfersyntax"

	_ "github.com/kcenon/pacsgo/codec/jpegls"
)

func TestRoundTripLossless(t *testing.T) {
	c, ok := codec.Create(transfersyntax.JPEGLSLossless)
	if !ok {
		t.Fatal("JPEG-LS Lossless codec not registered")
	}
	if c.IsLossy() {
		t.Errorf("JPEGLSLossless codec reports IsLossy() = true")
	}
	p := codec.Params{Columns: 16, Rows: 16, BitsAllocated: 8, BitsStored: 8, SamplesPerPixel: 1}
	pixels := make([]byte, p.Columns*p.Rows)
	for i := range pixels {
		pixels[i] = byte(i * 3)
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
		t.Errorf("lossless round trip mismatch")
	}
}

func TestNearLosslessIsLossy(t *testing.T) {
	c, ok := codec.Create(transfersyntax.JPEGLSNearLossless)
	if !ok {
		t.Fatal("JPEG-LS Near-Lossless codec not registered")
	}
	if !c.IsLossy() {
		t.Errorf("JPEGLSNearLossless codec reports IsLossy() = false")
	}
}

func TestCanEncodeRejectsOversized(t *testing.T) {
	c, _ := codec.Create(transfersyntax.JPEGLSLossless)
	if c.CanEncode(codec.Params{BitsAllocated: 32, SamplesPerPixel: 1}) {
		t.Errorf("CanEncode should reject 32-bit samples")
	}
}
