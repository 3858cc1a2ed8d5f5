//go:build cgo

package jpegbaseline_test

import (
	"testing"

	"github.com/kcenon/pacsgo/codec"
	"github.com/kcenon/pacsgo/transfersyntax"

	_ "github.com/kcenon/pacsgo/codec/jpegbaseline"
)

func TestRoundTripGrayscale(t *testing.T) {
	c, ok := codec.Create(transfersyntax.JPEGBaseline8Bit)
	if !ok {
		t.Fatal("JPEG Baseline codec not registered")
	}
	p := codec.Params{Columns: 16, Rows: 16, BitsAllocated: 8, BitsStored: 8, SamplesPerPixel: 1}
	pixels := make([]byte, p.Columns*p.Rows)
	for i := range pixels {
		pixels[i] = byte(i)
	}
	enc, err := c.Encode(pixels, p, codec.Options{Quality: 95})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dec, err := c.Decode(enc.Data, p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(dec.Data) != len(pixels) {
		t.Fatalf("decoded %d bytes, want %d", len(dec.Data), len(pixels))
	}
	// Baseline is lossy at typical quality: allow sizable per-sample drift
	// but the image shouldn't come back as pure noise or all zero.
	var nonZero int
	for _, b := range dec.Data {
		if b != 0 {
			nonZero++
		}
	}
	if nonZero == 0 {
		t.Errorf("decoded image is all zero")
	}
}

func TestCanEncodeRejects16Bit(t *testing.T) {
	c, _ := codec.Create(transfersyntax.JPEGBaseline8Bit)
	p := codec.Params{BitsAllocated: 16, SamplesPerPixel: 1}
	if c.CanEncode(p) {
		t.Errorf("CanEncode should reject 16-bit samples")
	}
}

func TestCanEncodeAcceptsRGB(t *testing.T) {
	c, _ := codec.Create(transfersyntax.JPEGBaseline8Bit)
	p := codec.Params{BitsAllocated: 8, SamplesPerPixel: 3}
	if !c.CanEncode(p) {
		t.Errorf("CanEncode should accept 8-bit RGB")
	}
}

func TestCanEncodeRejects4Components(t *testing.T) {
	c, _ := codec.Create(transfersyntax.JPEGBaseline8Bit)
	p := codec.Params{BitsAllocated: 8, SamplesPerPixel: 4}
	if c.CanEncode(p) {
		t.Errorf("CanEncode should reject 4 samples per pixel")
	}
}
