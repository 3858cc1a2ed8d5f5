// Package rle implements the DICOM RLE Lossless codec (transfer syntax
// 1.2.840.10008.1.2.5, DICOM PS3.5 Annex G): a PackBits byte-packer run
// per color/byte-plane "segment", framed by a fixed 64-byte header.
package rle

import (
	"encoding/binary"
	"fmt"

	"github.com/kcenon/pacsgo/codec"
	"github.com/kcenon/pacsgo/dicomerr"
	"github.com/kcenon/pacsgo/transfersyntax"
)

func init() {
	codec.Register(transfersyntax.RLELossless, func() codec.Codec { return &Codec{} })
}

// Codec implements codec.Codec for RLE Lossless.
type Codec struct{}

func (c *Codec) TransferSyntaxUID() string { return transfersyntax.RLELossless }
func (c *Codec) Name() string              { return "RLE Lossless" }
func (c *Codec) IsLossy() bool             { return false }

func segmentCount(p codec.Params) int {
	bytesPerSample := (p.BitsAllocated + 7) / 8
	return p.SamplesPerPixel * bytesPerSample
}

func (c *Codec) CanEncode(p codec.Params) bool {
	if codec.RejectsOversizedSamples(p) {
		return false
	}
	n := segmentCount(p)
	return n >= 1 && n <= 15 && (p.BitsAllocated == 8 || p.BitsAllocated == 16)
}

func (c *Codec) CanDecode(p codec.Params) bool { return c.CanEncode(p) }

// planarize splits an interleaved little-endian pixel buffer into its RLE
// byte-plane segments, one per byte of each sample (the high byte first
// when BitsAllocated==16).
func planarize(pixels []byte, p codec.Params) [][]byte {
	bytesPerSample := (p.BitsAllocated + 7) / 8
	pixelCount := p.Columns * p.Rows
	segments := make([][]byte, segmentCount(p))
	for i := range segments {
		segments[i] = make([]byte, pixelCount)
	}
	stride := p.SamplesPerPixel * bytesPerSample
	for px := 0; px < pixelCount; px++ {
		base := px * stride
		for s := 0; s < p.SamplesPerPixel; s++ {
			sampleOff := base + s*bytesPerSample
			if bytesPerSample == 1 {
				segments[s][px] = pixels[sampleOff]
			} else {
				// 16-bit little-endian sample: segment 2*s = high byte, 2*s+1 = low byte.
				segments[2*s][px] = pixels[sampleOff+1]
				segments[2*s+1][px] = pixels[sampleOff]
			}
		}
	}
	return segments
}

func unplanarize(segments [][]byte, p codec.Params) []byte {
	bytesPerSample := (p.BitsAllocated + 7) / 8
	pixelCount := p.Columns * p.Rows
	stride := p.SamplesPerPixel * bytesPerSample
	out := make([]byte, pixelCount*stride)
	for px := 0; px < pixelCount; px++ {
		base := px * stride
		for s := 0; s < p.SamplesPerPixel; s++ {
			sampleOff := base + s*bytesPerSample
			if bytesPerSample == 1 {
				out[sampleOff] = segments[s][px]
			} else {
				out[sampleOff+1] = segments[2*s][px]
				out[sampleOff] = segments[2*s+1][px]
			}
		}
	}
	return out
}

// packBits encodes src with the PackBits variant used by DICOM RLE: runs
// of >= 3 identical bytes become a replicate packet, everything else goes
// into literal packets of at most 128 bytes.
func packBits(src []byte) []byte {
	var out []byte
	i := 0
	for i < len(src) {
		runLen := 1
		for i+runLen < len(src) && src[i+runLen] == src[i] && runLen < 128 {
			runLen++
		}
		if runLen >= 3 {
			out = append(out, byte(int8(1-runLen)), src[i])
			i += runLen
			continue
		}
		// Accumulate a literal packet, stopping when a run of >= 3 begins
		// or we hit the 128-byte cap.
		litStart := i
		i++
		for i < len(src) && i-litStart < 128 {
			// Peek ahead: does a >=3 run start here?
			peekLen := 1
			for i+peekLen < len(src) && src[i+peekLen] == src[i] && peekLen < 128 {
				peekLen++
			}
			if peekLen >= 3 {
				break
			}
			i++
		}
		lit := src[litStart:i]
		out = append(out, byte(len(lit)-1))
		out = append(out, lit...)
	}
	return out
}

// unpackBits inverts packBits, stopping once outLen bytes have been
// produced (a segment's packet stream may have trailing pad that isn't
// itself RLE-encoded).
func unpackBits(src []byte, outLen int) ([]byte, error) {
	out := make([]byte, 0, outLen)
	i := 0
	for len(out) < outLen {
		if i >= len(src) {
			return nil, fmt.Errorf("rle: truncated segment, got %d of %d bytes", len(out), outLen)
		}
		n := int8(src[i])
		i++
		switch {
		case n >= 0:
			count := int(n) + 1
			if i+count > len(src) {
				return nil, fmt.Errorf("rle: literal packet overruns segment")
			}
			out = append(out, src[i:i+count]...)
			i += count
		case n != -128:
			count := 1 - int(n)
			if i >= len(src) {
				return nil, fmt.Errorf("rle: replicate packet missing value byte")
			}
			v := src[i]
			i++
			for k := 0; k < count; k++ {
				out = append(out, v)
			}
		default:
			// -128: no-op.
		}
	}
	return out[:outLen], nil
}

const headerSize = 64

func (c *Codec) Encode(pixels []byte, p codec.Params, _ codec.Options) (codec.Result, error) {
	if !c.CanEncode(p) {
		return codec.Result{}, codec.NewCodecError(dicomerr.InvalidParameters, "rle: cannot encode params %+v", p)
	}
	segments := planarize(pixels, p)
	encoded := make([][]byte, len(segments))
	for i, seg := range segments {
		e := packBits(seg)
		if len(e)%2 != 0 {
			e = append(e, 0)
		}
		encoded[i] = e
	}
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(encoded)))
	offset := uint32(headerSize)
	var body []byte
	for i, e := range encoded {
		binary.LittleEndian.PutUint32(header[4+4*i:8+4*i], offset)
		body = append(body, e...)
		offset += uint32(len(e))
	}
	return codec.Result{Data: append(header, body...), OutParams: p}, nil
}

func (c *Codec) Decode(data []byte, p codec.Params) (codec.Result, error) {
	if !c.CanDecode(p) {
		return codec.Result{}, codec.NewCodecError(dicomerr.InvalidParameters, "rle: cannot decode params %+v", p)
	}
	if len(data) < headerSize {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "rle: frame shorter than header")
	}
	numSegments := int(binary.LittleEndian.Uint32(data[0:4]))
	if numSegments <= 0 || numSegments > 15 {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "rle: invalid segment count %d", numSegments)
	}
	if numSegments != segmentCount(p) {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed,
			"rle: segment count %d does not match params (want %d)", numSegments, segmentCount(p))
	}
	offsets := make([]uint32, numSegments)
	for i := 0; i < numSegments; i++ {
		offsets[i] = binary.LittleEndian.Uint32(data[4+4*i : 8+4*i])
	}
	pixelCount := p.Columns * p.Rows
	segments := make([][]byte, numSegments)
	for i := 0; i < numSegments; i++ {
		start := int(offsets[i])
		if start < headerSize || start > len(data) {
			return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "rle: segment %d offset %d out of range", i, start)
		}
		end := len(data)
		if i+1 < numSegments {
			end = int(offsets[i+1])
		}
		if end > len(data) || end < start {
			return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "rle: segment %d has invalid bounds", i)
		}
		seg, err := unpackBits(data[start:end], pixelCount)
		if err != nil {
			return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "rle: segment %d: %v", i, err)
		}
		segments[i] = seg
	}
	return codec.Result{Data: unplanarize(segments, p), OutParams: p}, nil
}
