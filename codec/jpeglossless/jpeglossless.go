// Package jpeglossless implements a from-scratch JPEG Lossless (SOF3,
// Process 14) codec for a single grayscale component: predictor ->
// modulo-difference -> category+value Huffman coding, framed as a
// standard JPEG marker stream (SOI, SOF3, DHT, SOS, entropy-coded
// segment, EOI) with 0xFF byte stuffing in the entropy segment.
package jpeglossless

import (
	"encoding/binary"
	"fmt"

	"github.com/kcenon/pacsgo/codec"
	"github.com/kcenon/pacsgo/dicomerr"
	"github.com/kcenon/pacsgo/transfersyntax"
)

func init() {
	codec.Register(transfersyntax.JPEGLossless, func() codec.Codec { return &Codec{} })
	codec.Register(transfersyntax.JPEGLosslessSV1, func() codec.Codec { return &Codec{} })
}

const (
	markerSOI = 0xD8
	markerEOI = 0xD9
	markerSOF3 = 0xC3
	markerDHT = 0xC4
	markerSOS = 0xDA

	defaultPredictor = 7 // (Ra+Rb)/2: a reasonable general-purpose default.
)

// Codec implements codec.Codec for JPEG Lossless, single-component only.
type Codec struct{}

func (c *Codec) TransferSyntaxUID() string { return transfersyntax.JPEGLosslessSV1 }
func (c *Codec) Name() string              { return "JPEG Lossless" }
func (c *Codec) IsLossy() bool             { return false }

func (c *Codec) CanEncode(p codec.Params) bool {
	if codec.RejectsOversizedSamples(p) {
		return false
	}
	return p.SamplesPerPixel == 1 && (p.BitsAllocated == 8 || p.BitsAllocated == 16)
}

func (c *Codec) CanDecode(p codec.Params) bool { return c.CanEncode(p) }

func predict(selector, Ra, Rb, Rc int) int {
	switch selector {
	case 1:
		return Ra
	case 2:
		return Rb
	case 3:
		return Rc
	case 4:
		return Ra + Rb - Rc
	case 5:
		return Ra + (Rb-Rc)/2
	case 6:
		return Rb + (Ra-Rc)/2
	case 7:
		return (Ra + Rb) / 2
	default:
		return Ra
	}
}

func readSamples(pixels []byte, p codec.Params) []int {
	n := p.Columns * p.Rows
	out := make([]int, n)
	if p.BitsAllocated == 8 {
		for i := 0; i < n; i++ {
			out[i] = int(pixels[i])
		}
	} else {
		for i := 0; i < n; i++ {
			out[i] = int(binary.LittleEndian.Uint16(pixels[2*i:]))
		}
	}
	return out
}

func writeSamples(samples []int, p codec.Params) []byte {
	n := len(samples)
	bytesPerSample := (p.BitsAllocated + 7) / 8
	out := make([]byte, n*bytesPerSample)
	max := (1 << p.BitsStored) - 1
	for i, v := range samples {
		if v < 0 {
			v = 0
		}
		if v > max {
			v = max
		}
		if p.BitsAllocated == 8 {
			out[i] = byte(v)
		} else {
			binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
		}
	}
	return out
}

func category(v int) int {
	if v < 0 {
		v = -v
	}
	n := 0
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

// valueBits returns the "category" extra bits that encode diff, using the
// same amplitude convention as baseline JPEG DC/AC coefficient coding:
// non-negative values encode their own bits; negative values encode
// (value + 2^category - 1).
func valueBits(diff, cat int) uint32 {
	if cat == 0 {
		return 0
	}
	if diff >= 0 {
		return uint32(diff)
	}
	return uint32(diff + (1 << uint(cat)) - 1)
}

func decodeValue(bits uint32, cat int) int {
	if cat == 0 {
		return 0
	}
	half := 1 << uint(cat-1)
	v := int(bits)
	if v < half {
		return v - (1 << uint(cat)) + 1
	}
	return v
}

func (c *Codec) Encode(pixels []byte, p codec.Params, _ codec.Options) (codec.Result, error) {
	if !c.CanEncode(p) {
		return codec.Result{}, codec.NewCodecError(dicomerr.InvalidParameters, "jpeglossless: cannot encode params %+v", p)
	}
	samples := readSamples(pixels, p)
	precision := p.BitsStored
	selector := defaultPredictor

	diffs := make([]int, len(samples))
	freq := make(map[int]int)
	at := func(row, col int) int { return samples[row*p.Columns+col] }
	for row := 0; row < p.Rows; row++ {
		for col := 0; col < p.Columns; col++ {
			var pred int
			switch {
			case row == 0 && col == 0:
				pred = 1 << uint(precision-1)
			case row == 0:
				pred = at(row, col-1) // predictor 1
			case col == 0:
				pred = at(row-1, col) // predictor 2
			default:
				pred = predict(selector, at(row, col-1), at(row-1, col), at(row-1, col-1))
			}
			d := modReduce(at(row, col)-pred, precision)
			diffs[row*p.Columns+col] = d
			freq[category(d)]++
		}
	}

	table := buildHuffmanTable(freq)
	w := newBitWriter()
	for _, d := range diffs {
		cat := category(d)
		code, length, ok := table.lookup(cat)
		if !ok {
			return codec.Result{}, codec.NewCodecError(dicomerr.EncodingFailed, "jpeglossless: no huffman code for category %d", cat)
		}
		w.writeBits(code, length)
		if cat > 0 {
			w.writeBits(valueBits(d, cat), cat)
		}
	}
	entropy := w.finish()

	out := []byte{0xFF, markerSOI}
	out = append(out, sof3Segment(precision, p.Rows, p.Columns)...)
	out = append(out, dhtSegment(table)...)
	out = append(out, sosSegment(selector)...)
	out = append(out, entropy...)
	out = append(out, 0xFF, markerEOI)
	return codec.Result{Data: out, OutParams: p}, nil
}

func modReduce(d, precision int) int {
	m := 1 << uint(precision)
	half := m / 2
	d = ((d % m) + m) % m
	if d >= half {
		d -= m
	}
	return d
}

func (c *Codec) Decode(data []byte, p codec.Params) (codec.Result, error) {
	if !c.CanDecode(p) {
		return codec.Result{}, codec.NewCodecError(dicomerr.InvalidParameters, "jpeglossless: cannot decode params %+v", p)
	}
	r := &markerReader{data: data}
	if err := r.expectMarker(markerSOI); err != nil {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "%v", err)
	}
	precision, rows, cols, err := r.readSOF3()
	if err != nil {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "%v", err)
	}
	table, err := r.readDHT()
	if err != nil {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "%v", err)
	}
	selector, err := r.readSOS()
	if err != nil {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "%v", err)
	}
	if rows != p.Rows || cols != p.Columns {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed,
			"jpeglossless: frame is %dx%d, params want %dx%d", cols, rows, p.Columns, p.Rows)
	}

	br := newBitReader(data[r.pos:])
	samples := make([]int, rows*cols)
	at := func(row, col int) int { return samples[row*cols+col] }
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			cat, err := table.decodeSymbol(br)
			if err != nil {
				return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "jpeglossless: %v", err)
			}
			var bits uint32
			if cat > 0 {
				bits = br.readBits(cat)
			}
			diff := decodeValue(bits, cat)
			var pred int
			switch {
			case row == 0 && col == 0:
				pred = 1 << uint(precision-1)
			case row == 0:
				pred = at(row, col-1)
			case col == 0:
				pred = at(row-1, col)
			default:
				pred = predict(selector, at(row, col-1), at(row-1, col), at(row-1, col-1))
			}
			samples[row*cols+col] = modReduce(pred+diff, precision)
			if samples[row*cols+col] < 0 {
				samples[row*cols+col] += 1 << uint(precision)
			}
		}
	}
	return codec.Result{Data: writeSamples(samples, p), OutParams: p}, nil
}

func sof3Segment(precision, rows, cols int) []byte {
	// SOI already written; SOF3 = FF C3 len(2) P(1) H(2) W(2) Nf(1) [Ci Hi/Vi Tqi]*Nf
	payload := []byte{
		byte(precision),
		byte(rows >> 8), byte(rows),
		byte(cols >> 8), byte(cols),
		1,    // Nf = 1 component
		1,    // component id
		0x11, // sampling factors
		0,    // quantization table (unused for lossless)
	}
	length := len(payload) + 2
	seg := []byte{0xFF, markerSOF3, byte(length >> 8), byte(length)}
	return append(seg, payload...)
}

func dhtSegment(t *huffmanTable) []byte {
	payload := []byte{0x00} // Tc/Th: DC table 0
	payload = append(payload, t.bitsCounts[:]...)
	payload = append(payload, t.symbols...)
	length := len(payload) + 2
	seg := []byte{0xFF, markerDHT, byte(length >> 8), byte(length)}
	return append(seg, payload...)
}

func sosSegment(selector int) []byte {
	payload := []byte{
		1,             // Ns = 1 component
		1, 0x00,       // Csj=1, Tdj/Taj (DC table 0)
		byte(selector), // Ss = predictor selector
		0,              // Se
		0,              // Ah/Al: point transform Pt = 0
	}
	length := len(payload) + 2
	seg := []byte{0xFF, markerSOS, byte(length >> 8), byte(length)}
	return append(seg, payload...)
}

type markerReader struct {
	data []byte
	pos  int
}

func (r *markerReader) expectMarker(marker byte) error {
	if r.pos+2 > len(r.data) || r.data[r.pos] != 0xFF || r.data[r.pos+1] != marker {
		return fmt.Errorf("expected marker 0xFF%02X at offset %d", marker, r.pos)
	}
	r.pos += 2
	return nil
}

func (r *markerReader) readSegment(marker byte) ([]byte, error) {
	if err := r.expectMarker(marker); err != nil {
		return nil, err
	}
	if r.pos+2 > len(r.data) {
		return nil, fmt.Errorf("truncated segment length")
	}
	length := int(binary.BigEndian.Uint16(r.data[r.pos:]))
	if r.pos+length > len(r.data) {
		return nil, fmt.Errorf("segment length overruns buffer")
	}
	payload := r.data[r.pos+2 : r.pos+length]
	r.pos += length
	return payload, nil
}

func (r *markerReader) readSOF3() (precision, rows, cols int, err error) {
	payload, err := r.readSegment(markerSOF3)
	if err != nil {
		return 0, 0, 0, err
	}
	if len(payload) < 6 {
		return 0, 0, 0, fmt.Errorf("SOF3 segment too short")
	}
	precision = int(payload[0])
	rows = int(binary.BigEndian.Uint16(payload[1:3]))
	cols = int(binary.BigEndian.Uint16(payload[3:5]))
	return precision, rows, cols, nil
}

func (r *markerReader) readDHT() (*huffmanTable, error) {
	payload, err := r.readSegment(markerDHT)
	if err != nil {
		return nil, err
	}
	if len(payload) < 17 {
		return nil, fmt.Errorf("DHT segment too short")
	}
	var bits [16]byte
	copy(bits[:], payload[1:17])
	symbols := payload[17:]
	return tableFromBitsAndSymbols(bits, symbols), nil
}

func (r *markerReader) readSOS() (selector int, err error) {
	payload, err := r.readSegment(markerSOS)
	if err != nil {
		return 0, err
	}
	if len(payload) < 6 {
		return 0, fmt.Errorf("SOS segment too short")
	}
	return int(payload[3]), nil
}
