package jpeglossless

import "fmt"

// huffmanTable is a canonical Huffman code for the 0..17 DC "category"
// alphabet, built with the same two-smallest-frequencies merge used by
// baseline JPEG's Huffman table optimizer (ITU-T T.81 Annex K.2), without
// that annex's 16-bit code-length reflow: the category alphabet is small
// enough in practice that this rarely matters. A category whose merged
// code length would exceed 16 bits is left out of the table (it gets no
// code), and Encode fails with EncodingFailed when a pixel falls in such
// a category; codes are never longer than 16 bits.
type huffmanTable struct {
	// bitsCounts[i] = number of codes of length i+1, for i in 0..15.
	bitsCounts [16]byte
	// symbols lists category values in the order codes were assigned:
	// all length-1 codes first, then length-2, etc.
	symbols []byte

	codeOf   map[int]uint32 // category -> code
	lengthOf map[int]int    // category -> bit length
}

func (t *huffmanTable) lookup(cat int) (code uint32, length int, ok bool) {
	length, ok = t.lengthOf[cat]
	if !ok {
		return 0, 0, false
	}
	return t.codeOf[cat], length, true
}

// decodeSymbol reads one Huffman-coded category from br by walking bit by
// bit through the canonical code space.
func (t *huffmanTable) decodeSymbol(br *bitReader) (int, error) {
	code := uint32(0)
	length := 0
	for length < 16 {
		code = (code << 1) | br.readBits(1)
		length++
		if cat, ok := t.codeForLength(code, length); ok {
			return cat, nil
		}
	}
	return 0, fmt.Errorf("no huffman code matched within 16 bits")
}

// codeForLength reports the category assigned to (code, length) if any,
// using the precomputed codeOf/lengthOf maps.
func (t *huffmanTable) codeForLength(code uint32, length int) (int, bool) {
	for cat, l := range t.lengthOf {
		if l == length && t.codeOf[cat] == code {
			return cat, true
		}
	}
	return 0, false
}

func buildHuffmanTable(freq map[int]int) *huffmanTable {
	// Ensure every category that can occur (0..17 for up to 16-bit samples
	// plus modulo wraparound) has a nonzero frequency floor so it receives
	// a code, and add one guaranteed-unused sentinel so no real code ends
	// up all-ones (mirrors T.81 Annex K.2's freq[256] = 1 trick).
	const sentinel = 18
	f := make(map[int]int, len(freq)+1)
	for cat, n := range freq {
		f[cat] = n
	}
	if len(f) == 0 {
		f[0] = 1
	}
	f[sentinel] = 1

	codesize := map[int]int{}
	others := map[int]int{}
	work := make(map[int]int, len(f))
	for k, v := range f {
		work[k] = v
	}
	for {
		c1, v1, found1 := 0, int(^uint(0)>>1), false
		for k, v := range work {
			if v > 0 && (!found1 || v < v1 || (v == v1 && k < c1)) {
				c1, v1, found1 = k, v, true
			}
		}
		c2, v2, found2 := 0, int(^uint(0)>>1), false
		for k, v := range work {
			if k == c1 {
				continue
			}
			if v > 0 && (!found2 || v < v2 || (v == v2 && k < c2)) {
				c2, v2, found2 = k, v, true
			}
		}
		if !found2 {
			break
		}
		work[c1] += work[c2]
		work[c2] = 0
		for {
			codesize[c1]++
			if nxt, ok := others[c1]; ok {
				c1 = nxt
			} else {
				break
			}
		}
		others[c1] = c2
		for {
			codesize[c2]++
			if nxt, ok := others[c2]; ok {
				c2 = nxt
			} else {
				break
			}
		}
	}

	var bitsCounts [16]byte
	for cat, size := range codesize {
		if cat == sentinel {
			continue
		}
		if size == 0 || size > 16 {
			continue
		}
		bitsCounts[size-1]++
	}

	// Order symbols by (length, category) for canonical code assignment.
	maxLen := 0
	for l := range bitsCounts {
		if bitsCounts[l] > 0 {
			maxLen = l + 1
		}
	}
	symbols := make([]byte, 0, len(codesize))
	for length := 1; length <= maxLen; length++ {
		cats := make([]int, 0)
		for cat, size := range codesize {
			if cat != sentinel && size == length {
				cats = append(cats, cat)
			}
		}
		// simple insertion sort, alphabets here are tiny
		for i := 1; i < len(cats); i++ {
			for j := i; j > 0 && cats[j-1] > cats[j]; j-- {
				cats[j-1], cats[j] = cats[j], cats[j-1]
			}
		}
		for _, cat := range cats {
			symbols = append(symbols, byte(cat))
		}
	}

	t := tableFromBitsAndSymbols(bitsCounts, symbols)
	return t
}

// tableFromBitsAndSymbols rebuilds code/length maps from a canonical
// BITS/HUFFVAL pair, the same construction used to decode a DHT segment.
func tableFromBitsAndSymbols(bitsCounts [16]byte, symbols []byte) *huffmanTable {
	codeOf := map[int]uint32{}
	lengthOf := map[int]int{}
	code := uint32(0)
	idx := 0
	for length := 1; length <= 16; length++ {
		count := int(bitsCounts[length-1])
		for i := 0; i < count; i++ {
			if idx >= len(symbols) {
				break
			}
			sym := int(symbols[idx])
			codeOf[sym] = code
			lengthOf[sym] = length
			code++
			idx++
		}
		code <<= 1
	}
	return &huffmanTable{
		bitsCounts: bitsCounts,
		symbols:    symbols,
		codeOf:     codeOf,
		lengthOf:   lengthOf,
	}
}
