//go:build cgo

// Package jpegls wraps CharLS to implement the JPEG-LS Lossless and
// Near-Lossless transfer syntaxes.
package jpegls

/*
#cgo pkg-config: libcharls
#include <stdlib.h>
#include <charls/charls.h>
*/
import "C"

import (
	"unsafe"

	"github.com/kcenon/pacsgo/codec"
	"github.com/kcenon/pacsgo/dicomerr"
	"github.com/kcenon/pacsgo/transfersyntax"
)

func init() {
	codec.Register(transfersyntax.JPEGLSLossless, func() codec.Codec { return &Codec{nearLossless: 0} })
	codec.Register(transfersyntax.JPEGLSNearLossless, func() codec.Codec { return &Codec{nearLossless: 3} })
}

// Codec implements codec.Codec for JPEG-LS via CharLS. nearLossless is the
// default NEAR parameter used when Options doesn't request lossless
// explicitly; 0 means mathematically lossless.
type Codec struct {
	nearLossless int
}

func (c *Codec) TransferSyntaxUID() string {
	if c.nearLossless == 0 {
		return transfersyntax.JPEGLSLossless
	}
	return transfersyntax.JPEGLSNearLossless
}
func (c *Codec) Name() string  { return "JPEG-LS (CharLS)" }
func (c *Codec) IsLossy() bool { return c.nearLossless != 0 }

func (c *Codec) CanEncode(p codec.Params) bool {
	if codec.RejectsOversizedSamples(p) {
		return false
	}
	return (p.BitsAllocated == 8 || p.BitsAllocated == 16) && (p.SamplesPerPixel == 1 || p.SamplesPerPixel == 3)
}

func (c *Codec) CanDecode(p codec.Params) bool { return c.CanEncode(p) }

func (c *Codec) frameInfo(p codec.Params) C.charls_frame_info {
	return C.charls_frame_info{
		width:                    C.uint32_t(p.Columns),
		height:                   C.uint32_t(p.Rows),
		bits_per_sample:          C.int32_t(p.BitsStored),
		component_count:          C.int32_t(p.SamplesPerPixel),
	}
}

func (c *Codec) Encode(pixels []byte, p codec.Params, opts codec.Options) (codec.Result, error) {
	if !c.CanEncode(p) {
		return codec.Result{}, codec.NewCodecError(dicomerr.InvalidParameters, "jpegls: cannot encode params %+v", p)
	}
	near := c.nearLossless
	if opts.Lossless {
		near = 0
	}
	enc := C.charls_jpegls_encoder_create()
	if enc == nil {
		return codec.Result{}, codec.NewCodecError(dicomerr.EncodingFailed, "jpegls: failed to create encoder")
	}
	defer C.charls_jpegls_encoder_destroy(enc)

	fi := c.frameInfo(p)
	if C.charls_jpegls_encoder_set_frame_info(enc, &fi) != C.CHARLS_APIRESULT_OK {
		return codec.Result{}, codec.NewCodecError(dicomerr.EncodingFailed, "jpegls: set_frame_info failed")
	}
	if C.charls_jpegls_encoder_set_near_lossless(enc, C.int32_t(near)) != C.CHARLS_APIRESULT_OK {
		return codec.Result{}, codec.NewCodecError(dicomerr.EncodingFailed, "jpegls: set_near_lossless failed")
	}

	var bound C.size_t
	if C.charls_jpegls_encoder_get_estimated_destination_size(enc, &bound) != C.CHARLS_APIRESULT_OK {
		return codec.Result{}, codec.NewCodecError(dicomerr.EncodingFailed, "jpegls: size estimate failed")
	}
	out := C.malloc(bound)
	defer C.free(out)
	if C.charls_jpegls_encoder_set_destination_buffer(enc, out, bound) != C.CHARLS_APIRESULT_OK {
		return codec.Result{}, codec.NewCodecError(dicomerr.EncodingFailed, "jpegls: set_destination_buffer failed")
	}
	if C.charls_jpegls_encoder_encode_from_buffer(enc, unsafe.Pointer(&pixels[0]), C.size_t(len(pixels)), 0) != C.CHARLS_APIRESULT_OK {
		return codec.Result{}, codec.NewCodecError(dicomerr.EncodingFailed, "jpegls: encode failed")
	}
	var written C.size_t
	C.charls_jpegls_encoder_get_bytes_written(enc, &written)
	data := C.GoBytes(out, C.int(written))
	return codec.Result{Data: data, OutParams: p}, nil
}

func (c *Codec) Decode(data []byte, p codec.Params) (codec.Result, error) {
	if !c.CanDecode(p) {
		return codec.Result{}, codec.NewCodecError(dicomerr.InvalidParameters, "jpegls: cannot decode params %+v", p)
	}
	if len(data) == 0 {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "jpegls: empty input")
	}
	dec := C.charls_jpegls_decoder_create()
	if dec == nil {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "jpegls: failed to create decoder")
	}
	defer C.charls_jpegls_decoder_destroy(dec)

	if C.charls_jpegls_decoder_set_source_buffer(dec, unsafe.Pointer(&data[0]), C.size_t(len(data))) != C.CHARLS_APIRESULT_OK {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "jpegls: set_source_buffer failed")
	}
	if C.charls_jpegls_decoder_read_header(dec) != C.CHARLS_APIRESULT_OK {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "jpegls: read_header failed")
	}
	var fi C.charls_frame_info
	if C.charls_jpegls_decoder_get_frame_info(dec, &fi) != C.CHARLS_APIRESULT_OK {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "jpegls: get_frame_info failed")
	}
	if int(fi.width) != p.Columns || int(fi.height) != p.Rows || int(fi.component_count) != p.SamplesPerPixel {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed,
			"jpegls: decoded %dx%dx%d, expected %dx%dx%d", fi.width, fi.height, fi.component_count, p.Columns, p.Rows, p.SamplesPerPixel)
	}
	var destSize C.size_t
	if C.charls_jpegls_decoder_get_destination_size(dec, 0, &destSize) != C.CHARLS_APIRESULT_OK {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "jpegls: destination size query failed")
	}
	out := make([]byte, int(destSize))
	if C.charls_jpegls_decoder_decode_to_buffer(dec, unsafe.Pointer(&out[0]), destSize, 0) != C.CHARLS_APIRESULT_OK {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "jpegls: decode failed")
	}
	return codec.Result{Data: out, OutParams: p}, nil
}
