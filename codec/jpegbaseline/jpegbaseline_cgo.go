//go:build cgo

// Package jpegbaseline wraps libjpeg-turbo to implement the JPEG Baseline
// (Process 1) transfer syntax: 8-bit-per-sample, lossy, grayscale or RGB.
package jpegbaseline

/*
#cgo pkg-config: libjpeg
#include <stdio.h>
#include <stdlib.h>
#include <string.h>
#include <jpeglib.h>
#include <setjmp.h>

struct baseline_error_mgr {
	struct jpeg_error_mgr pub;
	jmp_buf setjmp_buffer;
	char message[JMSG_LENGTH_MAX];
};
typedef struct baseline_error_mgr *baseline_error_ptr;

static void baseline_error_exit(j_common_ptr cinfo) {
	baseline_error_ptr myerr = (baseline_error_ptr)cinfo->err;
	(*cinfo->err->format_message)(cinfo, myerr->message);
	longjmp(myerr->setjmp_buffer, 1);
}

static int jpeg_baseline_decode(unsigned char *in, unsigned long inLen,
	unsigned char *out, unsigned long outLen,
	int *width, int *height, int *components,
	char *errbuf, int errbufLen) {
	struct jpeg_decompress_struct cinfo;
	struct baseline_error_mgr jerr;
	cinfo.err = jpeg_std_error(&jerr.pub);
	jerr.pub.error_exit = baseline_error_exit;
	if (setjmp(jerr.setjmp_buffer)) {
		jpeg_destroy_decompress(&cinfo);
		strncpy(errbuf, jerr.message, errbufLen - 1);
		return -1;
	}
	jpeg_create_decompress(&cinfo);
	jpeg_mem_src(&cinfo, in, inLen);
	if (jpeg_read_header(&cinfo, TRUE) != JPEG_HEADER_OK) {
		jpeg_destroy_decompress(&cinfo);
		strncpy(errbuf, "failed to read JPEG header", errbufLen - 1);
		return -1;
	}
	jpeg_start_decompress(&cinfo);
	*width = cinfo.output_width;
	*height = cinfo.output_height;
	*components = cinfo.output_components;
	int rowStride = cinfo.output_width * cinfo.output_components;
	JSAMPARRAY buffer = (*cinfo.mem->alloc_sarray)((j_common_ptr)&cinfo, JPOOL_IMAGE, rowStride, 1);
	unsigned char *p = out;
	unsigned long written = 0;
	while (cinfo.output_scanline < cinfo.output_height) {
		jpeg_read_scanlines(&cinfo, buffer, 1);
		if (written + rowStride > outLen) {
			jpeg_destroy_decompress(&cinfo);
			strncpy(errbuf, "output buffer too small", errbufLen - 1);
			return -1;
		}
		memcpy(p, buffer[0], rowStride);
		p += rowStride;
		written += rowStride;
	}
	jpeg_finish_decompress(&cinfo);
	jpeg_destroy_decompress(&cinfo);
	return 0;
}

static int jpeg_baseline_encode(unsigned char *in, int width, int height,
	int components, int quality,
	unsigned char **out, unsigned long *outLen,
	char *errbuf, int errbufLen) {
	struct jpeg_compress_struct cinfo;
	struct baseline_error_mgr jerr;
	cinfo.err = jpeg_std_error(&jerr.pub);
	jerr.pub.error_exit = baseline_error_exit;
	if (setjmp(jerr.setjmp_buffer)) {
		jpeg_destroy_compress(&cinfo);
		strncpy(errbuf, jerr.message, errbufLen - 1);
		return -1;
	}
	jpeg_create_compress(&cinfo);
	jpeg_mem_dest(&cinfo, out, outLen);
	cinfo.image_width = width;
	cinfo.image_height = height;
	cinfo.input_components = components;
	cinfo.in_color_space = components == 1 ? JCS_GRAYSCALE : JCS_RGB;
	jpeg_set_defaults(&cinfo);
	jpeg_set_quality(&cinfo, quality, TRUE);
	jpeg_start_compress(&cinfo, TRUE);
	int rowStride = width * components;
	JSAMPROW row_pointer[1];
	while (cinfo.next_scanline < cinfo.image_height) {
		row_pointer[0] = in + cinfo.next_scanline * rowStride;
		jpeg_write_scanlines(&cinfo, row_pointer, 1);
	}
	jpeg_finish_compress(&cinfo);
	jpeg_destroy_compress(&cinfo);
	return 0;
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/kcenon/pacsgo/codec"
	"github.com/kcenon/pacsgo/dicomerr"
	"github.com/kcenon/pacsgo/transfersyntax"
)

func init() {
	codec.Register(transfersyntax.JPEGBaseline8Bit, func() codec.Codec { return &Codec{} })
}

// Codec implements codec.Codec for JPEG Baseline via libjpeg-turbo.
type Codec struct{}

func (c *Codec) TransferSyntaxUID() string { return transfersyntax.JPEGBaseline8Bit }
func (c *Codec) Name() string              { return "JPEG Baseline (libjpeg-turbo)" }
func (c *Codec) IsLossy() bool             { return true }

func (c *Codec) CanEncode(p codec.Params) bool {
	if codec.RejectsOversizedSamples(p) {
		return false
	}
	return p.BitsAllocated == 8 && (p.SamplesPerPixel == 1 || p.SamplesPerPixel == 3)
}

func (c *Codec) CanDecode(p codec.Params) bool { return c.CanEncode(p) }

func (c *Codec) Encode(pixels []byte, p codec.Params, opts codec.Options) (codec.Result, error) {
	if !c.CanEncode(p) {
		return codec.Result{}, codec.NewCodecError(dicomerr.InvalidParameters, "jpegbaseline: cannot encode params %+v", p)
	}
	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	errbuf := make([]byte, 256)
	var outPtr *C.uchar
	var outLen C.ulong
	res := C.jpeg_baseline_encode(
		(*C.uchar)(unsafe.Pointer(&pixels[0])), C.int(p.Columns), C.int(p.Rows), C.int(p.SamplesPerPixel),
		C.int(quality), &outPtr, &outLen, (*C.char)(unsafe.Pointer(&errbuf[0])), C.int(len(errbuf)))
	if res != 0 {
		return codec.Result{}, codec.NewCodecError(dicomerr.EncodingFailed, "jpegbaseline: %s", cString(errbuf))
	}
	defer C.free(unsafe.Pointer(outPtr))
	data := C.GoBytes(unsafe.Pointer(outPtr), C.int(outLen))
	return codec.Result{Data: data, OutParams: p}, nil
}

func (c *Codec) Decode(data []byte, p codec.Params) (codec.Result, error) {
	if !c.CanDecode(p) {
		return codec.Result{}, codec.NewCodecError(dicomerr.InvalidParameters, "jpegbaseline: cannot decode params %+v", p)
	}
	if len(data) == 0 {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "jpegbaseline: empty input")
	}
	outLen := p.Columns * p.Rows * p.SamplesPerPixel
	out := make([]byte, outLen)
	errbuf := make([]byte, 256)
	var width, height, components C.int
	res := C.jpeg_baseline_decode(
		(*C.uchar)(unsafe.Pointer(&data[0])), C.ulong(len(data)),
		(*C.uchar)(unsafe.Pointer(&out[0])), C.ulong(outLen),
		&width, &height, &components, (*C.char)(unsafe.Pointer(&errbuf[0])), C.int(len(errbuf)))
	if res != 0 {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "jpegbaseline: %s", cString(errbuf))
	}
	if int(width) != p.Columns || int(height) != p.Rows || int(components) != p.SamplesPerPixel {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed,
			"jpegbaseline: decoded %dx%dx%d, expected %dx%dx%d", width, height, components, p.Columns, p.Rows, p.SamplesPerPixel)
	}
	return codec.Result{Data: out, OutParams: p}, nil
}

func cString(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return fmt.Sprintf("%s", buf)
}
