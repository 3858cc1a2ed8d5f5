//go:build cgo

// Package jpeg2000 wraps OpenJPEG to implement the JPEG 2000 Lossless and
// lossy transfer syntaxes.
package jpeg2000

/*
#cgo pkg-config: libopenjp2
#include <stdlib.h>
#include <string.h>
#include <openjpeg.h>

typedef struct {
	const unsigned char *data;
	unsigned long size;
	unsigned long pos;
} j2k_mem_src;

static OPJ_SIZE_T j2k_read(void *buf, OPJ_SIZE_T len, void *userdata) {
	j2k_mem_src *src = (j2k_mem_src *)userdata;
	OPJ_SIZE_T remaining = src->size - src->pos;
	if (remaining == 0) return (OPJ_SIZE_T)-1;
	OPJ_SIZE_T n = len < remaining ? len : remaining;
	memcpy(buf, src->data + src->pos, n);
	src->pos += n;
	return n;
}

static OPJ_OFF_T j2k_skip(OPJ_OFF_T len, void *userdata) {
	j2k_mem_src *src = (j2k_mem_src *)userdata;
	src->pos += len;
	return len;
}

static OPJ_BOOL j2k_seek(OPJ_OFF_T pos, void *userdata) {
	j2k_mem_src *src = (j2k_mem_src *)userdata;
	src->pos = pos;
	return OPJ_TRUE;
}

static void j2k_free(void *userdata) {
	free(userdata);
}

static opj_stream_t *j2k_stream_from_memory(const unsigned char *data, unsigned long size) {
	j2k_mem_src *src = (j2k_mem_src *)malloc(sizeof(j2k_mem_src));
	src->data = data;
	src->size = size;
	src->pos = 0;
	opj_stream_t *stream = opj_stream_default_create(OPJ_TRUE);
	opj_stream_set_read_function(stream, j2k_read);
	opj_stream_set_skip_function(stream, j2k_skip);
	opj_stream_set_seek_function(stream, j2k_seek);
	opj_stream_set_user_data(stream, src, j2k_free);
	opj_stream_set_user_data_length(stream, size);
	return stream;
}

// j2k_mem_sink is a growable output buffer for the encode path, the write
// side of the memory-stream trick used for decode above.
typedef struct {
	unsigned char *data;
	unsigned long size;
	unsigned long cap;
} j2k_mem_sink;

static void j2k_sink_grow(j2k_mem_sink *sink, unsigned long need) {
	if (need <= sink->cap) return;
	unsigned long newcap = sink->cap ? sink->cap * 2 : 4096;
	while (newcap < need) newcap *= 2;
	sink->data = (unsigned char *)realloc(sink->data, newcap);
	sink->cap = newcap;
}

static OPJ_SIZE_T j2k_write(void *buf, OPJ_SIZE_T len, void *userdata) {
	j2k_mem_sink *sink = (j2k_mem_sink *)userdata;
	j2k_sink_grow(sink, sink->size + len);
	memcpy(sink->data + sink->size, buf, len);
	sink->size += len;
	return len;
}

static OPJ_OFF_T j2k_sink_skip(OPJ_OFF_T len, void *userdata) {
	j2k_mem_sink *sink = (j2k_mem_sink *)userdata;
	j2k_sink_grow(sink, sink->size + len);
	memset(sink->data + sink->size, 0, len);
	sink->size += len;
	return len;
}

static OPJ_BOOL j2k_sink_seek(OPJ_OFF_T pos, void *userdata) {
	j2k_mem_sink *sink = (j2k_mem_sink *)userdata;
	sink->size = pos;
	return OPJ_TRUE;
}

static void j2k_sink_free(void *userdata) {
	j2k_mem_sink *sink = (j2k_mem_sink *)userdata;
	if (sink->data) free(sink->data);
	free(sink);
}

static j2k_mem_sink *j2k_sink_new() {
	return (j2k_mem_sink *)calloc(1, sizeof(j2k_mem_sink));
}

static opj_stream_t *j2k_stream_to_memory(j2k_mem_sink *sink) {
	opj_stream_t *stream = opj_stream_default_create(OPJ_FALSE);
	opj_stream_set_write_function(stream, j2k_write);
	opj_stream_set_skip_function(stream, j2k_sink_skip);
	opj_stream_set_seek_function(stream, j2k_sink_seek);
	opj_stream_set_user_data(stream, sink, j2k_sink_free);
	return stream;
}

static opj_image_cmptparm_t *j2k_make_cmptparms(int numcomps, int w, int h, int prec) {
	opj_image_cmptparm_t *p = (opj_image_cmptparm_t *)calloc(numcomps, sizeof(opj_image_cmptparm_t));
	int i;
	for (i = 0; i < numcomps; i++) {
		p[i].dx = 1;
		p[i].dy = 1;
		p[i].w = w;
		p[i].h = h;
		p[i].x0 = 0;
		p[i].y0 = 0;
		p[i].prec = prec;
		p[i].bpp = prec;
		p[i].sgnd = 0;
	}
	return p;
}
*/
import "C"

import (
	"unsafe"

	"github.com/kcenon/pacsgo/codec"
	"github.com/kcenon/pacsgo/dicomerr"
	"github.com/kcenon/pacsgo/transfersyntax"
)

func init() {
	codec.Register(transfersyntax.JPEG2000Lossless, func() codec.Codec { return &Codec{lossless: true} })
	codec.Register(transfersyntax.JPEG2000, func() codec.Codec { return &Codec{lossless: false} })
}

// Codec implements codec.Codec for JPEG 2000 via OpenJPEG. Encode only
// supports the lossless (reversible 5-3 wavelet, single quality layer)
// variant, matching this module's one testable round-trip requirement for
// this syntax; the lossy variant is decode-only, since this module never
// originates lossy J2K and the DWT rate-control knobs (Options.Quality,
// ChromaSubsampling) have no settled mapping onto OpenJPEG's tcp_rates
// without a real use site to validate against.
type Codec struct {
	lossless bool
}

func (c *Codec) TransferSyntaxUID() string {
	if c.lossless {
		return transfersyntax.JPEG2000Lossless
	}
	return transfersyntax.JPEG2000
}
func (c *Codec) Name() string  { return "JPEG 2000 (OpenJPEG)" }
func (c *Codec) IsLossy() bool { return !c.lossless }

func (c *Codec) CanEncode(p codec.Params) bool {
	if !c.lossless {
		return false
	}
	if codec.RejectsOversizedSamples(p) {
		return false
	}
	return p.SamplesPerPixel == 1 || p.SamplesPerPixel == 3
}

func (c *Codec) CanDecode(p codec.Params) bool {
	if codec.RejectsOversizedSamples(p) {
		return false
	}
	return p.SamplesPerPixel == 1 || p.SamplesPerPixel == 3
}

func (c *Codec) Encode(pixels []byte, p codec.Params, opts codec.Options) (codec.Result, error) {
	if !c.CanEncode(p) {
		return codec.Result{}, codec.NewCodecError(dicomerr.InvalidParameters, "jpeg2000: cannot encode params %+v", p)
	}
	bytesPerSample := (p.BitsAllocated + 7) / 8
	want := p.Columns * p.Rows * p.SamplesPerPixel * bytesPerSample
	if len(pixels) != want {
		return codec.Result{}, codec.NewCodecError(dicomerr.InvalidParameters,
			"jpeg2000: pixel buffer is %d bytes, want %d", len(pixels), want)
	}

	cmptparms := C.j2k_make_cmptparms(C.int(p.SamplesPerPixel), C.int(p.Columns), C.int(p.Rows), C.int(p.BitsStored))
	defer C.free(unsafe.Pointer(cmptparms))

	colorSpace := C.OPJ_CLRSPC_GRAY
	if p.SamplesPerPixel == 3 {
		colorSpace = C.OPJ_CLRSPC_SRGB
	}
	image := C.opj_image_create(C.OPJ_UINT32(p.SamplesPerPixel), cmptparms, colorSpace)
	if image == nil {
		return codec.Result{}, codec.NewCodecError(dicomerr.EncodingFailed, "jpeg2000: opj_image_create failed")
	}
	defer C.opj_image_destroy(image)
	image.x0 = 0
	image.y0 = 0
	image.x1 = C.OPJ_UINT32(p.Columns)
	image.y1 = C.OPJ_UINT32(p.Rows)

	comps := (*[8]C.opj_image_comp_t)(unsafe.Pointer(image.comps))[:p.SamplesPerPixel:p.SamplesPerPixel]
	n := p.Columns * p.Rows
	for s := 0; s < p.SamplesPerPixel; s++ {
		compData := (*[1 << 28]C.OPJ_INT32)(unsafe.Pointer(comps[s].data))[:n:n]
		for px := 0; px < n; px++ {
			off := (px*p.SamplesPerPixel + s) * bytesPerSample
			var v int32
			if bytesPerSample == 1 {
				v = int32(pixels[off])
			} else {
				v = int32(pixels[off]) | int32(pixels[off+1])<<8
			}
			compData[px] = C.OPJ_INT32(v)
		}
	}

	var params C.opj_cparameters_t
	C.opj_set_default_encoder_parameters(&params)
	params.tcp_numlayers = 1
	params.tcp_rates[0] = 0 // 0 means lossless under cp_disto_alloc
	params.cp_disto_alloc = 1
	params.irreversible = 0 // reversible 5-3 wavelet: the lossless path

	enc := C.opj_create_compress(C.OPJ_CODEC_J2K)
	if enc == nil {
		return codec.Result{}, codec.NewCodecError(dicomerr.EncodingFailed, "jpeg2000: failed to create compressor")
	}
	defer C.opj_destroy_codec(enc)
	if C.opj_setup_encoder(enc, &params, image) == 0 {
		return codec.Result{}, codec.NewCodecError(dicomerr.EncodingFailed, "jpeg2000: setup_encoder failed")
	}

	sink := C.j2k_sink_new()
	stream := C.j2k_stream_to_memory(sink)
	defer C.opj_stream_destroy(stream) // also frees sink, via j2k_sink_free

	if C.opj_start_compress(enc, image, stream) == 0 {
		return codec.Result{}, codec.NewCodecError(dicomerr.EncodingFailed, "jpeg2000: start_compress failed")
	}
	if C.opj_encode(enc, stream) == 0 {
		return codec.Result{}, codec.NewCodecError(dicomerr.EncodingFailed, "jpeg2000: encode failed")
	}
	if C.opj_end_compress(enc, stream) == 0 {
		return codec.Result{}, codec.NewCodecError(dicomerr.EncodingFailed, "jpeg2000: end_compress failed")
	}

	out := C.GoBytes(unsafe.Pointer(sink.data), C.int(sink.size))
	return codec.Result{Data: out, OutParams: p}, nil
}

func (c *Codec) Decode(data []byte, p codec.Params) (codec.Result, error) {
	if !c.CanDecode(p) {
		return codec.Result{}, codec.NewCodecError(dicomerr.InvalidParameters, "jpeg2000: cannot decode params %+v", p)
	}
	if len(data) == 0 {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "jpeg2000: empty input")
	}
	codecFmt := C.OPJ_CODEC_J2K
	if len(data) >= 12 && data[0] == 0x00 && data[1] == 0x00 && data[2] == 0x00 && data[3] == 0x0C {
		codecFmt = C.OPJ_CODEC_JP2
	}
	dec := C.opj_create_decompress(codecFmt)
	if dec == nil {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "jpeg2000: failed to create decompressor")
	}
	defer C.opj_destroy_codec(dec)

	var params C.opj_dparameters_t
	C.opj_set_default_decoder_parameters(&params)
	if C.opj_setup_decoder(dec, &params) == 0 {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "jpeg2000: setup_decoder failed")
	}

	stream := C.j2k_stream_from_memory((*C.uchar)(unsafe.Pointer(&data[0])), C.ulong(len(data)))
	defer C.opj_stream_destroy(stream)

	var image *C.opj_image_t
	if C.opj_read_header(stream, dec, &image) == 0 {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "jpeg2000: read_header failed")
	}
	defer C.opj_image_destroy(image)

	if C.opj_decode(dec, stream, image) == 0 {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed, "jpeg2000: decode failed")
	}

	numComps := int(image.numcomps)
	if numComps != p.SamplesPerPixel {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed,
			"jpeg2000: decoded %d components, expected %d", numComps, p.SamplesPerPixel)
	}

	comps := (*[8]C.opj_image_comp_t)(unsafe.Pointer(image.comps))[:numComps:numComps]
	width := int(comps[0].w)
	height := int(comps[0].h)
	if width != p.Columns || height != p.Rows {
		return codec.Result{}, codec.NewCodecError(dicomerr.DecodingFailed,
			"jpeg2000: decoded %dx%d, expected %dx%d", width, height, p.Columns, p.Rows)
	}

	bytesPerSample := (p.BitsAllocated + 7) / 8
	out := make([]byte, width*height*numComps*bytesPerSample)
	for s := 0; s < numComps; s++ {
		data := (*[1 << 28]C.OPJ_INT32)(unsafe.Pointer(comps[s].data))[: width*height : width*height]
		for px := 0; px < width*height; px++ {
			v := int32(data[px])
			off := (px*numComps + s) * bytesPerSample
			if bytesPerSample == 1 {
				out[off] = byte(v)
			} else {
				out[off] = byte(v)
				out[off+1] = byte(v >> 8)
			}
		}
	}
	return codec.Result{Data: out, OutParams: p}, nil
}
