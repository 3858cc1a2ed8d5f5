// Package codec defines the pixel-data codec contract and a registry
// keyed by transfer-syntax UID, grounded on the compression_codec
// interface (transfer_syntax_uid/name/is_lossy/can_encode/can_decode/
// encode/decode) described for the PACS system this module reimplements,
// and on the codec wrapper shape seen in the example corpus's cgo pixel
// decoders (validate constraints, call the library, map errors to one
// typed error).
package codec

import (
	"fmt"
	"sync"

	"github.com/kcenon/pacsgo/dicomerr"
)

// Params describes the pixel buffer a codec is asked to encode or the
// pixel buffer a decode call is expected to reconstruct.
type Params struct {
	Columns             int
	Rows                int
	BitsAllocated        int
	BitsStored           int
	SamplesPerPixel      int
	PlanarConfiguration  int // 0 = interleaved (the only layout Decode ever returns)
}

// Options controls lossy encode behavior. Codecs ignore options that don't
// apply to them; which ones apply is documented per codec.
type Options struct {
	Quality           int // 1..100
	Lossless          bool
	Progressive       bool
	ChromaSubsampling int // 0, 1, or 2
}

// Result is what Encode/Decode return on success.
type Result struct {
	Data      []byte
	OutParams Params
}

// Codec is a stateless transform between a native pixel buffer and its
// encapsulated, transfer-syntax-specific encoding. A Codec instance is not
// shared across goroutines: the registry's factory returns a fresh one for
// every Encode/Decode call site.
type Codec interface {
	TransferSyntaxUID() string
	Name() string
	IsLossy() bool
	CanEncode(p Params) bool
	CanDecode(p Params) bool
	Encode(pixels []byte, p Params, opts Options) (Result, error)
	Decode(data []byte, p Params) (Result, error)
}

// RejectsOversizedSamples is the shared can_encode/can_decode guard every
// codec in this package runs first: none of them accept 32-bit-per-sample
// data or more than 3 samples per pixel, and JPEG Baseline additionally
// rejects anything over 8 bits per sample (enforced by that codec itself).
func RejectsOversizedSamples(p Params) bool {
	return p.BitsAllocated >= 32 || p.SamplesPerPixel > 3
}

type factory func() Codec

var (
	mu       sync.RWMutex
	registry = map[string]factory{}
)

// Register adds a codec factory for uid. Called from each codec
// subpackage's init(). It holds mu's write lock, so it is safe to call
// concurrently with Create/IsSupported/SupportedUIDs, and the registry is
// only ever mutated at program init, before any association is accepted
// — see the concurrency model's "codec registry: immutable
// after start" invariant.
func Register(uid string, f factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[uid]; exists {
		panic(fmt.Sprintf("codec: duplicate registration for %s", uid))
	}
	registry[uid] = f
}

// Create returns a fresh Codec instance for uid, or ok=false if no codec
// is registered for it.
func Create(uid string) (Codec, bool) {
	mu.RLock()
	f, ok := registry[uid]
	mu.RUnlock()
	if !ok {
		return nil, false
	}
	return f(), true
}

// IsSupported reports whether a codec is registered for uid.
func IsSupported(uid string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := registry[uid]
	return ok
}

// SupportedUIDs returns the transfer-syntax UIDs with a registered codec.
func SupportedUIDs() []string {
	mu.RLock()
	defer mu.RUnlock()
	uids := make([]string, 0, len(registry))
	for uid := range registry {
		uids = append(uids, uid)
	}
	return uids
}

// NewCodecError is a convenience wrapper codecs use to report a
// dicomerr.CodecError without importing dicomerr's Kind constants
// individually at every call site.
func NewCodecError(kind dicomerr.CodecErrorKind, format string, args ...interface{}) error {
	return dicomerr.NewCodecError(kind, format, args...)
}
