// Package transfersyntax holds the DICOM transfer-syntax UID table: the
// uncompressed syntaxes negotiated during association handshake, and the
// encapsulated syntaxes handled by the codec package.
//
// https://dicom.nema.org/medical/dicom/current/output/chtml/part05/chapter_8.html
package transfersyntax

// Uncompressed transfer syntaxes.
const (
	ImplicitVRLittleEndian         = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian         = "1.2.840.10008.1.2.1"
	ExplicitVRBigEndian            = "1.2.840.10008.1.2.2"
	DeflatedExplicitVRLittleEndian = "1.2.840.10008.1.2.1.99"
)

// RLE Lossless.
const RLELossless = "1.2.840.10008.1.2.5"

// JPEG Lossless.
const (
	JPEGLossless    = "1.2.840.10008.1.2.4.57"
	JPEGLosslessSV1 = "1.2.840.10008.1.2.4.70"
)

// JPEG lossy.
const (
	JPEGBaseline8Bit = "1.2.840.10008.1.2.4.50"
	JPEGExtended12Bit = "1.2.840.10008.1.2.4.51"
)

// JPEG-LS.
const (
	JPEGLSLossless     = "1.2.840.10008.1.2.4.80"
	JPEGLSNearLossless = "1.2.840.10008.1.2.4.81"
)

// JPEG 2000.
const (
	JPEG2000Lossless = "1.2.840.10008.1.2.4.90"
	JPEG2000          = "1.2.840.10008.1.2.4.91"
)

// Info describes a transfer syntax's framing and compression properties.
type Info struct {
	UID          string
	Name         string
	Encapsulated bool // pixel data is stored as one or more encapsulated fragments, not a native array
	Lossless     bool
}

var registry = map[string]Info{
	ImplicitVRLittleEndian:         {ImplicitVRLittleEndian, "Implicit VR Little Endian", false, true},
	ExplicitVRLittleEndian:         {ExplicitVRLittleEndian, "Explicit VR Little Endian", false, true},
	ExplicitVRBigEndian:            {ExplicitVRBigEndian, "Explicit VR Big Endian", false, true},
	DeflatedExplicitVRLittleEndian: {DeflatedExplicitVRLittleEndian, "Deflated Explicit VR Little Endian", false, true},
	RLELossless:                    {RLELossless, "RLE Lossless", true, true},
	JPEGLossless:                   {JPEGLossless, "JPEG Lossless (Process 14)", true, true},
	JPEGLosslessSV1:                {JPEGLosslessSV1, "JPEG Lossless, First-Order Prediction (Process 14 SV1)", true, true},
	JPEGBaseline8Bit:               {JPEGBaseline8Bit, "JPEG Baseline (Process 1)", true, false},
	JPEGExtended12Bit:              {JPEGExtended12Bit, "JPEG Extended (Process 2 & 4)", true, false},
	JPEGLSLossless:                 {JPEGLSLossless, "JPEG-LS Lossless", true, true},
	JPEGLSNearLossless:             {JPEGLSNearLossless, "JPEG-LS Near-Lossless", true, false},
	JPEG2000Lossless:               {JPEG2000Lossless, "JPEG 2000 Lossless Only", true, true},
	JPEG2000:                       {JPEG2000, "JPEG 2000", true, false},
}

// Lookup returns the Info for uid, and whether it was found.
func Lookup(uid string) (Info, bool) {
	info, ok := registry[uid]
	return info, ok
}

// IsEncapsulated reports whether uid stores pixel data as encapsulated
// fragments (as opposed to a flat native pixel array).
func IsEncapsulated(uid string) bool {
	info, ok := registry[uid]
	return ok && info.Encapsulated
}

// IsLossless reports whether uid is a lossless encoding. An unknown UID is
// treated as lossless/native, matching the native-transfer-syntax default.
func IsLossless(uid string) bool {
	info, ok := registry[uid]
	if !ok {
		return true
	}
	return info.Lossless
}

// StandardTransferSyntaxes lists the two little-endian uncompressed
// syntaxes. ServiceUser does not use it: its default proposal list is
// go-dicom's dicomio.StandardTransferSyntaxes.
var StandardTransferSyntaxes = []string{
	ImplicitVRLittleEndian,
	ExplicitVRLittleEndian,
}
