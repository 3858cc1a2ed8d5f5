package transfersyntax_test

import (
	"testing"

	"github.com/kcenon/pacsgo/transfersyntax"
)

func TestLookupKnown(t *testing.T) {
	info, ok := transfersyntax.Lookup(transfersyntax.JPEGBaseline8Bit)
	if !ok {
		t.Fatalf("Lookup(%q) not found", transfersyntax.JPEGBaseline8Bit)
	}
	if !info.Encapsulated {
		t.Errorf("JPEGBaseline8Bit.Encapsulated = false, want true")
	}
	if info.Lossless {
		t.Errorf("JPEGBaseline8Bit.Lossless = true, want false")
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, ok := transfersyntax.Lookup("1.2.3.4.5.not.a.real.uid"); ok {
		t.Errorf("Lookup of bogus UID found a match")
	}
}

func TestIsEncapsulated(t *testing.T) {
	if transfersyntax.IsEncapsulated(transfersyntax.ExplicitVRLittleEndian) {
		t.Errorf("ExplicitVRLittleEndian should not be encapsulated")
	}
	if !transfersyntax.IsEncapsulated(transfersyntax.RLELossless) {
		t.Errorf("RLELossless should be encapsulated")
	}
	if transfersyntax.IsEncapsulated("bogus") {
		t.Errorf("unknown UID should not be reported encapsulated")
	}
}

func TestIsLossless(t *testing.T) {
	if !transfersyntax.IsLossless(transfersyntax.JPEGLosslessSV1) {
		t.Errorf("JPEGLosslessSV1 should be lossless")
	}
	if transfersyntax.IsLossless(transfersyntax.JPEGBaseline8Bit) {
		t.Errorf("JPEGBaseline8Bit should not be lossless")
	}
	if !transfersyntax.IsLossless("bogus-uid") {
		t.Errorf("unknown UID should default to lossless")
	}
}

func TestStandardTransferSyntaxes(t *testing.T) {
	want := map[string]bool{
		transfersyntax.ImplicitVRLittleEndian: true,
		transfersyntax.ExplicitVRLittleEndian: true,
	}
	if len(transfersyntax.StandardTransferSyntaxes) != len(want) {
		t.Fatalf("len(StandardTransferSyntaxes) = %d, want %d", len(transfersyntax.StandardTransferSyntaxes), len(want))
	}
	for _, uid := range transfersyntax.StandardTransferSyntaxes {
		if !want[uid] {
			t.Errorf("unexpected syntax %q in StandardTransferSyntaxes", uid)
		}
	}
}
