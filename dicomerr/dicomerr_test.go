package dicomerr_test

import (
	"errors"
	"testing"

	"github.com/kcenon/pacsgo/dicomerr"
)

func TestTransportErrorUnwrap(t *testing.T) {
	inner := errors.New("reset by peer")
	err := dicomerr.NewTransportError("Read", inner)
	if !errors.Is(err, inner) {
		t.Errorf("errors.Is(%v, %v) = false, want true", err, inner)
	}
	if got, want := err.Error(), "transport error during Read: reset by peer"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestProtocolErrorFormatting(t *testing.T) {
	err := dicomerr.NewProtocolError("unexpected PDU type 0x%02x", 0x99)
	if got, want := err.Error(), "protocol error: unexpected PDU type 0x99"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNegotiationErrorFields(t *testing.T) {
	err := dicomerr.NewNegotiationError(1, 2, "no acceptable presentation context")
	if err.Source != 1 || err.Reason != 2 {
		t.Errorf("got source=%d reason=%d, want 1, 2", err.Source, err.Reason)
	}
}

func TestServiceErrorStatus(t *testing.T) {
	err := dicomerr.NewServiceError("C-STORE", 0xa700, "out of resources")
	if err.Status != 0xa700 {
		t.Errorf("Status = 0x%04x, want 0xa700", err.Status)
	}
}

func TestCodecErrorKindString(t *testing.T) {
	cases := []struct {
		kind dicomerr.CodecErrorKind
		want string
	}{
		{dicomerr.InvalidParameters, "InvalidParameters"},
		{dicomerr.UnsupportedTransferSyntax, "UnsupportedTransferSyntax"},
		{dicomerr.EncodingFailed, "EncodingFailed"},
		{dicomerr.DecodingFailed, "DecodingFailed"},
		{dicomerr.CodecErrorKind(99), "Unknown"},
	}
	for _, c := range cases {
		if got := c.kind.String(); got != c.want {
			t.Errorf("%d.String() = %q, want %q", c.kind, got, c.want)
		}
	}
}

func TestCodecErrorMessage(t *testing.T) {
	err := dicomerr.NewCodecError(dicomerr.DecodingFailed, "bad SOF marker at offset %d", 12)
	want := "codec error (DecodingFailed): bad SOF marker at offset 12"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
