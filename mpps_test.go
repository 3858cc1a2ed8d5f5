package netdicom

import (
	"context"
	"testing"

	"github.com/kcenon/pacsgo/dimse"
	"github.com/kcenon/pacsgo/sopclass"
	"github.com/yasushi-saito/go-dicom"
)

func TestMPPSStatusString(t *testing.T) {
	cases := []struct {
		status MPPSStatus
		want   string
	}{
		{MPPSInProgress, "IN PROGRESS"},
		{MPPSCompleted, "COMPLETED"},
		{MPPSDiscontinued, "DISCONTINUED"},
		{MPPSStatus(99), "UNKNOWN"},
	}
	for _, c := range cases {
		if got := c.status.String(); got != c.want {
			t.Errorf("%d.String() = %q, want %q", c.status, got, c.want)
		}
	}
}

func TestMPPSCreateCallbackSignature(t *testing.T) {
	var cb MPPSCreateCallback = func(sopInstanceUID string, elems []*dicom.Element) dimse.Status {
		if sopInstanceUID == "" {
			return dimse.Status{Status: dimse.StatusInvalidObjectInst}
		}
		return dimse.Success()
	}
	if got := cb("1.2.3", nil); !got.IsSuccess() {
		t.Errorf("callback returned %v, want success", got)
	}
	if got := cb("", nil); got.IsSuccess() {
		t.Errorf("callback with empty SOP instance UID should not succeed")
	}
}

func TestMPPSClassesContainsMPPSSOPClass(t *testing.T) {
	found := false
	for _, c := range sopclass.MPPSClasses {
		if c.UID == "1.2.840.10008.3.1.2.3.3" {
			found = true
		}
	}
	if !found {
		t.Errorf("sopclass.MPPSClasses does not contain the MPPS SOP class UID")
	}
}

func TestWorklistHandlerIsCFindCallback(t *testing.T) {
	// WorklistHandler must be assignable wherever CFindCallback is expected,
	// since the dispatcher routes both through the same C-FIND path.
	var h WorklistHandler = func(ctx context.Context, transferSyntaxUID, sopClassUID string, filters []*dicom.Element) chan CFindResult {
		ch := make(chan CFindResult)
		close(ch)
		return ch
	}
	var _ CFindCallback = h
}
