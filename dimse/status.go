package dimse

import (
	"fmt"

	"github.com/yasushi-saito/go-dicom"
	"github.com/yasushi-saito/go-dicom/dicomio"
)

// Status is the (Status, ErrorComment) pair carried by every DIMSE *_RSP
// message, tag (0000,0900) and the optional (0000,0902).
//
// P3.7 C, and P3.4 Annex C (C-STORE), GG (Query/Retrieve).
type Status struct {
	Status       uint16
	ErrorComment string
}

// Well-known status codes. The high nibble groups codes into the classes
// used throughout the dispatcher: 0x0000 success, 0xFF00/0xFF01 pending,
// 0xFE00 cancel, 0xBxxx warning, 0xAxxx/0xCxxx failure.
const (
	StatusSuccess             uint16 = 0x0000
	StatusPending             uint16 = 0xff00
	StatusPendingWithWarnings uint16 = 0xff01
	StatusCancel              uint16 = 0xfe00

	StatusOutOfResources              uint16 = 0xa700
	StatusDataSetDoesNotMatchSOPClass uint16 = 0xa900
	StatusUnableToCalculateNumMatches uint16 = 0xa701
	StatusUnableToPerformSubOps       uint16 = 0xa702
	StatusMoveDestinationUnknown      uint16 = 0xa801

	StatusCoercionOfDataElements     uint16 = 0xb000
	StatusDataSetDoesNotMatchWarning uint16 = 0xb007
	StatusElementsDiscarded          uint16 = 0xb006

	StatusCannotUnderstand    uint16 = 0xc000
	StatusProcessingFailure   uint16 = 0x0110
	StatusMissingAttribute    uint16 = 0x0120
	StatusInvalidObjectInst   uint16 = 0xa900
	StatusNoSuchAttribute     uint16 = 0x0105
	StatusSOPClassNotSupported uint16 = 0x0122

	// StatusUnrecognizedOperation is returned when no handler is registered
	// for the requested DIMSE operation (e.g. CStore==nil in
	// ServiceProviderParams). P3.7 Annex C general status code.
	StatusUnrecognizedOperation uint16 = 0x0211

	// N-CREATE/N-SET specific status codes, P3.7 Annex C.
	StatusDuplicateSOPInstance uint16 = 0x0111
	StatusNoSuchObjectInstance uint16 = 0x0112

	// CFindUnableToProcess, P3.4 C.4.1: the C-FIND SCP encountered an error
	// while matching or couldn't produce an identifier.
	CFindUnableToProcess uint16 = 0xc000
)

// Success is a convenience constructor for the common Success status.
func Success() Status { return Status{Status: StatusSuccess} }

// Pending is the intermediate status for streaming C-FIND/C-MOVE/C-GET
// responses.
func Pending() Status { return Status{Status: StatusPending} }

// CancelStatus is the terminal status emitted after a C-CANCEL-RQ stops a
// streaming operation.
func CancelStatus() Status { return Status{Status: StatusCancel} }

// IsPending reports whether s is one of the Pending status codes.
func (s Status) IsPending() bool {
	return s.Status == StatusPending || s.Status == StatusPendingWithWarnings
}

// IsSuccess reports whether s denotes unconditional success.
func (s Status) IsSuccess() bool { return s.Status == StatusSuccess }

// Class groups a status code into the five outcome classes the dispatcher
// and service handlers reason about.
type Class int

const (
	ClassSuccess Class = iota
	ClassPending
	ClassCancel
	ClassWarning
	ClassFailure
)

// Class classifies the status code per its high nibble/byte, per P3.7 C.
func (s Status) Class() Class {
	switch {
	case s.Status == StatusSuccess:
		return ClassSuccess
	case s.Status == StatusPending || s.Status == StatusPendingWithWarnings:
		return ClassPending
	case s.Status == StatusCancel:
		return ClassCancel
	case s.Status&0xf000 == 0xb000:
		return ClassWarning
	default:
		return ClassFailure
	}
}

func (s Status) String() string {
	if s.ErrorComment != "" {
		return fmt.Sprintf("status{0x%04x, %q}", s.Status, s.ErrorComment)
	}
	return fmt.Sprintf("status{0x%04x}", s.Status)
}

func (d *dimseDecoder) getStatus() Status {
	return Status{
		Status:       d.getUInt16(dicom.TagStatus, RequiredElement),
		ErrorComment: d.getString(dicom.TagErrorComment, OptionalElement),
	}
}

func encodeStatus(e *dicomio.Encoder, s Status) {
	encodeField(e, dicom.TagStatus, s.Status)
	if s.ErrorComment != "" {
		encodeField(e, dicom.TagErrorComment, s.ErrorComment)
	}
}
