package dimse

// Message struct definitions for the DIMSE command set P3.7 defines:
// C-STORE, C-FIND, C-MOVE, C-GET, C-ECHO, C-CANCEL, N-CREATE, N-SET.
//
// Each RQ/RSP pair mirrors the shape of C_STORE_RQ/C_STORE_RSP: a Go struct
// with the operation's command fields, an Encode method that writes them as
// an Implicit VR Little Endian command group, a HasData method telling the
// dispatcher whether a dataset follows, and a decodeXxx function that reads
// the struct back out of a dimseDecoder. Fields the struct doesn't know
// about are preserved in Extra so a decode/encode round trip doesn't drop
// private or newer standard attributes.

import (
	"fmt"

	"github.com/yasushi-saito/go-dicom"
	"github.com/yasushi-saito/go-dicom/dicomio"
)

// CommandField values, P3.7 E.1. Untyped so they convert freely to the
// uint16 wire representation and to the int keys serviceDispatcher's
// callback registry uses.
const (
	CommandFieldC_STORE_RQ  = 0x0001
	CommandFieldC_STORE_RSP = 0x8001
	CommandFieldC_GET_RQ    = 0x0010
	CommandFieldC_GET_RSP   = 0x8010
	CommandFieldC_FIND_RQ   = 0x0020
	CommandFieldC_FIND_RSP  = 0x8020
	CommandFieldC_MOVE_RQ   = 0x0021
	CommandFieldC_MOVE_RSP  = 0x8021
	CommandFieldC_ECHO_RQ   = 0x0030
	CommandFieldC_ECHO_RSP  = 0x8030
	CommandFieldN_SET_RQ    = 0x0120
	CommandFieldN_SET_RSP   = 0x8120
	CommandFieldN_CREATE_RQ  = 0x0140
	CommandFieldN_CREATE_RSP = 0x8140
	CommandFieldC_CANCEL_RQ  = 0x0fff
)

type C_STORE_RQ struct {
	AffectedSOPClassUID                  string
	MessageID                            uint16
	Priority                             uint16
	CommandDataSetType                   uint16
	AffectedSOPInstanceUID                string
	MoveOriginatorApplicationEntityTitle string
	MoveOriginatorMessageID               uint16
	Extra                                 []*dicom.DicomElement
}

func (v *C_STORE_RQ) Encode(e *dicomio.Encoder) {
	encodeField(e, dicom.TagCommandField, uint16(CommandFieldC_STORE_RQ))
	encodeField(e, dicom.TagAffectedSOPClassUID, v.AffectedSOPClassUID)
	encodeField(e, dicom.TagMessageID, v.MessageID)
	encodeField(e, dicom.TagPriority, v.Priority)
	encodeField(e, dicom.TagCommandDataSetType, v.CommandDataSetType)
	encodeField(e, dicom.TagAffectedSOPInstanceUID, v.AffectedSOPInstanceUID)
	if v.MoveOriginatorApplicationEntityTitle != "" {
		encodeField(e, dicom.TagMoveOriginatorApplicationEntityTitle, v.MoveOriginatorApplicationEntityTitle)
	}
	if v.MoveOriginatorMessageID != 0 {
		encodeField(e, dicom.TagMoveOriginatorMessageID, v.MoveOriginatorMessageID)
	}
	for _, elem := range v.Extra {
		dicom.EncodeDataElement(e, elem)
	}
}

func (v *C_STORE_RQ) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }

func (v *C_STORE_RQ) String() string {
	return fmt.Sprintf("C_STORE_RQ{AffectedSOPClassUID:%v MessageID:%v Priority:%v CommandDataSetType:%v AffectedSOPInstanceUID:%v}",
		v.AffectedSOPClassUID, v.MessageID, v.Priority, v.CommandDataSetType, v.AffectedSOPInstanceUID)
}

func decodeC_STORE_RQ(d *dimseDecoder) *C_STORE_RQ {
	v := &C_STORE_RQ{}
	v.AffectedSOPClassUID = d.getString(dicom.TagAffectedSOPClassUID, RequiredElement)
	v.MessageID = d.getUInt16(dicom.TagMessageID, RequiredElement)
	v.Priority = d.getUInt16(dicom.TagPriority, RequiredElement)
	v.CommandDataSetType = d.getUInt16(dicom.TagCommandDataSetType, RequiredElement)
	v.AffectedSOPInstanceUID = d.getString(dicom.TagAffectedSOPInstanceUID, RequiredElement)
	v.MoveOriginatorApplicationEntityTitle = d.getString(dicom.TagMoveOriginatorApplicationEntityTitle, OptionalElement)
	v.MoveOriginatorMessageID = d.getUInt16(dicom.TagMoveOriginatorMessageID, OptionalElement)
	v.Extra = d.unparsedElements()
	return v
}

type C_STORE_RSP struct {
	AffectedSOPClassUID       string
	MessageIDBeingRespondedTo uint16
	CommandDataSetType        uint16
	AffectedSOPInstanceUID    string
	Status                    Status
	Extra                     []*dicom.DicomElement
}

func (v *C_STORE_RSP) Encode(e *dicomio.Encoder) {
	encodeField(e, dicom.TagCommandField, uint16(CommandFieldC_STORE_RSP))
	encodeField(e, dicom.TagAffectedSOPClassUID, v.AffectedSOPClassUID)
	encodeField(e, dicom.TagMessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo)
	encodeField(e, dicom.TagCommandDataSetType, v.CommandDataSetType)
	encodeField(e, dicom.TagAffectedSOPInstanceUID, v.AffectedSOPInstanceUID)
	encodeStatus(e, v.Status)
	for _, elem := range v.Extra {
		dicom.EncodeDataElement(e, elem)
	}
}

func (v *C_STORE_RSP) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }

func (v *C_STORE_RSP) String() string {
	return fmt.Sprintf("C_STORE_RSP{AffectedSOPClassUID:%v MessageIDBeingRespondedTo:%v Status:%v}",
		v.AffectedSOPClassUID, v.MessageIDBeingRespondedTo, v.Status)
}

func decodeC_STORE_RSP(d *dimseDecoder) *C_STORE_RSP {
	v := &C_STORE_RSP{}
	v.AffectedSOPClassUID = d.getString(dicom.TagAffectedSOPClassUID, RequiredElement)
	v.MessageIDBeingRespondedTo = d.getUInt16(dicom.TagMessageIDBeingRespondedTo, RequiredElement)
	v.CommandDataSetType = d.getUInt16(dicom.TagCommandDataSetType, RequiredElement)
	v.AffectedSOPInstanceUID = d.getString(dicom.TagAffectedSOPInstanceUID, RequiredElement)
	v.Status = d.getStatus()
	v.Extra = d.unparsedElements()
	return v
}

type C_FIND_RQ struct {
	AffectedSOPClassUID string
	MessageID           uint16
	Priority            uint16
	CommandDataSetType  uint16
	Extra               []*dicom.DicomElement
}

func (v *C_FIND_RQ) Encode(e *dicomio.Encoder) {
	encodeField(e, dicom.TagCommandField, uint16(CommandFieldC_FIND_RQ))
	encodeField(e, dicom.TagAffectedSOPClassUID, v.AffectedSOPClassUID)
	encodeField(e, dicom.TagMessageID, v.MessageID)
	encodeField(e, dicom.TagPriority, v.Priority)
	encodeField(e, dicom.TagCommandDataSetType, v.CommandDataSetType)
	for _, elem := range v.Extra {
		dicom.EncodeDataElement(e, elem)
	}
}

func (v *C_FIND_RQ) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }

func (v *C_FIND_RQ) String() string {
	return fmt.Sprintf("C_FIND_RQ{AffectedSOPClassUID:%v MessageID:%v Priority:%v}",
		v.AffectedSOPClassUID, v.MessageID, v.Priority)
}

func decodeC_FIND_RQ(d *dimseDecoder) *C_FIND_RQ {
	v := &C_FIND_RQ{}
	v.AffectedSOPClassUID = d.getString(dicom.TagAffectedSOPClassUID, RequiredElement)
	v.MessageID = d.getUInt16(dicom.TagMessageID, RequiredElement)
	v.Priority = d.getUInt16(dicom.TagPriority, RequiredElement)
	v.CommandDataSetType = d.getUInt16(dicom.TagCommandDataSetType, RequiredElement)
	v.Extra = d.unparsedElements()
	return v
}

type C_FIND_RSP struct {
	AffectedSOPClassUID       string
	MessageIDBeingRespondedTo uint16
	CommandDataSetType        uint16
	Status                    Status
	Extra                     []*dicom.DicomElement
}

func (v *C_FIND_RSP) Encode(e *dicomio.Encoder) {
	encodeField(e, dicom.TagCommandField, uint16(CommandFieldC_FIND_RSP))
	encodeField(e, dicom.TagAffectedSOPClassUID, v.AffectedSOPClassUID)
	encodeField(e, dicom.TagMessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo)
	encodeField(e, dicom.TagCommandDataSetType, v.CommandDataSetType)
	encodeStatus(e, v.Status)
	for _, elem := range v.Extra {
		dicom.EncodeDataElement(e, elem)
	}
}

func (v *C_FIND_RSP) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }

func (v *C_FIND_RSP) String() string {
	return fmt.Sprintf("C_FIND_RSP{AffectedSOPClassUID:%v MessageIDBeingRespondedTo:%v Status:%v}",
		v.AffectedSOPClassUID, v.MessageIDBeingRespondedTo, v.Status)
}

func decodeC_FIND_RSP(d *dimseDecoder) *C_FIND_RSP {
	v := &C_FIND_RSP{}
	v.AffectedSOPClassUID = d.getString(dicom.TagAffectedSOPClassUID, RequiredElement)
	v.MessageIDBeingRespondedTo = d.getUInt16(dicom.TagMessageIDBeingRespondedTo, RequiredElement)
	v.CommandDataSetType = d.getUInt16(dicom.TagCommandDataSetType, RequiredElement)
	v.Status = d.getStatus()
	v.Extra = d.unparsedElements()
	return v
}

// C_MOVE_RQ / C_MOVE_RSP, P3.7 9.3.4. MoveDestination names the AE the
// sub-operation C-STORE's should be sent to; resolving it to a host:port is
// left to the configuration collaborator (§6), not this package.
type C_MOVE_RQ struct {
	AffectedSOPClassUID string
	MessageID           uint16
	Priority             uint16
	MoveDestination      string
	CommandDataSetType   uint16
	Extra                []*dicom.DicomElement
}

func (v *C_MOVE_RQ) Encode(e *dicomio.Encoder) {
	encodeField(e, dicom.TagCommandField, uint16(CommandFieldC_MOVE_RQ))
	encodeField(e, dicom.TagAffectedSOPClassUID, v.AffectedSOPClassUID)
	encodeField(e, dicom.TagMessageID, v.MessageID)
	encodeField(e, dicom.TagPriority, v.Priority)
	encodeField(e, dicom.TagMoveDestination, v.MoveDestination)
	encodeField(e, dicom.TagCommandDataSetType, v.CommandDataSetType)
	for _, elem := range v.Extra {
		dicom.EncodeDataElement(e, elem)
	}
}

func (v *C_MOVE_RQ) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }

func (v *C_MOVE_RQ) String() string {
	return fmt.Sprintf("C_MOVE_RQ{AffectedSOPClassUID:%v MessageID:%v MoveDestination:%v}",
		v.AffectedSOPClassUID, v.MessageID, v.MoveDestination)
}

func decodeC_MOVE_RQ(d *dimseDecoder) *C_MOVE_RQ {
	v := &C_MOVE_RQ{}
	v.AffectedSOPClassUID = d.getString(dicom.TagAffectedSOPClassUID, RequiredElement)
	v.MessageID = d.getUInt16(dicom.TagMessageID, RequiredElement)
	v.Priority = d.getUInt16(dicom.TagPriority, RequiredElement)
	v.MoveDestination = d.getString(dicom.TagMoveDestination, RequiredElement)
	v.CommandDataSetType = d.getUInt16(dicom.TagCommandDataSetType, RequiredElement)
	v.Extra = d.unparsedElements()
	return v
}

type C_MOVE_RSP struct {
	AffectedSOPClassUID            string
	MessageIDBeingRespondedTo      uint16
	CommandDataSetType             uint16
	NumberOfRemainingSuboperations uint16
	NumberOfCompletedSuboperations uint16
	NumberOfFailedSuboperations    uint16
	NumberOfWarningSuboperations   uint16
	Status                         Status
	Extra                          []*dicom.DicomElement
}

func (v *C_MOVE_RSP) Encode(e *dicomio.Encoder) {
	encodeField(e, dicom.TagCommandField, uint16(CommandFieldC_MOVE_RSP))
	encodeField(e, dicom.TagAffectedSOPClassUID, v.AffectedSOPClassUID)
	encodeField(e, dicom.TagMessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo)
	encodeField(e, dicom.TagCommandDataSetType, v.CommandDataSetType)
	encodeField(e, dicom.TagNumberOfRemainingSuboperations, v.NumberOfRemainingSuboperations)
	encodeField(e, dicom.TagNumberOfCompletedSuboperations, v.NumberOfCompletedSuboperations)
	encodeField(e, dicom.TagNumberOfFailedSuboperations, v.NumberOfFailedSuboperations)
	encodeField(e, dicom.TagNumberOfWarningSuboperations, v.NumberOfWarningSuboperations)
	encodeStatus(e, v.Status)
	for _, elem := range v.Extra {
		dicom.EncodeDataElement(e, elem)
	}
}

func (v *C_MOVE_RSP) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }

func (v *C_MOVE_RSP) String() string {
	return fmt.Sprintf("C_MOVE_RSP{MessageIDBeingRespondedTo:%v remaining:%d completed:%d failed:%d warning:%d Status:%v}",
		v.MessageIDBeingRespondedTo, v.NumberOfRemainingSuboperations, v.NumberOfCompletedSuboperations,
		v.NumberOfFailedSuboperations, v.NumberOfWarningSuboperations, v.Status)
}

func decodeC_MOVE_RSP(d *dimseDecoder) *C_MOVE_RSP {
	v := &C_MOVE_RSP{}
	v.AffectedSOPClassUID = d.getString(dicom.TagAffectedSOPClassUID, OptionalElement)
	v.MessageIDBeingRespondedTo = d.getUInt16(dicom.TagMessageIDBeingRespondedTo, RequiredElement)
	v.CommandDataSetType = d.getUInt16(dicom.TagCommandDataSetType, RequiredElement)
	v.NumberOfRemainingSuboperations = d.getUInt16(dicom.TagNumberOfRemainingSuboperations, OptionalElement)
	v.NumberOfCompletedSuboperations = d.getUInt16(dicom.TagNumberOfCompletedSuboperations, OptionalElement)
	v.NumberOfFailedSuboperations = d.getUInt16(dicom.TagNumberOfFailedSuboperations, OptionalElement)
	v.NumberOfWarningSuboperations = d.getUInt16(dicom.TagNumberOfWarningSuboperations, OptionalElement)
	v.Status = d.getStatus()
	v.Extra = d.unparsedElements()
	return v
}

// C_GET_RQ / C_GET_RSP, P3.7 9.3.3. Unlike C-MOVE, the sub-operation
// C-STORE's flow back over the same association as the C-GET-RQ.
type C_GET_RQ struct {
	AffectedSOPClassUID string
	MessageID           uint16
	Priority            uint16
	CommandDataSetType  uint16
	Extra               []*dicom.DicomElement
}

func (v *C_GET_RQ) Encode(e *dicomio.Encoder) {
	encodeField(e, dicom.TagCommandField, uint16(CommandFieldC_GET_RQ))
	encodeField(e, dicom.TagAffectedSOPClassUID, v.AffectedSOPClassUID)
	encodeField(e, dicom.TagMessageID, v.MessageID)
	encodeField(e, dicom.TagPriority, v.Priority)
	encodeField(e, dicom.TagCommandDataSetType, v.CommandDataSetType)
	for _, elem := range v.Extra {
		dicom.EncodeDataElement(e, elem)
	}
}

func (v *C_GET_RQ) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }

func (v *C_GET_RQ) String() string {
	return fmt.Sprintf("C_GET_RQ{AffectedSOPClassUID:%v MessageID:%v}", v.AffectedSOPClassUID, v.MessageID)
}

func decodeC_GET_RQ(d *dimseDecoder) *C_GET_RQ {
	v := &C_GET_RQ{}
	v.AffectedSOPClassUID = d.getString(dicom.TagAffectedSOPClassUID, RequiredElement)
	v.MessageID = d.getUInt16(dicom.TagMessageID, RequiredElement)
	v.Priority = d.getUInt16(dicom.TagPriority, RequiredElement)
	v.CommandDataSetType = d.getUInt16(dicom.TagCommandDataSetType, RequiredElement)
	v.Extra = d.unparsedElements()
	return v
}

type C_GET_RSP struct {
	AffectedSOPClassUID            string
	MessageIDBeingRespondedTo      uint16
	CommandDataSetType             uint16
	NumberOfRemainingSuboperations uint16
	NumberOfCompletedSuboperations uint16
	NumberOfFailedSuboperations    uint16
	NumberOfWarningSuboperations   uint16
	Status                         Status
	Extra                          []*dicom.DicomElement
}

func (v *C_GET_RSP) Encode(e *dicomio.Encoder) {
	encodeField(e, dicom.TagCommandField, uint16(CommandFieldC_GET_RSP))
	encodeField(e, dicom.TagAffectedSOPClassUID, v.AffectedSOPClassUID)
	encodeField(e, dicom.TagMessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo)
	encodeField(e, dicom.TagCommandDataSetType, v.CommandDataSetType)
	encodeField(e, dicom.TagNumberOfRemainingSuboperations, v.NumberOfRemainingSuboperations)
	encodeField(e, dicom.TagNumberOfCompletedSuboperations, v.NumberOfCompletedSuboperations)
	encodeField(e, dicom.TagNumberOfFailedSuboperations, v.NumberOfFailedSuboperations)
	encodeField(e, dicom.TagNumberOfWarningSuboperations, v.NumberOfWarningSuboperations)
	encodeStatus(e, v.Status)
	for _, elem := range v.Extra {
		dicom.EncodeDataElement(e, elem)
	}
}

func (v *C_GET_RSP) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }

func (v *C_GET_RSP) String() string {
	return fmt.Sprintf("C_GET_RSP{MessageIDBeingRespondedTo:%v remaining:%d completed:%d failed:%d warning:%d Status:%v}",
		v.MessageIDBeingRespondedTo, v.NumberOfRemainingSuboperations, v.NumberOfCompletedSuboperations,
		v.NumberOfFailedSuboperations, v.NumberOfWarningSuboperations, v.Status)
}

func decodeC_GET_RSP(d *dimseDecoder) *C_GET_RSP {
	v := &C_GET_RSP{}
	v.AffectedSOPClassUID = d.getString(dicom.TagAffectedSOPClassUID, OptionalElement)
	v.MessageIDBeingRespondedTo = d.getUInt16(dicom.TagMessageIDBeingRespondedTo, RequiredElement)
	v.CommandDataSetType = d.getUInt16(dicom.TagCommandDataSetType, RequiredElement)
	v.NumberOfRemainingSuboperations = d.getUInt16(dicom.TagNumberOfRemainingSuboperations, OptionalElement)
	v.NumberOfCompletedSuboperations = d.getUInt16(dicom.TagNumberOfCompletedSuboperations, OptionalElement)
	v.NumberOfFailedSuboperations = d.getUInt16(dicom.TagNumberOfFailedSuboperations, OptionalElement)
	v.NumberOfWarningSuboperations = d.getUInt16(dicom.TagNumberOfWarningSuboperations, OptionalElement)
	v.Status = d.getStatus()
	v.Extra = d.unparsedElements()
	return v
}

type C_ECHO_RQ struct {
	MessageID          uint16
	CommandDataSetType uint16
	Extra              []*dicom.DicomElement
}

func (v *C_ECHO_RQ) Encode(e *dicomio.Encoder) {
	encodeField(e, dicom.TagCommandField, uint16(CommandFieldC_ECHO_RQ))
	encodeField(e, dicom.TagMessageID, v.MessageID)
	encodeField(e, dicom.TagCommandDataSetType, v.CommandDataSetType)
	for _, elem := range v.Extra {
		dicom.EncodeDataElement(e, elem)
	}
}

func (v *C_ECHO_RQ) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }

func (v *C_ECHO_RQ) String() string {
	return fmt.Sprintf("C_ECHO_RQ{MessageID:%v}", v.MessageID)
}

func decodeC_ECHO_RQ(d *dimseDecoder) *C_ECHO_RQ {
	v := &C_ECHO_RQ{}
	v.MessageID = d.getUInt16(dicom.TagMessageID, RequiredElement)
	v.CommandDataSetType = d.getUInt16(dicom.TagCommandDataSetType, RequiredElement)
	v.Extra = d.unparsedElements()
	return v
}

type C_ECHO_RSP struct {
	MessageIDBeingRespondedTo uint16
	CommandDataSetType        uint16
	Status                    Status
	Extra                     []*dicom.DicomElement
}

func (v *C_ECHO_RSP) Encode(e *dicomio.Encoder) {
	encodeField(e, dicom.TagCommandField, uint16(CommandFieldC_ECHO_RSP))
	encodeField(e, dicom.TagMessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo)
	encodeField(e, dicom.TagCommandDataSetType, v.CommandDataSetType)
	encodeStatus(e, v.Status)
	for _, elem := range v.Extra {
		dicom.EncodeDataElement(e, elem)
	}
}

func (v *C_ECHO_RSP) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }

func (v *C_ECHO_RSP) String() string {
	return fmt.Sprintf("C_ECHO_RSP{MessageIDBeingRespondedTo:%v Status:%v}", v.MessageIDBeingRespondedTo, v.Status)
}

func decodeC_ECHO_RSP(d *dimseDecoder) *C_ECHO_RSP {
	v := &C_ECHO_RSP{}
	v.MessageIDBeingRespondedTo = d.getUInt16(dicom.TagMessageIDBeingRespondedTo, RequiredElement)
	v.CommandDataSetType = d.getUInt16(dicom.TagCommandDataSetType, RequiredElement)
	v.Status = d.getStatus()
	v.Extra = d.unparsedElements()
	return v
}

// C_CANCEL_RQ, P3.7 9.3.2.3. Carries no response; it only ever targets an
// in-flight C-FIND/C-MOVE/C-GET by message ID.
type C_CANCEL_RQ struct {
	MessageIDBeingRespondedTo uint16
	Extra                     []*dicom.DicomElement
}

func (v *C_CANCEL_RQ) Encode(e *dicomio.Encoder) {
	encodeField(e, dicom.TagCommandField, uint16(CommandFieldC_CANCEL_RQ))
	encodeField(e, dicom.TagMessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo)
	for _, elem := range v.Extra {
		dicom.EncodeDataElement(e, elem)
	}
}

func (v *C_CANCEL_RQ) HasData() bool { return false }

func (v *C_CANCEL_RQ) String() string {
	return fmt.Sprintf("C_CANCEL_RQ{MessageIDBeingRespondedTo:%v}", v.MessageIDBeingRespondedTo)
}

func decodeC_CANCEL_RQ(d *dimseDecoder) *C_CANCEL_RQ {
	v := &C_CANCEL_RQ{}
	v.MessageIDBeingRespondedTo = d.getUInt16(dicom.TagMessageIDBeingRespondedTo, RequiredElement)
	v.Extra = d.unparsedElements()
	return v
}

// N_CREATE_RQ / N_CREATE_RSP, P3.7 10.1.1 — used here for MPPS creation.
type N_CREATE_RQ struct {
	AffectedSOPClassUID    string
	MessageID              uint16
	AffectedSOPInstanceUID string
	CommandDataSetType     uint16
	Extra                  []*dicom.DicomElement
}

func (v *N_CREATE_RQ) Encode(e *dicomio.Encoder) {
	encodeField(e, dicom.TagCommandField, uint16(CommandFieldN_CREATE_RQ))
	encodeField(e, dicom.TagAffectedSOPClassUID, v.AffectedSOPClassUID)
	encodeField(e, dicom.TagMessageID, v.MessageID)
	if v.AffectedSOPInstanceUID != "" {
		encodeField(e, dicom.TagAffectedSOPInstanceUID, v.AffectedSOPInstanceUID)
	}
	encodeField(e, dicom.TagCommandDataSetType, v.CommandDataSetType)
	for _, elem := range v.Extra {
		dicom.EncodeDataElement(e, elem)
	}
}

func (v *N_CREATE_RQ) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }

func (v *N_CREATE_RQ) String() string {
	return fmt.Sprintf("N_CREATE_RQ{AffectedSOPClassUID:%v MessageID:%v AffectedSOPInstanceUID:%v}",
		v.AffectedSOPClassUID, v.MessageID, v.AffectedSOPInstanceUID)
}

func decodeN_CREATE_RQ(d *dimseDecoder) *N_CREATE_RQ {
	v := &N_CREATE_RQ{}
	v.AffectedSOPClassUID = d.getString(dicom.TagAffectedSOPClassUID, RequiredElement)
	v.MessageID = d.getUInt16(dicom.TagMessageID, RequiredElement)
	v.AffectedSOPInstanceUID = d.getString(dicom.TagAffectedSOPInstanceUID, OptionalElement)
	v.CommandDataSetType = d.getUInt16(dicom.TagCommandDataSetType, RequiredElement)
	v.Extra = d.unparsedElements()
	return v
}

type N_CREATE_RSP struct {
	AffectedSOPClassUID       string
	MessageIDBeingRespondedTo uint16
	AffectedSOPInstanceUID    string
	CommandDataSetType        uint16
	Status                    Status
	Extra                     []*dicom.DicomElement
}

func (v *N_CREATE_RSP) Encode(e *dicomio.Encoder) {
	encodeField(e, dicom.TagCommandField, uint16(CommandFieldN_CREATE_RSP))
	encodeField(e, dicom.TagAffectedSOPClassUID, v.AffectedSOPClassUID)
	encodeField(e, dicom.TagMessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo)
	if v.AffectedSOPInstanceUID != "" {
		encodeField(e, dicom.TagAffectedSOPInstanceUID, v.AffectedSOPInstanceUID)
	}
	encodeField(e, dicom.TagCommandDataSetType, v.CommandDataSetType)
	encodeStatus(e, v.Status)
	for _, elem := range v.Extra {
		dicom.EncodeDataElement(e, elem)
	}
}

func (v *N_CREATE_RSP) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }

func (v *N_CREATE_RSP) String() string {
	return fmt.Sprintf("N_CREATE_RSP{MessageIDBeingRespondedTo:%v AffectedSOPInstanceUID:%v Status:%v}",
		v.MessageIDBeingRespondedTo, v.AffectedSOPInstanceUID, v.Status)
}

func decodeN_CREATE_RSP(d *dimseDecoder) *N_CREATE_RSP {
	v := &N_CREATE_RSP{}
	v.AffectedSOPClassUID = d.getString(dicom.TagAffectedSOPClassUID, OptionalElement)
	v.MessageIDBeingRespondedTo = d.getUInt16(dicom.TagMessageIDBeingRespondedTo, RequiredElement)
	v.AffectedSOPInstanceUID = d.getString(dicom.TagAffectedSOPInstanceUID, OptionalElement)
	v.CommandDataSetType = d.getUInt16(dicom.TagCommandDataSetType, RequiredElement)
	v.Status = d.getStatus()
	v.Extra = d.unparsedElements()
	return v
}

// N_SET_RQ / N_SET_RSP, P3.7 10.1.3 — used here for MPPS updates.
type N_SET_RQ struct {
	RequestedSOPClassUID    string
	MessageID               uint16
	RequestedSOPInstanceUID string
	CommandDataSetType      uint16
	Extra                   []*dicom.DicomElement
}

func (v *N_SET_RQ) Encode(e *dicomio.Encoder) {
	encodeField(e, dicom.TagCommandField, uint16(CommandFieldN_SET_RQ))
	encodeField(e, dicom.TagRequestedSOPClassUID, v.RequestedSOPClassUID)
	encodeField(e, dicom.TagMessageID, v.MessageID)
	encodeField(e, dicom.TagRequestedSOPInstanceUID, v.RequestedSOPInstanceUID)
	encodeField(e, dicom.TagCommandDataSetType, v.CommandDataSetType)
	for _, elem := range v.Extra {
		dicom.EncodeDataElement(e, elem)
	}
}

func (v *N_SET_RQ) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }

func (v *N_SET_RQ) String() string {
	return fmt.Sprintf("N_SET_RQ{RequestedSOPClassUID:%v MessageID:%v RequestedSOPInstanceUID:%v}",
		v.RequestedSOPClassUID, v.MessageID, v.RequestedSOPInstanceUID)
}

func decodeN_SET_RQ(d *dimseDecoder) *N_SET_RQ {
	v := &N_SET_RQ{}
	v.RequestedSOPClassUID = d.getString(dicom.TagRequestedSOPClassUID, RequiredElement)
	v.MessageID = d.getUInt16(dicom.TagMessageID, RequiredElement)
	v.RequestedSOPInstanceUID = d.getString(dicom.TagRequestedSOPInstanceUID, RequiredElement)
	v.CommandDataSetType = d.getUInt16(dicom.TagCommandDataSetType, RequiredElement)
	v.Extra = d.unparsedElements()
	return v
}

type N_SET_RSP struct {
	AffectedSOPClassUID       string
	MessageIDBeingRespondedTo uint16
	AffectedSOPInstanceUID    string
	CommandDataSetType        uint16
	Status                    Status
	Extra                     []*dicom.DicomElement
}

func (v *N_SET_RSP) Encode(e *dicomio.Encoder) {
	encodeField(e, dicom.TagCommandField, uint16(CommandFieldN_SET_RSP))
	if v.AffectedSOPClassUID != "" {
		encodeField(e, dicom.TagAffectedSOPClassUID, v.AffectedSOPClassUID)
	}
	encodeField(e, dicom.TagMessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo)
	if v.AffectedSOPInstanceUID != "" {
		encodeField(e, dicom.TagAffectedSOPInstanceUID, v.AffectedSOPInstanceUID)
	}
	encodeField(e, dicom.TagCommandDataSetType, v.CommandDataSetType)
	encodeStatus(e, v.Status)
	for _, elem := range v.Extra {
		dicom.EncodeDataElement(e, elem)
	}
}

func (v *N_SET_RSP) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }

func (v *N_SET_RSP) String() string {
	return fmt.Sprintf("N_SET_RSP{MessageIDBeingRespondedTo:%v AffectedSOPInstanceUID:%v Status:%v}",
		v.MessageIDBeingRespondedTo, v.AffectedSOPInstanceUID, v.Status)
}

func decodeN_SET_RSP(d *dimseDecoder) *N_SET_RSP {
	v := &N_SET_RSP{}
	v.AffectedSOPClassUID = d.getString(dicom.TagAffectedSOPClassUID, OptionalElement)
	v.MessageIDBeingRespondedTo = d.getUInt16(dicom.TagMessageIDBeingRespondedTo, RequiredElement)
	v.AffectedSOPInstanceUID = d.getString(dicom.TagAffectedSOPInstanceUID, OptionalElement)
	v.CommandDataSetType = d.getUInt16(dicom.TagCommandDataSetType, RequiredElement)
	v.Status = d.getStatus()
	v.Extra = d.unparsedElements()
	return v
}


func (v *C_STORE_RQ) GetMessageID() uint16 { return v.MessageID }
func (v *C_STORE_RQ) CommandField() int    { return CommandFieldC_STORE_RQ }

func (v *C_STORE_RSP) GetMessageID() uint16 { return v.MessageIDBeingRespondedTo }
func (v *C_STORE_RSP) CommandField() int    { return CommandFieldC_STORE_RSP }

func (v *C_FIND_RQ) GetMessageID() uint16 { return v.MessageID }
func (v *C_FIND_RQ) CommandField() int    { return CommandFieldC_FIND_RQ }

func (v *C_FIND_RSP) GetMessageID() uint16 { return v.MessageIDBeingRespondedTo }
func (v *C_FIND_RSP) CommandField() int    { return CommandFieldC_FIND_RSP }

func (v *C_MOVE_RQ) GetMessageID() uint16 { return v.MessageID }
func (v *C_MOVE_RQ) CommandField() int    { return CommandFieldC_MOVE_RQ }

func (v *C_MOVE_RSP) GetMessageID() uint16 { return v.MessageIDBeingRespondedTo }
func (v *C_MOVE_RSP) CommandField() int    { return CommandFieldC_MOVE_RSP }

func (v *C_GET_RQ) GetMessageID() uint16 { return v.MessageID }
func (v *C_GET_RQ) CommandField() int    { return CommandFieldC_GET_RQ }

func (v *C_GET_RSP) GetMessageID() uint16 { return v.MessageIDBeingRespondedTo }
func (v *C_GET_RSP) CommandField() int    { return CommandFieldC_GET_RSP }

func (v *C_ECHO_RQ) GetMessageID() uint16 { return v.MessageID }
func (v *C_ECHO_RQ) CommandField() int    { return CommandFieldC_ECHO_RQ }

func (v *C_ECHO_RSP) GetMessageID() uint16 { return v.MessageIDBeingRespondedTo }
func (v *C_ECHO_RSP) CommandField() int    { return CommandFieldC_ECHO_RSP }

func (v *C_CANCEL_RQ) GetMessageID() uint16 { return v.MessageIDBeingRespondedTo }
func (v *C_CANCEL_RQ) CommandField() int    { return CommandFieldC_CANCEL_RQ }

func (v *N_CREATE_RQ) GetMessageID() uint16 { return v.MessageID }
func (v *N_CREATE_RQ) CommandField() int    { return CommandFieldN_CREATE_RQ }

func (v *N_CREATE_RSP) GetMessageID() uint16 { return v.MessageIDBeingRespondedTo }
func (v *N_CREATE_RSP) CommandField() int    { return CommandFieldN_CREATE_RSP }

func (v *N_SET_RQ) GetMessageID() uint16 { return v.MessageID }
func (v *N_SET_RQ) CommandField() int    { return CommandFieldN_SET_RQ }

func (v *N_SET_RSP) GetMessageID() uint16 { return v.MessageIDBeingRespondedTo }
func (v *N_SET_RSP) CommandField() int    { return CommandFieldN_SET_RSP }

func decodeMessageForType(d *dimseDecoder, commandField uint16) Message {
	switch commandField {
	case CommandFieldC_STORE_RQ:
		return decodeC_STORE_RQ(d)
	case CommandFieldC_STORE_RSP:
		return decodeC_STORE_RSP(d)
	case CommandFieldC_FIND_RQ:
		return decodeC_FIND_RQ(d)
	case CommandFieldC_FIND_RSP:
		return decodeC_FIND_RSP(d)
	case CommandFieldC_MOVE_RQ:
		return decodeC_MOVE_RQ(d)
	case CommandFieldC_MOVE_RSP:
		return decodeC_MOVE_RSP(d)
	case CommandFieldC_GET_RQ:
		return decodeC_GET_RQ(d)
	case CommandFieldC_GET_RSP:
		return decodeC_GET_RSP(d)
	case CommandFieldC_ECHO_RQ:
		return decodeC_ECHO_RQ(d)
	case CommandFieldC_ECHO_RSP:
		return decodeC_ECHO_RSP(d)
	case CommandFieldC_CANCEL_RQ:
		return decodeC_CANCEL_RQ(d)
	case CommandFieldN_CREATE_RQ:
		return decodeN_CREATE_RQ(d)
	case CommandFieldN_CREATE_RSP:
		return decodeN_CREATE_RSP(d)
	case CommandFieldN_SET_RQ:
		return decodeN_SET_RQ(d)
	case CommandFieldN_SET_RSP:
		return decodeN_SET_RSP(d)
	default:
		d.setError(fmt.Errorf("unknown DIMSE command 0x%x", commandField))
		return nil
	}
}
