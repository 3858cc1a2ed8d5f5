// This file defines the Modality Performed Procedure Step (MPPS) and
// Modality Worklist service handlers: N-CREATE/N-SET for MPPS, and C-FIND
// against the Modality Worklist abstract syntax for Worklist.

package netdicom

import (
	"github.com/kcenon/pacsgo/dimse"
	"github.com/yasushi-saito/go-dicom"
)

// WorklistHandler is a C-FIND handler scoped to the Modality Worklist
// abstract syntax. The dispatcher routes Worklist queries through the same
// streaming C-FIND contract as Query/Retrieve: the handler distinguishes
// the two by sopClassUID.
type WorklistHandler = CFindCallback

// MPPSStatus is the performedProcedureStepStatus of an MPPS instance, set
// by N-SET after the instance has been created by N-CREATE.
type MPPSStatus int

const (
	MPPSInProgress MPPSStatus = iota
	MPPSCompleted
	MPPSDiscontinued
)

func (s MPPSStatus) String() string {
	switch s {
	case MPPSInProgress:
		return "IN PROGRESS"
	case MPPSCompleted:
		return "COMPLETED"
	case MPPSDiscontinued:
		return "DISCONTINUED"
	default:
		return "UNKNOWN"
	}
}

// MPPSCreateCallback handles N-CREATE against the MPPS SOP class: it
// receives the new instance's attributes and should persist it with
// status MPPSInProgress.
type MPPSCreateCallback func(sopInstanceUID string, elems []*dicom.Element) dimse.Status

// MPPSSetCallback handles N-SET against an existing MPPS instance: it
// receives the updated attributes (which include the new
// PerformedProcedureStepStatus) and should apply them.
type MPPSSetCallback func(sopInstanceUID string, elems []*dicom.Element) dimse.Status

func (cs *providerCommandState) handleNCreate(c *dimse.N_CREATE_RQ, data []byte) {
	status := dimse.Status{Status: dimse.StatusUnrecognizedOperation}
	if cs.parent.params.MPPSCreate != nil {
		elems, err := readElementsInBytes(data, cs.context.transferSyntaxUID)
		if err != nil {
			status = dimse.Status{Status: dimse.StatusUnrecognizedOperation, ErrorComment: err.Error()}
		} else {
			status = cs.parent.params.MPPSCreate(c.AffectedSOPInstanceUID, elems)
		}
	}
	resp := &dimse.N_CREATE_RSP{
		AffectedSOPClassUID:       c.AffectedSOPClassUID,
		MessageIDBeingRespondedTo: c.MessageID,
		AffectedSOPInstanceUID:    c.AffectedSOPInstanceUID,
		CommandDataSetType:        dimse.CommandDataSetTypeNull,
		Status:                    status,
	}
	cs.sendMessage(resp, nil)
}

func (cs *providerCommandState) handleNSet(c *dimse.N_SET_RQ, data []byte) {
	status := dimse.Status{Status: dimse.StatusUnrecognizedOperation}
	if cs.parent.params.MPPSSet != nil {
		elems, err := readElementsInBytes(data, cs.context.transferSyntaxUID)
		if err != nil {
			status = dimse.Status{Status: dimse.StatusUnrecognizedOperation, ErrorComment: err.Error()}
		} else {
			status = cs.parent.params.MPPSSet(c.RequestedSOPInstanceUID, elems)
		}
	}
	resp := &dimse.N_SET_RSP{
		AffectedSOPClassUID:       c.RequestedSOPClassUID,
		MessageIDBeingRespondedTo: c.MessageID,
		AffectedSOPInstanceUID:    c.RequestedSOPInstanceUID,
		CommandDataSetType:        dimse.CommandDataSetTypeNull,
		Status:                    status,
	}
	cs.sendMessage(resp, nil)
}
