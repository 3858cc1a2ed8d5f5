package netdicom

// Implements the DICOM upper-layer (ACSE) association state machine.
//
// http://dicom.nema.org/medical/dicom/current/output/pdf/part08.pdf
//
// The full protocol defines 13 states and 19 events (P3.8 9.2). This
// package only distinguishes the 8 states that matter to a library
// that always auto-accepts releases and never runs a local UI asking
// "accept this association?": idle, awaiting an A-ASSOCIATE-AC as a
// requestor, awaiting an A-ASSOCIATE-RQ as an acceptor, awaiting the
// local accept/reject decision, associated, awaiting an
// A-RELEASE-RP, released and closed. Release collision (P3.8 sta08-12)
// collapses into "whichever side asked first wins"; the peer's
// colliding A-RELEASE-RQ is acknowledged and ignored.

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/kcenon/pacsgo/dicomerr"
	"github.com/kcenon/pacsgo/dimse"
	"github.com/kcenon/pacsgo/pdu"
	"github.com/yasushi-saito/go-dicom"
	"github.com/yasushi-saito/go-dicom/dicomio"
)

type associationState int

const (
	stIdle associationState = iota
	stAwaitingAC
	stAwaitingRQ
	stAwaitingACDecision
	stAssociated
	stAwaitingReleaseRP
	stReleased
	stClosed
)

func (s associationState) String() string {
	switch s {
	case stIdle:
		return "IDLE"
	case stAwaitingAC:
		return "AWAITING_AC"
	case stAwaitingRQ:
		return "AWAITING_RQ"
	case stAwaitingACDecision:
		return "AWAITING_AC_DECISION"
	case stAssociated:
		return "ASSOCIATED"
	case stAwaitingReleaseRP:
		return "AWAITING_RELEASE_RP"
	case stReleased:
		return "RELEASED"
	case stClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// requestTimeout bounds how long an acceptor waits for the peer's
// A-ASSOCIATE-RQ, or a requestor waits for the A-ASSOCIATE-AC/RJ, or
// either side waits for an A-RELEASE-RP once it has asked to release.
const requestTimeout = 30 * time.Second

// idleTimeout tears down an established association that has carried
// no DIMSE traffic for this long.
const idleTimeout = 2 * time.Minute

var smSeq int32 // for assigning unique association names, for logging.

const (
	evt02 = iota + 1 // transport connection ready (requestor: Connect/SetConn)
	evt03            // A-ASSOCIATE-AC PDU arrived
	evt04            // A-ASSOCIATE-RJ PDU arrived
	evt06            // A-ASSOCIATE-RQ PDU arrived
	evt09            // P-DATA request (downcall: send a DIMSE message)
	evt10            // P-DATA-TF PDU arrived
	evt11            // A-RELEASE request (downcall)
	evt12            // A-RELEASE-RQ PDU arrived
	evt13            // A-RELEASE-RP PDU arrived
	evt16            // A-ABORT PDU arrived
	evt17            // transport connection closed, or failed to open
	evt18            // ARTIM timer expired
	evt19            // local error, forces an abort
)

type upcallEventType int

const (
	upcallEventHandshakeCompleted upcallEventType = iota
	upcallEventData
)

// upcallEvent is how the statemachine reports inbound protocol activity
// to the command dispatcher running above it. Connection shutdown and
// any terminal error are reported by closing the channel, so they have
// no event type of their own.
type upcallEvent struct {
	eventType upcallEventType
	cm        *contextManager // set once the handshake completes
	contextID byte            // valid iff eventType==upcallEventData
	command   dimse.Message   // valid iff eventType==upcallEventData
	data      []byte          // valid iff eventType==upcallEventData
}

// stateEventDIMSEPayload is the downcall payload for evt09: encode
// "command" and, if present, send "data" right after it as P-DATA-TF
// PDUs on the presentation context matching abstractSyntaxName.
type stateEventDIMSEPayload struct {
	abstractSyntaxName string
	command            dimse.Message
	data               []byte
}

type stateEvent struct {
	event int
	pdu   pdu.PDU
	err   error
	conn  net.Conn

	dimsePayload *stateEventDIMSEPayload // set iff event==evt09
}

func (e stateEvent) String() string {
	return fmt.Sprintf("event:%d err:%v pdu:%v", e.event, e.err, e.pdu)
}

// association holds the per-TCP-connection state driving one side of
// the ACSE handshake and the P-DATA-TF traffic that follows it. One
// association runs in its own goroutine and is not safe to touch from
// the outside except through netCh/downcallCh/upcallCh.
type association struct {
	name   string // for logging only
	isUser bool

	conn  net.Conn
	cm    *contextManager
	state associationState

	netCh      chan stateEvent // fed by the reader goroutine
	downcallCh chan stateEvent // fed by the command dispatcher above
	upcallCh   chan upcallEvent
	timerCh    chan stateEvent

	maxPDUSize int // our own advertised receive capacity

	assembler dimse.CommandAssembler
}

func newAssociation(name string, isUser bool, upcallCh chan upcallEvent, downcallCh chan stateEvent) *association {
	return &association{
		name:       name,
		isUser:     isUser,
		cm:         newContextManager(),
		state:      stIdle,
		netCh:      make(chan stateEvent, 128),
		downcallCh: downcallCh,
		upcallCh:   upcallCh,
		timerCh:    make(chan stateEvent),
		maxPDUSize: DefaultMaxPDUSize,
	}
}

// startReader spawns the goroutine that turns the raw PDU stream on
// a.conn into stateEvents on a.netCh. It runs until the connection is
// closed or a read fails.
func (a *association) startReader() {
	go func() {
		for {
			p, err := pdu.ReadPDU(a.conn, a.maxPDUSize)
			if err != nil {
				if err == io.EOF {
					a.netCh <- stateEvent{event: evt17}
				} else {
					glog.Infof("%s: failed to read PDU: %v", a.name, err)
					a.netCh <- stateEvent{event: evt19, err: err}
				}
				close(a.netCh)
				return
			}
			switch n := p.(type) {
			case *pdu.A_ASSOCIATE:
				if n.Type == pdu.PDUTypeA_ASSOCIATE_RQ {
					a.netCh <- stateEvent{event: evt06, pdu: n}
				} else {
					a.netCh <- stateEvent{event: evt03, pdu: n}
				}
			case *pdu.A_ASSOCIATE_RJ:
				a.netCh <- stateEvent{event: evt04, pdu: n}
			case *pdu.P_DATA_TF:
				a.netCh <- stateEvent{event: evt10, pdu: n}
			case *pdu.A_RELEASE_RQ:
				a.netCh <- stateEvent{event: evt12, pdu: n}
			case *pdu.A_RELEASE_RP:
				a.netCh <- stateEvent{event: evt13, pdu: n}
			case *pdu.A_ABORT:
				a.netCh <- stateEvent{event: evt16, pdu: n}
			default:
				a.netCh <- stateEvent{event: evt19, err: fmt.Errorf("unknown PDU type %v", p)}
			}
		}
	}()
}

func (a *association) sendPDU(p pdu.PDU) error {
	data, err := pdu.EncodePDU(p)
	if err != nil {
		return err
	}
	if _, err := a.conn.Write(data); err != nil {
		return err
	}
	return nil
}

func (a *association) startTimer(d time.Duration) {
	ch := make(chan stateEvent, 1)
	a.timerCh = ch
	time.AfterFunc(d, func() {
		ch <- stateEvent{event: evt18}
		close(ch)
	})
}

func (a *association) stopTimer() {
	a.timerCh = make(chan stateEvent, 1)
}

// close tears down the transport connection and the upcall channel.
// It must be called at most once per association.
func (a *association) close() {
	if a.conn != nil {
		a.conn.Close()
	}
	close(a.upcallCh)
}

// abort sends a best-effort A-ABORT PDU and closes the association.
func (a *association) abort(err error) {
	glog.Infof("%s: aborting: %v", a.name, err)
	if a.conn != nil {
		if data, encErr := pdu.EncodePDU(&pdu.A_ABORT{Source: 0, Reason: 0}); encErr == nil {
			a.conn.Write(data)
		}
	}
	a.state = stClosed
	a.close()
}

func (a *association) unexpected(e stateEvent) {
	a.abort(fmt.Errorf("unexpected event %v in state %v", e, a.state))
}

// nextEvent blocks until a stateEvent is available from the network,
// the downcall channel, or the ARTIM/idle timer. A closed netCh or
// timerCh is nilled out of the select so it's never chosen again.
func (a *association) nextEvent() stateEvent {
	for {
		select {
		case e, ok := <-a.netCh:
			if !ok {
				a.netCh = nil
				continue
			}
			return e
		case e := <-a.downcallCh:
			return e
		case e, ok := <-a.timerCh:
			if !ok {
				a.timerCh = nil
				continue
			}
			return e
		}
	}
}

// encodeCommandBytes encodes msg as an Implicit VR Little Endian
// command set, per P3.7 6.3.1.
func encodeCommandBytes(msg dimse.Message) ([]byte, error) {
	e := dicomio.NewEncoder(binary.LittleEndian, dicomio.ImplicitVR)
	dimse.EncodeMessage(e, msg)
	return e.Finish()
}

// buildDataPDUs splits commandBytes, then dataBytes (if any), into a
// sequence of P-DATA-TF PDUs on the presentation context registered
// for abstractSyntaxName, bounded by maxPDUSize-sized PresentationDataValue
// chunks. The last chunk of each half has its Last bit set.
func buildDataPDUs(cm *contextManager, maxPDUSize int, abstractSyntaxName string, commandBytes, dataBytes []byte) ([]pdu.P_DATA_TF, error) {
	context, err := cm.lookupByAbstractSyntaxUID(abstractSyntaxName)
	if err != nil {
		return nil, err
	}
	// Six bytes of PresentationDataValue item overhead per chunk: the
	// 4-byte item length, the context ID and the message control header.
	maxChunkSize := maxPDUSize - 6
	if maxChunkSize <= 0 {
		return nil, fmt.Errorf("maxPDUSize %d too small", maxPDUSize)
	}
	var pdus []pdu.P_DATA_TF
	chunk := func(b []byte, command bool) {
		for first := true; len(b) > 0 || first; first = false {
			n := len(b)
			if n > maxChunkSize {
				n = maxChunkSize
			}
			v := b[:n]
			b = b[n:]
			pdus = append(pdus, pdu.P_DATA_TF{Items: []pdu.PresentationDataValueItem{{
				ContextID: context.contextID,
				Command:   command,
				Last:      len(b) == 0,
				Value:     v,
			}}})
		}
	}
	chunk(commandBytes, true)
	if len(dataBytes) > 0 {
		chunk(dataBytes, false)
	}
	return pdus, nil
}

func runStep(a *association, e stateEvent) {
	switch a.state {
	case stAwaitingRQ:
		a.runAwaitingRQStep(e)
	case stAwaitingAC:
		a.runAwaitingACStep(e)
	case stAssociated:
		a.runAssociatedStep(e)
	case stAwaitingReleaseRP:
		a.runAwaitingReleaseRPStep(e)
	}
}

// runAwaitingRQStep runs the acceptor side of the handshake: decide
// whether to accept the peer's A-ASSOCIATE-RQ, and if so send the AC
// and move to ASSOCIATED. There's no separate wait inside
// AWAITING_AC_DECISION since the decision (presentation context
// negotiation) is synchronous; the state exists for naming symmetry
// with the spec, not because this implementation suspends there.
func (a *association) runAwaitingRQStep(e stateEvent) {
	switch e.event {
	case evt06:
		a.stopTimer()
		a.state = stAwaitingACDecision
		rq := e.pdu.(*pdu.A_ASSOCIATE)
		if rq.ProtocolVersion != pdu.CurrentProtocolVersion {
			a.sendPDU(&pdu.A_ASSOCIATE_RJ{
				Result: pdu.ResultRejectedPermanent,
				Source: pdu.SourceULServiceProviderACSE,
				Reason: pdu.ReasonNoReasonGiven,
			})
			a.abort(dicomerr.NewNegotiationError(pdu.SourceULServiceProviderACSE, pdu.ReasonNoReasonGiven,
				fmt.Sprintf("unsupported protocol version 0x%x", rq.ProtocolVersion)))
			return
		}
		items, err := a.cm.onAssociateRequest(rq.Items, a.maxPDUSize)
		if err != nil {
			glog.Errorf("%s: rejecting association: %v", a.name, err)
			a.sendPDU(&pdu.A_ASSOCIATE_RJ{
				Result: pdu.ResultRejectedPermanent,
				Source: pdu.SourceULServiceProviderACSE,
				Reason: pdu.ReasonNoReasonGiven,
			})
			a.abort(dicomerr.NewNegotiationError(pdu.SourceULServiceProviderACSE, pdu.ReasonNoReasonGiven, err.Error()))
			return
		}
		if err := a.sendPDU(&pdu.A_ASSOCIATE{
			Type:            pdu.PDUTypeA_ASSOCIATE_AC,
			ProtocolVersion: pdu.CurrentProtocolVersion,
			CalledAETitle:   rq.CalledAETitle,
			CallingAETitle:  rq.CallingAETitle,
			Items:           items,
		}); err != nil {
			a.abort(err)
			return
		}
		a.state = stAssociated
		a.upcallCh <- upcallEvent{eventType: upcallEventHandshakeCompleted, cm: a.cm}
		a.startTimer(idleTimeout)
	case evt16, evt17:
		a.state = stClosed
		a.close()
	case evt18:
		a.abort(fmt.Errorf("timed out waiting for A-ASSOCIATE-RQ"))
	default:
		a.unexpected(e)
	}
}

// runAwaitingACStep runs the requestor side of the handshake.
func (a *association) runAwaitingACStep(e stateEvent) {
	switch e.event {
	case evt03:
		a.stopTimer()
		ac := e.pdu.(*pdu.A_ASSOCIATE)
		if err := a.cm.onAssociateResponse(ac.Items); err != nil {
			a.abort(err)
			return
		}
		a.state = stAssociated
		a.upcallCh <- upcallEvent{eventType: upcallEventHandshakeCompleted, cm: a.cm}
		a.startTimer(idleTimeout)
	case evt04:
		glog.Infof("%s: association rejected by peer", a.name)
		a.state = stClosed
		a.close()
	case evt16, evt17:
		a.state = stClosed
		a.close()
	case evt18:
		a.abort(fmt.Errorf("timed out waiting for A-ASSOCIATE-AC"))
	default:
		a.unexpected(e)
	}
}

// runAssociatedStep handles P-DATA-TF exchange and release/abort
// initiation. It is identical for both roles once ASSOCIATED.
func (a *association) runAssociatedStep(e stateEvent) {
	switch e.event {
	case evt09:
		p := e.dimsePayload
		commandBytes, err := encodeCommandBytes(p.command)
		if err != nil {
			a.abort(err)
			return
		}
		pdus, err := buildDataPDUs(a.cm, a.cm.peerMaxPDUSize, p.abstractSyntaxName, commandBytes, p.data)
		if err != nil {
			a.abort(err)
			return
		}
		for i := range pdus {
			if err := a.sendPDU(&pdus[i]); err != nil {
				a.abort(err)
				return
			}
		}
		a.startTimer(idleTimeout)
	case evt10:
		p := e.pdu.(*pdu.P_DATA_TF)
		contextID, command, data, err := a.assembler.AddDataPDU(p)
		if err != nil {
			a.abort(err)
			return
		}
		if command != nil {
			a.upcallCh <- upcallEvent{eventType: upcallEventData, cm: a.cm, contextID: contextID, command: command, data: data}
		}
		a.startTimer(idleTimeout)
	case evt11:
		if err := a.sendPDU(&pdu.A_RELEASE_RQ{}); err != nil {
			a.abort(err)
			return
		}
		a.state = stAwaitingReleaseRP
		a.startTimer(requestTimeout)
	case evt12:
		// Peer asked to release; auto-accept (this library never
		// refuses a release) and close.
		a.sendPDU(&pdu.A_RELEASE_RP{})
		a.state = stReleased
		a.close()
	case evt16:
		glog.Infof("%s: received A-ABORT from peer", a.name)
		a.state = stClosed
		a.close()
	case evt17:
		a.state = stClosed
		a.close()
	case evt18:
		a.abort(fmt.Errorf("association idle for %v", idleTimeout))
	case evt19:
		a.abort(e.err)
	default:
		a.unexpected(e)
	}
}

// runAwaitingReleaseRPStep waits for the peer's A-RELEASE-RP after we
// asked to release. A colliding A-RELEASE-RQ from the peer (P3.8
// sta08-12) is acknowledged implicitly: we ignore it and keep waiting
// for our own RP, since the peer will see our RQ and respond in kind.
func (a *association) runAwaitingReleaseRPStep(e stateEvent) {
	switch e.event {
	case evt13:
		a.stopTimer()
		a.state = stReleased
		a.close()
	case evt12:
		// Release collision: keep waiting for our own A-RELEASE-RP.
	case evt16, evt17:
		a.state = stClosed
		a.close()
	case evt18:
		a.abort(fmt.Errorf("timed out waiting for A-RELEASE-RP"))
	default:
		a.unexpected(e)
	}
}

// runStateMachineForServiceProvider drives the acceptor side of one
// association, reading from and writing to conn until it's released
// or aborted.
func runStateMachineForServiceProvider(conn net.Conn, upcallCh chan upcallEvent, downcallCh chan stateEvent) {
	a := newAssociation(fmt.Sprintf("sm(p)-%d", atomic.AddInt32(&smSeq, 1)), false, upcallCh, downcallCh)
	a.conn = conn
	a.state = stAwaitingRQ
	a.startReader()
	a.startTimer(requestTimeout)
	for a.state != stReleased && a.state != stClosed {
		runStep(a, a.nextEvent())
	}
	glog.V(1).Infof("%s: connection shutdown, final state %v", a.name, a.state)
}

// runStateMachineForServiceUser drives the requestor side of one
// association. It blocks on downcallCh for the transport connection
// that ServiceUser.Connect/SetConn hands it (evt02), or the dial
// failure (evt17), before it ever touches the network.
func runStateMachineForServiceUser(params ServiceUserParams, upcallCh chan upcallEvent, downcallCh chan stateEvent) {
	a := newAssociation(fmt.Sprintf("sm(u)-%d", atomic.AddInt32(&smSeq, 1)), true, upcallCh, downcallCh)
	first := <-downcallCh
	switch first.event {
	case evt17:
		glog.Infof("%s: failed to connect: %v", a.name, first.err)
		close(upcallCh)
		return
	case evt02:
		a.conn = first.conn
	default:
		glog.Fatalf("%s: unexpected first event %v", a.name, first)
	}
	a.startReader()
	items := a.cm.generateAssociateRequest(params.RequiredServices, params.SupportedTransferSyntaxes, a.maxPDUSize)
	if err := a.sendPDU(&pdu.A_ASSOCIATE{
		Type:            pdu.PDUTypeA_ASSOCIATE_RQ,
		ProtocolVersion: pdu.CurrentProtocolVersion,
		CalledAETitle:   params.CalledAETitle,
		CallingAETitle:  params.CallingAETitle,
		Items:           items,
	}); err != nil {
		a.abort(err)
		return
	}
	a.state = stAwaitingAC
	a.startTimer(requestTimeout)
	for a.state != stReleased && a.state != stClosed {
		runStep(a, a.nextEvent())
	}
	glog.V(1).Infof("%s: connection shutdown, final state %v", a.name, a.state)
}

// runCStoreOnAssociation issues one C-STORE-RQ for ds over an
// already-associated connection (cm, upcallCh, downcallCh identify
// the command slot reserved for messageID) and blocks for the
// matching C-STORE-RSP. Used both by ServiceUser.CStore and, for
// C-GET, by the provider to push sub-operation results back over the
// same connection that asked for them.
func runCStoreOnAssociation(upcallCh chan upcallEvent, downcallCh chan stateEvent, cm *contextManager, messageID uint16, ds *dicom.DataSet) error {
	sopClassUIDElem, err := ds.FindElementByTag(dicom.TagMediaStorageSOPClassUID)
	if err != nil {
		return err
	}
	sopClassUID, err := sopClassUIDElem.GetString()
	if err != nil {
		return err
	}
	sopInstanceUIDElem, err := ds.FindElementByTag(dicom.TagMediaStorageSOPInstanceUID)
	if err != nil {
		return err
	}
	sopInstanceUID, err := sopInstanceUIDElem.GetString()
	if err != nil {
		return err
	}
	context, err := cm.lookupByAbstractSyntaxUID(sopClassUID)
	if err != nil {
		return err
	}
	dataEncoder := dicomio.NewBytesEncoderWithTransferSyntax(context.transferSyntaxUID)
	for _, elem := range ds.Elements {
		if elem.Tag.Group == dicom.TagMetadataGroup {
			// File-meta elements don't travel in the data set; the two
			// relevant values already went out as command fields above.
			continue
		}
		dicom.WriteElement(dataEncoder, elem)
	}
	if err := dataEncoder.Error(); err != nil {
		return err
	}
	downcallCh <- stateEvent{
		event: evt09,
		dimsePayload: &stateEventDIMSEPayload{
			abstractSyntaxName: context.abstractSyntaxUID,
			command: &dimse.C_STORE_RQ{
				AffectedSOPClassUID:    context.abstractSyntaxUID,
				MessageID:              messageID,
				CommandDataSetType:     dimse.CommandDataSetTypeNonNull,
				AffectedSOPInstanceUID: sopInstanceUID,
			},
			data: dataEncoder.Bytes(),
		},
	}
	event, ok := <-upcallCh
	if !ok {
		return fmt.Errorf("C-STORE: connection closed while waiting for response")
	}
	resp, ok := event.command.(*dimse.C_STORE_RSP)
	if !ok {
		return fmt.Errorf("C-STORE: unexpected response %v", event.command)
	}
	if resp.Status.Status != dimse.StatusSuccess {
		return fmt.Errorf("C-STORE failed: %v", resp.Status)
	}
	return nil
}
