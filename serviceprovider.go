// This file defines ServiceProvider (i.e., a DICOM server).

package netdicom

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/golang/glog"
	"github.com/kcenon/pacsgo/dimse"
	"github.com/kcenon/pacsgo/sopclass"
	"github.com/yasushi-saito/go-dicom"
	"github.com/yasushi-saito/go-dicom/dicomio"
	"golang.org/x/sync/semaphore"
)

// Per-TCP-connection state for dispatching commands.
type providerCommandDispatcher struct {
	downcallCh chan stateEvent // for sending PDUs to the statemachine.
	params     ServiceProviderParams

	mu             sync.Mutex
	activeCommands map[uint16]*providerCommandState // guarded by mu
}

func (dc *providerCommandDispatcher) findOrCreateCommand(
	messageID uint16,
	cm *contextManager,
	context contextManagerEntry) (*providerCommandState, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if cs, ok := dc.activeCommands[messageID]; ok {
		return cs, true
	}
	cs := &providerCommandState{
		parent:    dc,
		messageID: messageID,
		cm:        cm,
		context:   context,
		upcallCh:  make(chan upcallEvent, 128),
	}
	dc.activeCommands[messageID] = cs
	glog.V(1).Infof("Start provider command %v", messageID)
	return cs, false
}

func (dc *providerCommandDispatcher) deleteCommand(cs *providerCommandState) {
	dc.mu.Lock()
	glog.V(1).Infof("Finish provider command %v", cs.messageID)
	if _, ok := dc.activeCommands[cs.messageID]; !ok {
		panic(fmt.Sprintf("cs %+v", cs))
	}
	delete(dc.activeCommands, cs.messageID)
	dc.mu.Unlock()
}

// Per-command-invocation state.
type providerCommandState struct {
	parent    *providerCommandDispatcher // parent dispatcher
	messageID uint16                     // PROVIDER MessageID
	context   contextManagerEntry        // the transfersyntax/sopclass for this command.
	cm        *contextManager            // For looking up context -> transfersyntax/sopclass mappings

	// upcallCh streams PROVIDER command+data for the given messageID.
	upcallCh chan upcallEvent
}

func (cs *providerCommandState) handleCStore(c *dimse.C_STORE_RQ, data []byte) {
	status := dimse.Status{Status: dimse.StatusUnrecognizedOperation}
	if cs.parent.params.CStore != nil {
		status = cs.parent.params.CStore(
			cs.context.transferSyntaxUID,
			c.AffectedSOPClassUID,
			c.AffectedSOPInstanceUID,
			data)
	}
	resp := &dimse.C_STORE_RSP{
		AffectedSOPClassUID:       c.AffectedSOPClassUID,
		MessageIDBeingRespondedTo: c.MessageID,
		CommandDataSetType:        dimse.CommandDataSetTypeNull,
		AffectedSOPInstanceUID:    c.AffectedSOPInstanceUID,
		Status:                    status,
	}
	cs.sendMessage(resp, nil)
}

func (cs *providerCommandState) handleCFind(c *dimse.C_FIND_RQ, data []byte) {
	if cs.parent.params.CFind == nil {
		cs.sendMessage(&dimse.C_FIND_RSP{
			AffectedSOPClassUID:       c.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: c.MessageID,
			CommandDataSetType:        dimse.CommandDataSetTypeNull,
			Status:                    dimse.Status{Status: dimse.StatusUnrecognizedOperation, ErrorComment: "No callback found for C-FIND"},
		}, nil)
		return
	}
	elems, err := readElementsInBytes(data, cs.context.transferSyntaxUID)
	if err != nil {
		cs.sendMessage(&dimse.C_FIND_RSP{
			AffectedSOPClassUID:       c.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: c.MessageID,
			CommandDataSetType:        dimse.CommandDataSetTypeNull,
			Status:                    dimse.Status{Status: dimse.StatusUnrecognizedOperation, ErrorComment: err.Error()},
		}, nil)
		return
	}
	glog.V(1).Infof("C-FIND-RQ payload: %s", elementsString(elems))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go cs.watchForCancel(cancel, done)

	status := dimse.Status{Status: dimse.StatusSuccess}
	responseCh := cs.parent.params.CFind(ctx, cs.context.transferSyntaxUID, c.AffectedSOPClassUID, elems)
loop:
	for {
		select {
		case resp, ok := <-responseCh:
			if !ok {
				break loop
			}
			if resp.Err != nil {
				status = dimse.Status{
					Status:       dimse.CFindUnableToProcess,
					ErrorComment: resp.Err.Error(),
				}
				break loop
			}
			glog.V(1).Infof("C-FIND-RSP: %s", elementsString(resp.Elements))
			payload, err := writeElementsToBytes(resp.Elements, cs.context.transferSyntaxUID)
			if err != nil {
				glog.Errorf("C-FIND: encode error %v", err)
				status = dimse.Status{
					Status:       dimse.CFindUnableToProcess,
					ErrorComment: err.Error(),
				}
				break loop
			}
			cs.sendMessage(&dimse.C_FIND_RSP{
				AffectedSOPClassUID:       c.AffectedSOPClassUID,
				MessageIDBeingRespondedTo: c.MessageID,
				CommandDataSetType:        dimse.CommandDataSetTypeNonNull,
				Status:                    dimse.Status{Status: dimse.StatusPending},
			}, payload)
		case <-ctx.Done():
			glog.V(1).Infof("C-FIND: canceled by C-CANCEL-RQ, message %d", c.MessageID)
			status = dimse.CancelStatus()
			break loop
		}
	}
	cs.sendMessage(&dimse.C_FIND_RSP{
		AffectedSOPClassUID:       c.AffectedSOPClassUID,
		MessageIDBeingRespondedTo: c.MessageID,
		CommandDataSetType:        dimse.CommandDataSetTypeNull,
		Status:                    status}, nil)
	// Drain the responses in case of errors
	for _ = range responseCh {
	}
}

func (cs *providerCommandState) handleCMove(c *dimse.C_MOVE_RQ, data []byte) {
	sendError := func(err error) {
		cs.sendMessage(&dimse.C_MOVE_RSP{
			AffectedSOPClassUID:       c.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: c.MessageID,
			CommandDataSetType:        dimse.CommandDataSetTypeNull,
			Status:                    dimse.Status{Status: dimse.StatusUnrecognizedOperation, ErrorComment: err.Error()},
		}, nil)
	}
	if cs.parent.params.CMove == nil {
		cs.sendMessage(&dimse.C_MOVE_RSP{
			AffectedSOPClassUID:       c.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: c.MessageID,
			CommandDataSetType:        dimse.CommandDataSetTypeNull,
			Status:                    dimse.Status{Status: dimse.StatusUnrecognizedOperation, ErrorComment: "No callback found for C-MOVE"},
		}, nil)
		return
	}
	remoteHostPort, ok := cs.parent.params.RemoteAEs[c.MoveDestination]
	if !ok {
		sendError(fmt.Errorf("C-MOVE destination '%v' not registered in the server", c.MoveDestination))
		return
	}
	elems, err := readElementsInBytes(data, cs.context.transferSyntaxUID)
	if err != nil {
		sendError(err)
		return
	}
	glog.V(1).Infof("C-MOVE-RQ payload: %s", elementsString(elems))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go cs.watchForCancel(cancel, done)

	responseCh := cs.parent.params.CMove(ctx, cs.context.transferSyntaxUID, c.AffectedSOPClassUID, elems)
	status := dimse.Status{Status: dimse.StatusSuccess}
	var numSuccesses, numFailures uint16
loop:
	for {
		select {
		case resp, ok := <-responseCh:
			if !ok {
				break loop
			}
			if resp.Err != nil {
				status = dimse.Status{
					Status:       dimse.CFindUnableToProcess,
					ErrorComment: resp.Err.Error(),
				}
				break loop
			}
			glog.Infof("C-MOVE: Sending %v to %v(%s)", resp.Path, c.MoveDestination, remoteHostPort)
			err := runCStoreOnNewAssociation(cs.parent.params.AETitle, c.MoveDestination, remoteHostPort, resp.DataSet)
			if err != nil {
				glog.Errorf("C-MOVE: C-store of %v to %v(%v) failed: %v", resp.Path, c.MoveDestination, remoteHostPort, err)
				numFailures++
			} else {
				numSuccesses++
			}
			cs.sendMessage(&dimse.C_MOVE_RSP{
				AffectedSOPClassUID:            c.AffectedSOPClassUID,
				MessageIDBeingRespondedTo:      c.MessageID,
				CommandDataSetType:             dimse.CommandDataSetTypeNull,
				NumberOfRemainingSuboperations: uint16(resp.Remaining),
				NumberOfCompletedSuboperations: numSuccesses,
				NumberOfFailedSuboperations:    numFailures,
				Status: dimse.Status{Status: dimse.StatusPending},
			}, nil)
		case <-ctx.Done():
			glog.V(1).Infof("C-MOVE: canceled by C-CANCEL-RQ, message %d", c.MessageID)
			status = dimse.CancelStatus()
			break loop
		}
	}
	cs.sendMessage(&dimse.C_MOVE_RSP{
		AffectedSOPClassUID:            c.AffectedSOPClassUID,
		MessageIDBeingRespondedTo:      c.MessageID,
		CommandDataSetType:             dimse.CommandDataSetTypeNull,
		NumberOfCompletedSuboperations: numSuccesses,
		NumberOfFailedSuboperations:    numFailures,
		Status: status}, nil)
	// Drain the responses in case of errors
	for _ = range responseCh {
	}
}

func (cs *providerCommandState) handleCGet(c *dimse.C_GET_RQ, data []byte) {
	sendError := func(err error) {
		cs.sendMessage(&dimse.C_GET_RSP{
			AffectedSOPClassUID:       c.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: c.MessageID,
			CommandDataSetType:        dimse.CommandDataSetTypeNull,
			Status:                    dimse.Status{Status: dimse.StatusUnrecognizedOperation, ErrorComment: err.Error()},
		}, nil)
	}
	if cs.parent.params.CGet == nil {
		cs.sendMessage(&dimse.C_GET_RSP{
			AffectedSOPClassUID:       c.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: c.MessageID,
			CommandDataSetType:        dimse.CommandDataSetTypeNull,
			Status:                    dimse.Status{Status: dimse.StatusUnrecognizedOperation, ErrorComment: "No callback found for C-GET"},
		}, nil)
		return
	}
	elems, err := readElementsInBytes(data, cs.context.transferSyntaxUID)
	if err != nil {
		sendError(err)
		return
	}
	glog.V(1).Infof("C-GET-RQ payload: %s", elementsString(elems))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go cs.watchForCancel(cancel, done)

	responseCh := cs.parent.params.CGet(ctx, cs.context.transferSyntaxUID, c.AffectedSOPClassUID, elems)
	status := dimse.Status{Status: dimse.StatusSuccess}
	var numSuccesses, numFailures uint16
loop:
	for {
		select {
		case resp, ok := <-responseCh:
			if !ok {
				break loop
			}
			if resp.Err != nil {
				status = dimse.Status{
					Status:       dimse.CFindUnableToProcess,
					ErrorComment: resp.Err.Error(),
				}
				break loop
			}
			subCs, found := cs.parent.findOrCreateCommand(dimse.NewMessageID(), cs.cm, cs.context /*not used*/)
			glog.Infof("C-GET: Sending %v using subcommand wl id:%d", resp.Path, subCs.messageID)
			if found {
				panic(subCs)
			}
			err := runCStoreOnAssociation(subCs.upcallCh, subCs.parent.downcallCh, subCs.cm, subCs.messageID, resp.DataSet)
			glog.Infof("C-GET: Done sending %v using subcommand wl id:%d: %v", resp.Path, subCs.messageID, err)
			defer cs.parent.deleteCommand(subCs)
			if err != nil {
				glog.Errorf("C-GET: C-store of %v failed: %v", resp.Path, err)
				numFailures++
			} else {
				glog.Infof("C-GET: Sent %v", resp.Path)
				numSuccesses++
			}
			cs.sendMessage(&dimse.C_GET_RSP{
				AffectedSOPClassUID:            c.AffectedSOPClassUID,
				MessageIDBeingRespondedTo:      c.MessageID,
				CommandDataSetType:             dimse.CommandDataSetTypeNull,
				NumberOfRemainingSuboperations: uint16(resp.Remaining),
				NumberOfCompletedSuboperations: numSuccesses,
				NumberOfFailedSuboperations:    numFailures,
				Status: dimse.Status{Status: dimse.StatusPending},
			}, nil)
		case <-ctx.Done():
			glog.V(1).Infof("C-GET: canceled by C-CANCEL-RQ, message %d", c.MessageID)
			status = dimse.CancelStatus()
			break loop
		}
	}
	cs.sendMessage(&dimse.C_GET_RSP{
		AffectedSOPClassUID:            c.AffectedSOPClassUID,
		MessageIDBeingRespondedTo:      c.MessageID,
		CommandDataSetType:             dimse.CommandDataSetTypeNull,
		NumberOfCompletedSuboperations: numSuccesses,
		NumberOfFailedSuboperations:    numFailures,
		Status: status}, nil)
	// Drain the responses in case of errors
	for _ = range responseCh {
	}
}

func (cs *providerCommandState) handleCEcho(c *dimse.C_ECHO_RQ) {
	status := dimse.Status{Status: dimse.StatusUnrecognizedOperation}
	if cs.parent.params.CEcho != nil {
		status = cs.parent.params.CEcho()
	}
	resp := &dimse.C_ECHO_RSP{
		MessageIDBeingRespondedTo: c.MessageID,
		CommandDataSetType:        dimse.CommandDataSetTypeNull,
		Status:                    status,
	}
	cs.sendMessage(resp, nil)
}

// watchForCancel calls cancel if a C-CANCEL-RQ targeting this command arrives
// on upcallCh before the command finishes on its own, signaled by done being
// closed. handleEvent forwards a cancel here because it is routed to an
// already-active providerCommandState (see handleEvent's "found" branch)
// rather than treated as a new command.
func (cs *providerCommandState) watchForCancel(cancel context.CancelFunc, done <-chan struct{}) {
	select {
	case event, ok := <-cs.upcallCh:
		if ok {
			if _, isCancel := event.command.(*dimse.C_CANCEL_RQ); isCancel {
				glog.V(1).Infof("Canceling command %v on C-CANCEL-RQ", cs.messageID)
				cancel()
			}
		}
	case <-done:
	}
}

func (cs *providerCommandState) sendMessage(resp dimse.Message, data []byte) {
	glog.V(1).Infof("Sending PROVIDER message: %v %v", resp, cs.parent)
	payload := &stateEventDIMSEPayload{
		abstractSyntaxName: cs.context.abstractSyntaxUID,
		command:            resp,
		data:               data,
	}
	cs.parent.downcallCh <- stateEvent{
		event:        evt09,
		pdu:          nil,
		conn:         nil,
		dimsePayload: payload,
	}
}

type ServiceProviderParams struct {
	// The application-entity title of the server. Must be nonempty
	AETitle string

	// Names of remote AEs and their host:ports. Used only by C-MOVE. This
	// map should be nonempty iff the server supports CMove.
	RemoteAEs map[string]string

	// Called on C_ECHO request. If nil, a C-ECHO call will produce an error response.
	//
	// TODO(saito) Support a default C-ECHO callback?
	CEcho CEchoCallback

	// Called on C_FIND request.
	// If CFindCallback=nil, a C-FIND call will produce an error response.
	CFind CFindCallback

	// CMove is called on C_MOVE request.
	CMove CMoveCallback

	// CGet is called on C_GET request. The only difference between cmove
	// and cget is that cget uses the same connection to send images back to
	// the requester. Generally you shuold set the same function to CMove
	// and CGet.
	CGet CMoveCallback

	// If CStoreCallback=nil, a C-STORE call will produce an error response.
	CStore CStoreCallback

	// MaxConcurrentAssociations bounds how many associations this provider
	// services at once; Accept blocks once the bound is reached until a
	// running association finishes. Zero or negative means unbounded.
	MaxConcurrentAssociations int

	// MPPSCreate handles N-CREATE against the MPPS SOP class. If nil, an
	// N-CREATE request produces an error response.
	MPPSCreate MPPSCreateCallback

	// MPPSSet handles N-SET against the MPPS SOP class. If nil, an N-SET
	// request produces an error response.
	MPPSSet MPPSSetCallback
}

const DefaultMaxPDUSize = 4 << 20

// CStoreCallback is called C-STORE request.  sopInstanceUID are the IDs of the
// data.  sopClassUID is the data type requested
// (e.g.,"1.2.840.10008.5.1.4.1.1.1.2"), and transferSyntaxUID is the data
// encoding requested (e.g., "1.2.840.10008.1.2.1").  These args come from the
// request packat.
//
// "data" is the payload, i.e., a sequence of serialized
// dicom.DataElement objects.  Note that "data" usually does not contain
// metadata elements (elements whose tag.group=2 -- those include
// TransferSyntaxUID and MediaStorageSOPClassUID), since they are
// stripped by the requstor (two key metadata are passed as
// sop{Class,Instance)UID).
//
// The handler should store encode the sop{Class,InstanceUID} as the
//DICOM header, followed by data. It should return either dimse.Success()
//on success, or a dimse.Status carrying a failure code.
type CStoreCallback func(
	transferSyntaxUID string,
	sopClassUID string,
	sopInstanceUID string,
	data []byte) dimse.Status

// CFindCallback implements a C-FIND handler.  sopClassUID is the data type
// requested (e.g.,"1.2.840.10008.5.1.4.1.1.1.2"), and transferSyntaxUID is the
// data encoding requested (e.g., "1.2.840.10008.1.2.1").  hese args come from
// the request packat.
//
// This function should create and return a
// channel that streams CFindResult objects. To report a matched DICOM dataset,
// the callback should send one CFindResult with nonempty Elements field. To
// report multiple DICOM-dataset matches, the callback should send multiple
// CFindResult objects, one for each dataset.  The callback must close the
// channel after it produces all the responses.
//
// ctx is canceled when a C-CANCEL-RQ arrives for this operation. A callback
// that streams matches incrementally should select on ctx.Done() and close
// its channel promptly rather than running the match to completion.
type CFindCallback func(
	ctx context.Context,
	transferSyntaxUID string,
	sopClassUID string,
	filters []*dicom.Element) chan CFindResult

// CMoveCallback implements C-MOVE or C-GET handler.  sopClassUID is the data
// type requested (e.g.,"1.2.840.10008.5.1.4.1.1.1.2"), and transferSyntaxUID is
// the data encoding requested (e.g., "1.2.840.10008.1.2.1").  hese args come
// from the request packat.
//
// On return, it should return a channel that streams
// datasets to be sent to the remote client.  The callback must close the
// channel after it produces all the datasets.
//
// ctx is canceled when a C-CANCEL-RQ arrives for this operation; see
// CFindCallback.
type CMoveCallback func(
	ctx context.Context,
	transferSyntaxUID string,
	sopClassUID string,
	filters []*dicom.Element) chan CMoveResult

// CEchoCallback implements C-ECHO callback. It typically just returns
// dimse.Success.
type CEchoCallback func() dimse.Status

// ServiceProvider encapsulates the state for DICOM server (provider).
type ServiceProvider struct {
	params ServiceProviderParams
	admission *semaphore.Weighted // nil when MaxConcurrentAssociations <= 0
}

func writeElementsToBytes(elems []*dicom.Element, transferSyntaxUID string) ([]byte, error) {
	dataEncoder := dicomio.NewBytesEncoderWithTransferSyntax(transferSyntaxUID)
	for _, elem := range elems {
		dicom.WriteElement(dataEncoder, elem)
	}
	if err := dataEncoder.Error(); err != nil {
		return nil, err
	}
	return dataEncoder.Bytes(), nil
}

func readElementsInBytes(data []byte, transferSyntaxUID string) ([]*dicom.Element, error) {
	decoder := dicomio.NewBytesDecoderWithTransferSyntax(data, transferSyntaxUID)
	var elems []*dicom.Element
	for decoder.Len() > 0 {
		elem := dicom.ReadElement(decoder, dicom.ReadOptions{})
		glog.V(1).Infof("C-FIND: Read elem: %v, err %v", elem, decoder.Error())
		if decoder.Error() != nil {
			break
		}
		elems = append(elems, elem)
	}
	if decoder.Error() != nil {
		return nil, decoder.Error()
	}
	return elems, nil
}

func elementsString(elems []*dicom.Element) string {
	s := "["
	for i, elem := range elems {
		if i > 0 {
			s += ", "
		}
		s += elem.String()
	}
	return s + "]"
}

// Send "ds" to remoteHostPort using C-STORE. Called as part of C-MOVE.
func runCStoreOnNewAssociation(myAETitle, remoteAETitle, remoteHostPort string, ds *dicom.DataSet) error {
	params, err := NewServiceUserParams(remoteAETitle, myAETitle, sopclass.StorageClasses, nil)
	if err != nil {
		return err
	}
	su := NewServiceUser(params)
	defer su.Release()
	su.Connect(remoteHostPort)
	err = su.CStore(ds)
	glog.V(1).Infof("C-STORE subop done: %v", err)
	return err
}

func (dh *providerCommandDispatcher) handleEvent(event upcallEvent) {
	context, err := event.cm.lookupByContextID(event.contextID)
	if err != nil {
		glog.Infof("Invalid context ID %d: %v", event.contextID, err)
		dh.downcallCh <- stateEvent{event: evt19, pdu: nil, err: err}
		return
	}
	messageID := event.command.GetMessageID()
	dc, found := dh.findOrCreateCommand(messageID, event.cm, context)
	if found {
		glog.V(1).Infof("Forwarding command to existing command: %+v", event.command, dc)
		dc.upcallCh <- event
		glog.V(1).Infof("Done forwarding command to existing command: %+v", event.command, dc)
		return
	}
	go func() {
		defer dh.deleteCommand(dc)
		switch c := event.command.(type) {
		case *dimse.C_STORE_RQ:
			dc.handleCStore(c, event.data)
		case *dimse.C_FIND_RQ:
			dc.handleCFind(c, event.data)
		case *dimse.C_MOVE_RQ:
			dc.handleCMove(c, event.data)
		case *dimse.C_GET_RQ:
			dc.handleCGet(c, event.data)
		case *dimse.C_ECHO_RQ:
			dc.handleCEcho(c)
		case *dimse.N_CREATE_RQ:
			dc.handleNCreate(c, event.data)
		case *dimse.N_SET_RQ:
			dc.handleNSet(c, event.data)
		default:
			// Includes a C-CANCEL-RQ whose target operation already finished:
			// findOrCreateCommand above never finds it (since the original
			// command deleted itself on completion), so it lands here as if
			// it were a brand new, unrecognized command. Either way this is a
			// per-association protocol error, not a process-wide fault: abort
			// just this association instead of taking down the whole server.
			glog.Errorf("Unknown or stale PROVIDER message type: %v", c)
			dh.downcallCh <- stateEvent{
				event: evt19,
				pdu:   nil,
				err:   fmt.Errorf("unrecognized or stale DIMSE command: %v", c),
			}
		}
	}()
}

// NewServiceProvider creates a new DICOM server object. Run() will actually
// start running the service.
func NewServiceProvider(params ServiceProviderParams) *ServiceProvider {
	sp := &ServiceProvider{params: params}
	if params.MaxConcurrentAssociations > 0 {
		sp.admission = semaphore.NewWeighted(int64(params.MaxConcurrentAssociations))
	}
	return sp
}

// RunProviderForConn runs a DICOM server on "conn". This function blocks
// until the association on "conn" ends.
func RunProviderForConn(conn net.Conn, params ServiceProviderParams) {
	upcallCh := make(chan upcallEvent, 128)
	dc := providerCommandDispatcher{
		downcallCh:     make(chan stateEvent, 128),
		params:         params,
		activeCommands: make(map[uint16]*providerCommandState),
	}

	go runStateMachineForServiceProvider(conn, upcallCh, dc.downcallCh)
	handshakeCompleted := false
	for event := range upcallCh {
		if event.eventType == upcallEventHandshakeCompleted {
			doassert(!handshakeCompleted)
			handshakeCompleted = true
			continue
		}
		doassert(event.eventType == upcallEventData)
		doassert(event.command != nil)
		doassert(handshakeCompleted == true)
		dc.handleEvent(event)
	}
	glog.V(2).Info("Finished provider")
}

// Run listens to incoming connections, accepts them, and runs the DICOM
// protocol. This function never returns unless it fails to listen.
// "listenAddr" is the TCP address to listen to. E.g., ":1234" will listen to
// port 1234 at all the IP address that this machine can bind to.
func (sp *ServiceProvider) Run(listenAddr string) error {
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	ctx := context.Background()
	for {
		conn, err := listener.Accept()
		if err != nil {
			glog.Errorf("Accept error: %v", err)
			continue
		}
		if sp.admission != nil {
			if err := sp.admission.Acquire(ctx, 1); err != nil {
				glog.Errorf("Admission control wait error: %v", err)
				conn.Close()
				continue
			}
			go func() {
				defer sp.admission.Release(1)
				RunProviderForConn(conn, sp.params)
			}()
			continue
		}
		go func() { RunProviderForConn(conn, sp.params) }()
	}
}
