package netdicom

import (
	"context"
	"testing"
	"time"

	"github.com/kcenon/pacsgo/dimse"
)

func TestWatchForCancelCancelsOnCCancelRQ(t *testing.T) {
	cs := &providerCommandState{messageID: 7, upcallCh: make(chan upcallEvent, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go cs.watchForCancel(cancel, done)
	defer close(done)

	cs.upcallCh <- upcallEvent{
		eventType: upcallEventData,
		command:   &dimse.C_CANCEL_RQ{MessageIDBeingRespondedTo: cs.messageID},
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("watchForCancel did not cancel on a C-CANCEL-RQ")
	}
}

func TestWatchForCancelIgnoresNonCancelCommands(t *testing.T) {
	cs := &providerCommandState{messageID: 7, upcallCh: make(chan upcallEvent, 1)}
	_, cancel := context.WithCancel(context.Background())
	canceled := make(chan struct{})
	done := make(chan struct{})
	go cs.watchForCancel(func() { close(canceled); cancel() }, done)

	cs.upcallCh <- upcallEvent{eventType: upcallEventData, command: &dimse.C_STORE_RQ{MessageID: cs.messageID}}
	close(done)
	select {
	case <-canceled:
		t.Errorf("watchForCancel canceled on a non-cancel command")
	case <-time.After(50 * time.Millisecond):
	}
}

// A late C-CANCEL-RQ targeting an operation that already finished looks, to
// handleEvent, exactly like a fresh, unrecognized command: findOrCreateCommand
// never finds it, since the original providerCommandState deleted itself on
// completion. This must abort only the one association, not crash the server.
func TestHandleEventAbortsAssociationOnStaleCCancelRQ(t *testing.T) {
	cm := testContextManager(1, "1.2.3.4", "1.2.840.10008.1.2.1")
	dh := &providerCommandDispatcher{
		downcallCh:     make(chan stateEvent, 1),
		activeCommands: make(map[uint16]*providerCommandState),
	}
	dh.handleEvent(upcallEvent{
		eventType: upcallEventData,
		cm:        cm,
		contextID: 1,
		command:   &dimse.C_CANCEL_RQ{MessageIDBeingRespondedTo: 42},
	})
	select {
	case ev := <-dh.downcallCh:
		if ev.event != evt19 {
			t.Errorf("event = %v, want evt19 (abort)", ev.event)
		}
	case <-time.After(time.Second):
		t.Fatal("handleEvent did not abort the association for a stale C-CANCEL-RQ")
	}
}
