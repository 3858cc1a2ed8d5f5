package netdicom

import (
	"testing"

	"github.com/kcenon/pacsgo/dimse"
)

func TestAssociationStateString(t *testing.T) {
	cases := []struct {
		s    associationState
		want string
	}{
		{stIdle, "IDLE"},
		{stAwaitingAC, "AWAITING_AC"},
		{stAwaitingRQ, "AWAITING_RQ"},
		{stAwaitingACDecision, "AWAITING_AC_DECISION"},
		{stAssociated, "ASSOCIATED"},
		{stAwaitingReleaseRP, "AWAITING_RELEASE_RP"},
		{stReleased, "RELEASED"},
		{stClosed, "CLOSED"},
		{associationState(99), "UNKNOWN"},
	}
	for _, c := range cases {
		if got := c.s.String(); got != c.want {
			t.Errorf("%d.String() = %q, want %q", c.s, got, c.want)
		}
	}
}

func testContextManager(contextID byte, abstractSyntaxUID, transferSyntaxUID string) *contextManager {
	cm := newContextManager()
	e := &contextManagerEntry{
		contextID:         contextID,
		abstractSyntaxUID: abstractSyntaxUID,
		transferSyntaxUID: transferSyntaxUID,
	}
	cm.contextIDToAbstractSyntaxNameMap[contextID] = e
	cm.abstractSyntaxNameToContextIDMap[abstractSyntaxUID] = e
	return cm
}

func TestEncodeCommandBytesProducesOutput(t *testing.T) {
	msg := &dimse.C_ECHO_RQ{MessageID: 0x1234, CommandDataSetType: dimse.CommandDataSetTypeNull}
	b, err := encodeCommandBytes(msg)
	if err != nil {
		t.Fatalf("encodeCommandBytes: %v", err)
	}
	if len(b) == 0 {
		t.Errorf("encodeCommandBytes produced no bytes")
	}
}

func TestBuildDataPDUsSingleChunk(t *testing.T) {
	cm := testContextManager(1, "1.2.3.4", "1.2.840.10008.1.2.1")
	pdus, err := buildDataPDUs(cm, 16384, "1.2.3.4", []byte("command"), []byte("data"))
	if err != nil {
		t.Fatalf("buildDataPDUs: %v", err)
	}
	// A short command and a short data payload each fit in a single PDV
	// chunk, but commandBytes and dataBytes are chunked independently, so
	// they land in two separate PDUs rather than sharing one.
	if len(pdus) != 2 {
		t.Fatalf("got %d PDUs, want 2 (one for the command, one for the data)", len(pdus))
	}
	if len(pdus[0].Items) != 1 || len(pdus[1].Items) != 1 {
		t.Fatalf("expected exactly one item per PDU")
	}
	if !pdus[0].Items[0].Command {
		t.Errorf("expected the first PDU's item to be the command chunk")
	}
	if pdus[1].Items[0].Command {
		t.Errorf("expected the second PDU's item to be the data chunk")
	}
	if !pdus[0].Items[0].Last || !pdus[1].Items[0].Last {
		t.Errorf("single-chunk items should have Last=true")
	}
}

func TestBuildDataPDUsFragmentsLargePayload(t *testing.T) {
	cm := testContextManager(1, "1.2.3.4", "1.2.840.10008.1.2.1")
	// maxPDUSize=2 leaves no room for value bytes after subtracting the
	// 6-byte PDV item overhead, which must be rejected rather than looping
	// forever.
	if _, err := buildDataPDUs(cm, 2, "1.2.3.4", []byte("x"), nil); err == nil {
		t.Errorf("buildDataPDUs with too-small maxPDUSize should fail")
	}

	command := make([]byte, 25)
	for i := range command {
		command[i] = byte(i)
	}
	pdus, err := buildDataPDUs(cm, 12, "1.2.3.4", command, nil)
	if err != nil {
		t.Fatalf("buildDataPDUs: %v", err)
	}
	var reassembled []byte
	for i, p := range pdus {
		if len(p.Items) != 1 {
			t.Fatalf("pdu %d: got %d items, want 1", i, len(p.Items))
		}
		reassembled = append(reassembled, p.Items[0].Value...)
		wantLast := i == len(pdus)-1
		if p.Items[0].Last != wantLast {
			t.Errorf("pdu %d: Last = %v, want %v", i, p.Items[0].Last, wantLast)
		}
	}
	if string(reassembled) != string(command) {
		t.Errorf("reassembled fragments = %v, want %v", reassembled, command)
	}
}

func TestBuildDataPDUsUnknownAbstractSyntax(t *testing.T) {
	cm := newContextManager()
	if _, err := buildDataPDUs(cm, 16384, "9.9.9.9", []byte("x"), nil); err == nil {
		t.Errorf("buildDataPDUs for an unregistered abstract syntax should fail")
	}
}
