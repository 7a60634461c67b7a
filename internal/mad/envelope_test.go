package mad

import (
	"bytes"
	"errors"
	"testing"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
	}{
		{
			name: "LID-routed SMP get",
			env: Envelope{
				BaseVersion: 0x80, MgmtClass: ClassSubnLID, ClassVersion: 0x80, Method: MethodGet,
				Status: 0x0000, Reserved1: 0x0000, TransactionID: 0x0102030405060708,
				AttributeID: AttrSMPPortInfo, AttributeModifier: 0x01000001,
			},
		},
		{
			name: "directed-route SMP response",
			env: Envelope{
				BaseVersion: 0x80, MgmtClass: ClassSubnDirected, ClassVersion: 0x80, Method: MethodGetResp,
				Status: 0x8000, HopPointer: 2, HopCount: 3, TransactionID: 0xDEADBEEF00000001,
				AttributeID: AttrSMPNodeInfo,
			},
		},
		{
			name: "SA get table with status",
			env: Envelope{
				BaseVersion: 0x80, MgmtClass: ClassSubnAdm, ClassVersion: 0x80, Method: MethodGetTableResp,
				Status: 0x0C00, TransactionID: 42, AttributeID: AttrSAPathRecord,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := AppendEnvelope(nil, tt.env)
			if len(buf) != EnvelopeSize {
				t.Fatalf("encoded length = %d, want %d", len(buf), EnvelopeSize)
			}
			got, off, err := DecodeEnvelope(buf, 0)
			if err != nil {
				t.Fatalf("DecodeEnvelope error: %v", err)
			}
			if off != EnvelopeSize {
				t.Fatalf("offset = %d, want %d", off, EnvelopeSize)
			}
			if got != tt.env {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, tt.env)
			}
		})
	}
}

func TestEnvelopeStatus(t *testing.T) {
	dr := Envelope{MgmtClass: ClassSubnDirected, Status: 0x8000}
	if !dr.Direction() {
		t.Fatal("expected direction bit")
	}
	if dr.StatusError() {
		t.Fatal("direction bit alone must not be a status error")
	}
	if dr.StatusCode() != 0 {
		t.Fatalf("StatusCode = 0x%04X, want 0", dr.StatusCode())
	}

	dr.Status = 0x801C
	if !dr.StatusError() || dr.StatusCode() != 0x001C {
		t.Fatalf("directed status: error=%v code=0x%04X", dr.StatusError(), dr.StatusCode())
	}

	lid := Envelope{MgmtClass: ClassSubnAdm, Status: 0x0C1F}
	f := lid.Fields()
	if f.ClassSpecific != 0x0C || f.InvalidField != 7 || !f.Redirect || !f.Busy {
		t.Fatalf("unexpected fields %+v", f)
	}
	if !lid.StatusError() {
		t.Fatal("expected status error")
	}
}

func TestDecodeEnvelopeTruncated(t *testing.T) {
	buf := make([]byte, 30)
	if _, off, err := DecodeEnvelope(buf, 8); !errors.Is(err, ErrTruncatedBuffer) || off != 8 {
		t.Fatalf("expected truncated error at unchanged offset, got off=%d err=%v", off, err)
	}
	var te *TruncatedError
	_, _, err := DecodeEnvelope(buf[:10], 0)
	if !errors.As(err, &te) || te.Need != EnvelopeSize || te.Have != 10 {
		t.Fatalf("unexpected error detail: %v", err)
	}
}

func TestTransferHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		hdr  TransferHeader
	}{
		{"data first", TransferHeader{Version: 1, Type: TransferData, ResponseTime: 0x1F, First: true, Active: true, SegmentNumber: 1, PayloadLength: 220}},
		{"data last", TransferHeader{Version: 1, Type: TransferData, Last: true, Active: true, SegmentNumber: 3, PayloadLength: 100}},
		{"single segment", TransferHeader{Version: 1, Type: TransferData, First: true, Last: true, Active: true, SegmentNumber: 1, PayloadLength: 20}},
		{"ack", TransferHeader{Version: 1, Type: TransferAck, Active: true, SegmentNumber: 2, NewWindowLast: 10}},
		{"stop", TransferHeader{Version: 1, Type: TransferStop, Active: true, Status: 0x76}},
		{"abort with reserved", TransferHeader{Version: 1, Type: TransferAbort, Active: true, Status: 0x7C, Reserved1: 1, Reserved2: 2}},
		{"sentinel", TransferHeader{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := AppendTransferHeader(nil, tt.hdr)
			if len(buf) != TransferHeaderSize {
				t.Fatalf("encoded length = %d", len(buf))
			}
			got, off, err := DecodeTransferHeader(buf, 0)
			if err != nil {
				t.Fatalf("DecodeTransferHeader error: %v", err)
			}
			if off != TransferHeaderSize || got != tt.hdr {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, tt.hdr)
			}
		})
	}
}

func TestTransferHeaderFlags(t *testing.T) {
	buf := []byte{0x01, 0x01, 0x07 | 0x08<<3, 0x00, 0, 0, 0, 1, 0, 0, 0, 20}
	h, _, err := DecodeTransferHeader(buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !h.First || !h.Last || !h.Active || h.ResponseTime != 0x08 {
		t.Fatalf("flags decoded wrong: %+v", h)
	}
	if !h.SingleSegment() || h.Terminates() || h.Sentinel() {
		t.Fatalf("classification wrong: %+v", h)
	}

	var sentinel TransferHeader
	if !sentinel.Sentinel() || sentinel.InEffect() {
		t.Fatal("zero header must be the no-transfer sentinel")
	}
}

func TestSMPHeaderDirected(t *testing.T) {
	h := SMPHeader{MKey: 0x1122334455667788, Directed: true, DrSLID: 0xFFFFFFFF, DrDLID: 0xFFFFFFFF}
	h.InitPath[1], h.InitPath[2] = 1, 5
	buf := AppendSMPHeader(nil, h)
	if len(buf) != SMPDirectedHeaderSize {
		t.Fatalf("encoded length = %d, want %d", len(buf), SMPDirectedHeaderSize)
	}
	got, off, err := DecodeSMPHeader(buf, 0, true)
	if err != nil || off != SMPDirectedHeaderSize {
		t.Fatalf("decode: off=%d err=%v", off, err)
	}
	if got != h {
		t.Fatal("directed SMP header mismatch")
	}
	if hops := got.InitialHops(2); !bytes.Equal(hops, []byte{1, 5}) {
		t.Fatalf("InitialHops = %v", hops)
	}
}

func TestAggregateHeaderRoundTrip(t *testing.T) {
	h := AggregateHeader{AttributeID: AttrSMPPortInfo, Error: true, RequestLength: 2, Modifier: 0x01000001}
	buf := AppendAggregateHeader(nil, h)
	got, off, err := DecodeAggregateHeader(buf, 0)
	if err != nil || off != AggregateHeaderSize {
		t.Fatalf("decode: off=%d err=%v", off, err)
	}
	if got != h || got.BodyLength() != 16 {
		t.Fatalf("mismatch: %+v", got)
	}
}

func TestAdminHeaderStride(t *testing.T) {
	h := AdminHeader{Key: 1, AttributeOffset: 8, ComponentMask: 0xFF}
	buf := AppendAdminHeader(nil, h)
	got, off, err := DecodeAdminHeader(buf, 0)
	if err != nil || off != AdminHeaderSize {
		t.Fatalf("decode: off=%d err=%v", off, err)
	}
	if got.Stride() != 64 {
		t.Fatalf("Stride = %d, want 64", got.Stride())
	}
}
