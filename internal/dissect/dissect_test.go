package dissect

import (
	"strings"
	"testing"

	"github.com/tturner/madscope/internal/mad"
	"github.com/tturner/madscope/internal/mad/reassembly"
	"github.com/tturner/madscope/internal/mad/router"
	"github.com/tturner/madscope/internal/mad/tree"
	"github.com/tturner/madscope/internal/metrics"
)

var testConv = reassembly.Conversation{Src: "lid:1", Dst: "lid:2", SrcQP: 1, DstQP: 1}

func envelope(class, method uint8, attrID uint16, mod uint32, tid uint64) mad.Envelope {
	return mad.Envelope{
		BaseVersion:       1,
		MgmtClass:         class,
		ClassVersion:      1,
		Method:            method,
		TransactionID:     tid,
		AttributeID:       attrID,
		AttributeModifier: mod,
	}
}

// adminDatagram builds an SA or PA datagram around payload.
func adminDatagram(t *testing.T, e mad.Envelope, th mad.TransferHeader, ah mad.AdminHeader, payload []byte) []byte {
	t.Helper()
	b := mad.AppendEnvelope(nil, e)
	b = mad.AppendTransferHeader(b, th)
	b = mad.AppendAdminHeader(b, ah)
	return append(b, payload...)
}

func dataSegment(seg uint32, first, last bool, payloadLength uint32) mad.TransferHeader {
	return mad.TransferHeader{
		Version:       1,
		Type:          mad.TransferData,
		Active:        true,
		First:         first,
		Last:          last,
		SegmentNumber: seg,
		PayloadLength: payloadLength,
	}
}

func smpDatagram(t *testing.T, e mad.Envelope, h mad.SMPHeader, data []byte) []byte {
	t.Helper()
	b := mad.AppendEnvelope(nil, e)
	b = mad.AppendSMPHeader(b, h)
	return append(b, data...)
}

func warnings(dg *Datagram) []tree.Annotation {
	var out []tree.Annotation
	for _, a := range dg.Annotations {
		if a.Severity >= tree.SeverityWarn {
			out = append(out, a)
		}
	}
	return out
}

func TestNoticeGetSingleSegment(t *testing.T) {
	d := New(Options{Reassemble: true})
	e := envelope(mad.ClassSubnAdm, mad.MethodGet, mad.AttrSANotice, 0, 0x1122334455667788)
	data := adminDatagram(t, e, dataSegment(1, true, true, 20), mad.AdminHeader{}, nil)

	dg := d.Decode(testConv, data)
	if dg.Handler != router.HandlerSubnAdm {
		t.Fatalf("handler = %v", dg.Handler)
	}
	if dg.Envelope.AttributeID != 0x0002 || dg.AttributeName() != "Notice" {
		t.Fatalf("attribute = 0x%04X %s", dg.Envelope.AttributeID, dg.AttributeName())
	}
	if dg.Transfers == nil || dg.Transfers.Outcome != reassembly.OutcomeBypass {
		t.Fatalf("transfer info = %+v", dg.Transfers)
	}
	if n := d.Reassembly().Len(); n != 0 {
		t.Fatalf("reassembly entries = %d, want 0", n)
	}
	if w := warnings(dg); len(w) != 0 {
		t.Fatalf("unexpected warnings: %+v", w)
	}
	if dg.Records != -1 {
		t.Fatalf("records = %d", dg.Records)
	}
	for _, name := range []string{"Common Header", "Transfer Header", "Administration Header"} {
		if dg.Root.Find(name) == nil {
			t.Errorf("tree missing %q", name)
		}
	}
	if !strings.Contains(dg.Summary(), "SubnAdm Get Notice") {
		t.Errorf("summary = %q", dg.Summary())
	}
}

func TestTableResponseRecords(t *testing.T) {
	d := New(Options{})
	e := envelope(mad.ClassSubnAdm, mad.MethodGetTableResp, mad.AttrSAPathRecord, 0, 7)
	payload := make([]byte, 200)
	data := adminDatagram(t, e, dataSegment(1, true, true, 220), mad.AdminHeader{AttributeOffset: 8}, payload)

	dg := d.Decode(testConv, data)
	if dg.Records != 3 {
		t.Fatalf("records = %d, want 3", dg.Records)
	}
	rec := dg.Root.Find("Record 2")
	if rec == nil || rec.Offset != mad.EnvelopeSize+mad.TransferHeaderSize+mad.AdminHeaderSize+128 {
		t.Fatalf("record 2 = %+v", rec)
	}
	if rec.Find("PathRecord") == nil {
		t.Fatal("record 2 not decoded as PathRecord")
	}
	pad := dg.Root.Find("Padding")
	if pad == nil || pad.Length != 8 {
		t.Fatalf("padding = %+v", pad)
	}
	if w := warnings(dg); len(w) != 0 {
		t.Fatalf("unexpected warnings: %+v", w)
	}
}

func TestTableResponseZeroStride(t *testing.T) {
	d := New(Options{})
	e := envelope(mad.ClassSubnAdm, mad.MethodGetTableResp, mad.AttrSAPathRecord, 0, 7)
	data := adminDatagram(t, e, mad.TransferHeader{Version: 1}, mad.AdminHeader{}, make([]byte, 64))

	dg := d.Decode(testConv, data)
	if dg.Records != 0 {
		t.Fatalf("records = %d, want 0", dg.Records)
	}
	if dg.Count(tree.KindUndecoded) != 1 {
		t.Fatalf("annotations = %+v", dg.Annotations)
	}
}

func TestMultiSegmentReassembly(t *testing.T) {
	d := New(Options{Reassemble: true})
	e := envelope(mad.ClassSubnAdm, mad.MethodGetTableResp, mad.AttrSAPathRecord, 0, 0xABCD)
	ah := mad.AdminHeader{AttributeOffset: 8}

	full := make([]byte, 192)
	for i := range full {
		full[i] = byte(i)
	}
	seg1 := adminDatagram(t, e, dataSegment(1, true, false, 212), ah, full[:100])
	seg2 := adminDatagram(t, e, dataSegment(2, false, true, 212), ah, append(full[100:], make([]byte, 16)...))

	first := d.Decode(testConv, seg2)
	if first.Transfers.Outcome != reassembly.OutcomeCollecting {
		t.Fatalf("first outcome = %v", first.Transfers.Outcome)
	}
	if first.Root.Find("Segment Data") == nil || first.Records != -1 {
		t.Fatalf("collecting segment decoded as payload: records=%d", first.Records)
	}
	if d.Reassembly().Len() != 1 {
		t.Fatalf("table len = %d", d.Reassembly().Len())
	}

	dg := d.Decode(testConv, seg1)
	if dg.Transfers.Outcome != reassembly.OutcomeComplete {
		t.Fatalf("second outcome = %v", dg.Transfers.Outcome)
	}
	if len(dg.Reassembled) != 192 || dg.Reassembled[150] != 150 {
		t.Fatalf("reassembled %d bytes", len(dg.Reassembled))
	}
	if dg.Records != 3 {
		t.Fatalf("records = %d, want 3", dg.Records)
	}
	node := dg.Root.Find("Reassembled")
	if node == nil || node.Find("Record 2") == nil {
		t.Fatal("reassembled subtree missing records")
	}
	if d.Reassembly().Len() != 0 {
		t.Fatalf("table len after completion = %d", d.Reassembly().Len())
	}
}

func TestReassemblyDisabled(t *testing.T) {
	d := New(Options{})
	e := envelope(mad.ClassSubnAdm, mad.MethodGetResp, mad.AttrSANodeRecord, 0, 9)

	dg := d.Decode(testConv, adminDatagram(t, e, dataSegment(2, false, true, 40), mad.AdminHeader{}, make([]byte, 40)))
	if dg.Transfers.Outcome != reassembly.OutcomeDisabled {
		t.Fatalf("outcome = %v", dg.Transfers.Outcome)
	}
	if dg.Count(tree.KindUndecoded) != 1 || dg.Root.Find("Segment Data") == nil {
		t.Fatalf("segment 2 should be left undecoded: %+v", dg.Annotations)
	}

	dg = d.Decode(testConv, adminDatagram(t, e, dataSegment(1, true, false, 0), mad.AdminHeader{}, make([]byte, 40)))
	if dg.Root.Find("NodeRecord") == nil {
		t.Fatal("segment 1 not decoded in place")
	}
	if d.Reassembly().Len() != 0 {
		t.Fatal("disabled reassembly stored state")
	}
}

func TestTerminationAndPending(t *testing.T) {
	d := New(Options{Reassemble: true})
	e := envelope(mad.ClassSubnAdm, mad.MethodGetTableResp, mad.AttrSAPathRecord, 0, 42)
	ah := mad.AdminHeader{AttributeOffset: 8}

	d.Decode(testConv, adminDatagram(t, e, dataSegment(1, true, false, 0), ah, make([]byte, 64)))
	pending := d.Pending()
	if len(pending) != 1 || pending[0].Kind != tree.KindReassemblyStalled {
		t.Fatalf("pending = %+v", pending)
	}

	abort := mad.TransferHeader{Version: 1, Type: mad.TransferAbort, Active: true}
	dg := d.Decode(testConv, adminDatagram(t, e, abort, ah, nil))
	if dg.Transfers.Outcome != reassembly.OutcomeTerminated || !dg.Transfers.Discarded {
		t.Fatalf("abort = %+v", dg.Transfers)
	}
	if len(d.Pending()) != 0 {
		t.Fatal("abort left state behind")
	}
}

func TestStatusErrorStopsPayload(t *testing.T) {
	e := envelope(mad.ClassSubnLID, mad.MethodGetResp, mad.AttrSMPNodeInfo, 0, 1)
	e.Status = 0x0004
	data := smpDatagram(t, e, mad.SMPHeader{}, make([]byte, 64))

	dg := New(Options{}).Decode(testConv, data)
	if dg.Count(tree.KindStatusIndicatesError) != 1 || dg.Count(tree.KindUndecoded) != 1 {
		t.Fatalf("annotations = %+v", dg.Annotations)
	}
	if dg.Root.Find("NodeInfo") != nil {
		t.Fatal("payload decoded despite error status")
	}

	dg = New(Options{ParseOnErrorStatus: true}).Decode(testConv, data)
	if dg.Root.Find("NodeInfo") == nil {
		t.Fatal("payload not decoded with ParseOnErrorStatus")
	}
	if dg.Count(tree.KindStatusIndicatesError) != 1 {
		t.Fatalf("annotations = %+v", dg.Annotations)
	}
}

func TestDirectedRoute(t *testing.T) {
	e := envelope(mad.ClassSubnDirected, mad.MethodGetResp, mad.AttrSMPNodeDescription, 0, 3)
	e.Status = 0x8000
	e.HopCount = 2
	h := mad.SMPHeader{Directed: true, DrSLID: 0xFFFFFFFF, DrDLID: 0xFFFFFFFF}
	h.InitPath[1], h.InitPath[2] = 1, 3
	desc := make([]byte, 64)
	copy(desc, "switch-a")

	dg := New(Options{}).Decode(testConv, smpDatagram(t, e, h, desc))
	if dg.Handler != router.HandlerSubnDirected {
		t.Fatalf("handler = %v", dg.Handler)
	}
	if dg.Count(tree.KindStatusIndicatesError) != 0 {
		t.Fatalf("direction bit treated as error: %+v", dg.Annotations)
	}
	if p := dg.Root.Find("InitialPath"); p == nil || p.Value != "1,3" {
		t.Fatalf("initial path = %+v", p)
	}
	if dg.Root.Find("Direction").Value != "inbound" {
		t.Fatal("direction not rendered")
	}
	if dg.Root.Find("NodeDescription") == nil {
		t.Fatal("payload not decoded")
	}
}

func TestModifierFallbackEveryClass(t *testing.T) {
	tests := []struct {
		name    string
		class   uint8
		handler router.Handler
		mod     uint32
		want    int
	}{
		{"core schema reserved bits", mad.ClassSubnLID, router.HandlerSubnLID, 5, 1},
		{"vendor nonzero", 0x09, router.HandlerVendor, 5, 1},
		{"vendor rmpp nonzero", 0x30, router.HandlerVendorRMPP, 5, 1},
		{"application nonzero", 0x10, router.HandlerApplication, 5, 1},
		{"reserved nonzero", 0x02, router.HandlerReserved, 5, 1},
		{"vendor zero", 0x09, router.HandlerVendor, 0, 0},
		{"application zero", 0x10, router.HandlerApplication, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var data []byte
			if tt.class == mad.ClassSubnLID {
				data = smpDatagram(t, envelope(tt.class, mad.MethodGet, mad.AttrSMPNodeInfo, tt.mod, 1), mad.SMPHeader{}, make([]byte, 64))
			} else {
				data = mad.AppendEnvelope(nil, envelope(tt.class, mad.MethodGet, 0x0011, tt.mod, 1))
				data = append(data, make([]byte, 16)...)
			}
			dg := New(Options{}).Decode(testConv, data)
			if dg.Handler != tt.handler {
				t.Fatalf("handler = %v, want %v", dg.Handler, tt.handler)
			}
			if n := dg.Count(tree.KindSchemaModifierMismatch); n != tt.want {
				t.Fatalf("mismatches = %d, want %d", n, tt.want)
			}
			if dg.Root.Find("AttributeModifier") == nil {
				t.Fatal("modifier node missing")
			}
		})
	}
}

func TestImplausibleSegmentNumber(t *testing.T) {
	d := New(Options{Reassemble: true})
	e := envelope(mad.ClassSubnAdm, mad.MethodGetTableResp, mad.AttrSAPathRecord, 0, 9)
	ah := mad.AdminHeader{AttributeOffset: 8}

	dg := d.Decode(testConv, adminDatagram(t, e, dataSegment(0xFFFFFFFF, false, false, 0), ah, make([]byte, 64)))
	if dg.Transfers.Outcome != reassembly.OutcomeInvalid {
		t.Fatalf("outcome = %v, want invalid", dg.Transfers.Outcome)
	}
	if dg.Count(tree.KindReassembly) != 1 || len(d.Pending()) != 0 {
		t.Fatalf("annotations = %+v pending = %d", dg.Annotations, len(d.Pending()))
	}

	d.Decode(testConv, adminDatagram(t, e, dataSegment(1, true, false, 0), ah, make([]byte, 64)))
	dg = d.Decode(testConv, adminDatagram(t, e, dataSegment(reassembly.MaxSegments, false, false, 0), ah, make([]byte, 64)))
	if dg.Transfers.Absent != reassembly.MaxSegments-2 || len(dg.Transfers.Missing) >= dg.Transfers.Absent {
		t.Fatalf("transfer = %+v", dg.Transfers)
	}
	var note string
	for _, a := range dg.Annotations {
		if a.Kind == tree.KindReassembly {
			note = a.Message
		}
	}
	if !strings.Contains(note, "more)") || len(note) > 200 {
		t.Fatalf("reassembly note = %q", note)
	}
}

func TestStopFromReceiverEndsTransfer(t *testing.T) {
	d := New(Options{Reassemble: true})
	e := envelope(mad.ClassSubnAdm, mad.MethodGetTableResp, mad.AttrSAPathRecord, 0, 42)
	ah := mad.AdminHeader{AttributeOffset: 8}

	d.Decode(testConv, adminDatagram(t, e, dataSegment(1, true, false, 0), ah, make([]byte, 64)))
	stop := mad.TransferHeader{Version: 1, Type: mad.TransferStop, Active: true}
	dg := d.Decode(testConv.Reverse(), adminDatagram(t, e, stop, ah, nil))
	if dg.Transfers.Outcome != reassembly.OutcomeTerminated || !dg.Transfers.Discarded {
		t.Fatalf("stop = %+v", dg.Transfers)
	}
	if len(d.Pending()) != 0 {
		t.Fatal("stop from receiver left state behind")
	}
}

func TestOpaqueClasses(t *testing.T) {
	tests := []struct {
		name     string
		class    uint8
		handler  router.Handler
		transfer bool
		node     string
		notes    int
	}{
		{"vendor", 0x09, router.HandlerVendor, false, "Vendor Data", 0},
		{"vendor rmpp", 0x30, router.HandlerVendorRMPP, true, "Vendor Data", 0},
		{"application", 0x10, router.HandlerApplication, false, "Application Data", 0},
		{"reserved", 0x05, router.HandlerReserved, false, "Reserved Data", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := mad.AppendEnvelope(nil, envelope(tt.class, mad.MethodGet, 0x0001, 0, 1))
			if tt.transfer {
				b = mad.AppendTransferHeader(b, mad.TransferHeader{Version: 1})
			}
			b = append(b, 0xDE, 0xAD, 0xBE, 0xEF)

			dg := New(Options{}).Decode(testConv, b)
			if dg.Handler != tt.handler {
				t.Fatalf("handler = %v", dg.Handler)
			}
			if (dg.Transfer != nil) != tt.transfer {
				t.Fatalf("transfer = %+v", dg.Transfer)
			}
			n := dg.Root.Find(tt.node)
			if n == nil || n.Value != "DEADBEEF" {
				t.Fatalf("opaque node = %+v", n)
			}
			if got := dg.Count(tree.KindUndecoded); got != tt.notes {
				t.Fatalf("undecoded notes = %d, want %d", got, tt.notes)
			}
		})
	}
}

func TestTruncatedEnvelope(t *testing.T) {
	dg := New(Options{}).Decode(testConv, []byte{0x01, 0x03, 0x01})
	if !dg.Truncated || dg.Count(tree.KindTruncatedBuffer) != 1 {
		t.Fatalf("datagram = %+v", dg)
	}
	if !strings.Contains(dg.Summary(), "truncated") {
		t.Errorf("summary = %q", dg.Summary())
	}
	if dg.Worst() != tree.SeverityError {
		t.Errorf("worst = %v", dg.Worst())
	}
}

func TestTruncatedAdminHeader(t *testing.T) {
	b := mad.AppendEnvelope(nil, envelope(mad.ClassSubnAdm, mad.MethodGet, mad.AttrSANotice, 0, 1))
	b = mad.AppendTransferHeader(b, mad.TransferHeader{Version: 1})
	b = append(b, 0, 0, 0, 0)

	dg := New(Options{}).Decode(testConv, b)
	if dg.Admin != nil || dg.Transfer == nil {
		t.Fatalf("admin = %+v transfer = %+v", dg.Admin, dg.Transfer)
	}
	if dg.Count(tree.KindTruncatedBuffer) != 1 {
		t.Fatalf("annotations = %+v", dg.Annotations)
	}
}

func TestMetricsRecorded(t *testing.T) {
	sink := metrics.NewSink()
	d := New(Options{Metrics: sink})
	e := envelope(mad.ClassSubnAdm, mad.MethodGet, mad.AttrSANotice, 0, 1)
	d.Decode(testConv, adminDatagram(t, e, dataSegment(1, true, true, 20), mad.AdminHeader{}, nil))
	d.Decode(testConv, []byte{1})

	s := sink.GetSummary()
	if s.TotalDatagrams != 2 {
		t.Fatalf("total = %d", s.TotalDatagrams)
	}
	if s.ByClass["SubnAdm"] == nil || s.ByClass["SubnAdm"].Count != 1 {
		t.Fatalf("by class = %+v", s.ByClass)
	}
	if s.Annotations[string(tree.KindTruncatedBuffer)] != 1 {
		t.Fatalf("annotations = %v", s.Annotations)
	}
}
