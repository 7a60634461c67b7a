package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tturner/madscope/internal/dissect"
	"github.com/tturner/madscope/internal/mad"
	"github.com/tturner/madscope/internal/mad/reassembly"
	"github.com/tturner/madscope/internal/pcap"
)

var testConv = reassembly.Conversation{Src: "lid:1", Dst: "lid:2", SrcQP: 1, DstQP: 1}

// noticeGet returns a single-segment SA Get(Notice) datagram.
func noticeGet(t *testing.T) []byte {
	t.Helper()
	b := mad.AppendEnvelope(nil, mad.Envelope{
		BaseVersion:   1,
		MgmtClass:     mad.ClassSubnAdm,
		ClassVersion:  1,
		Method:        mad.MethodGet,
		TransactionID: 0x1122334455667788,
		AttributeID:   mad.AttrSANotice,
	})
	b = mad.AppendTransferHeader(b, mad.TransferHeader{
		Version:       1,
		Type:          mad.TransferData,
		Active:        true,
		First:         true,
		Last:          true,
		SegmentNumber: 1,
		PayloadLength: 20,
	})
	return mad.AppendAdminHeader(b, mad.AdminHeader{})
}

func decodedReport(t *testing.T) DecodeReport {
	t.Helper()
	d := dissect.New(dissect.Options{Reassemble: true})
	dg := d.DecodeFrame(1, testTime, testConv, noticeGet(t))
	return NewDecodeReport("test", "notice.pcap", true, &pcap.Decoded{
		Datagrams: []*dissect.Datagram{dg},
		Stats:     pcap.ReadStats{TotalPackets: 1, MADPackets: 1, Transports: map[string]int{"ib": 1}},
	})
}

func TestWriteJSON(t *testing.T) {
	r := decodedReport(t)

	var buf bytes.Buffer
	if err := WriteJSON(&buf, r); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if decoded["input"] != "notice.pcap" {
		t.Errorf("input = %v", decoded["input"])
	}
	datagrams, ok := decoded["datagrams"].([]any)
	if !ok || len(datagrams) != 1 {
		t.Fatalf("datagrams = %v", decoded["datagrams"])
	}
	first := datagrams[0].(map[string]any)
	if _, ok := first["reassembly"]; !ok {
		t.Errorf("datagram missing reassembly field: %v", first)
	}
	if _, ok := first["smp"]; ok {
		t.Errorf("smp header should not be serialized")
	}
}

func TestWriteJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decode.json")
	if err := WriteJSONFile(path, decodedReport(t)); err != nil {
		t.Fatalf("WriteJSONFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	var decoded DecodeReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Output file is not valid JSON: %v", err)
	}
	if decoded.MadscopeVersion != "test" || !decoded.Reassembly {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Stats == nil || decoded.Stats.MADPackets != 1 {
		t.Errorf("stats = %+v", decoded.Stats)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat file: %v", err)
	}
	if info.Mode().Perm()&0444 != 0444 {
		t.Errorf("mode = %v, want world-readable", info.Mode().Perm())
	}
}

func TestNewDecodeReportEmpty(t *testing.T) {
	r := NewDecodeReport("test", "empty.pcap", false, &pcap.Decoded{})
	if r.Datagrams == nil {
		t.Fatal("datagrams should serialize as an empty list")
	}
	if r.Stats != nil {
		t.Errorf("stats = %+v, want nil for empty capture", r.Stats)
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, r); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"datagrams": []`)) {
		t.Errorf("output = %s", buf.String())
	}
}

func TestNewSummaryReportSplitsErrors(t *testing.T) {
	entries := []pcap.SummaryEntry{
		{Name: "a.pcap", Path: "/x/a.pcap", Summary: &pcap.Summary{File: "/x/a.pcap", TsharkMADs: -1}},
		{Name: "b.pcap", Path: "/x/b.pcap", Err: os.ErrNotExist},
	}
	r := NewSummaryReport("test", entries)
	if len(r.Summaries) != 1 || r.Summaries[0].File != "/x/a.pcap" {
		t.Errorf("summaries = %+v", r.Summaries)
	}
	if len(r.Errors) != 1 || r.Errors[0].Path != "/x/b.pcap" {
		t.Errorf("errors = %+v", r.Errors)
	}
}

func TestWriteJSONFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "2024", "summary.json")
	if err := WriteJSONFile(path, NewSummaryReport("test", nil)); err != nil {
		t.Fatalf("WriteJSONFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	if !json.Valid(data) {
		t.Fatalf("invalid JSON: %s", data)
	}
}

func TestWriteJSONFileRemovesPartialOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := WriteJSONFile(path, map[string]any{"bad": make(chan int)}); err == nil {
		t.Fatal("expected encode error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("partial file left behind: %v", err)
	}
}

func TestFormatTimestamp(t *testing.T) {
	saved := now
	defer func() { now = saved }()
	now = func() time.Time { return time.Date(2024, 1, 15, 11, 30, 0, 0, time.FixedZone("CET", 3600)) }

	if got := FormatTimestamp(); got != "2024-01-15T10:30:00Z" {
		t.Fatalf("FormatTimestamp = %q", got)
	}
	if r := NewSummaryReport("test", nil); r.GeneratedAt != "2024-01-15T10:30:00Z" {
		t.Fatalf("GeneratedAt = %q", r.GeneratedAt)
	}
}
