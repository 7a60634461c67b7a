package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"
	"github.com/spf13/cobra"

	"github.com/tturner/madscope/internal/errors"
	"github.com/tturner/madscope/internal/mad"
	"github.com/tturner/madscope/internal/pcap"
)

// noticeGet is a 256-byte SA Get(Notice) in a single DATA segment.
func noticeGet(tid uint64) []byte {
	b := mad.AppendEnvelope(nil, mad.Envelope{
		BaseVersion:   1,
		MgmtClass:     mad.ClassSubnAdm,
		ClassVersion:  2,
		Method:        mad.MethodGet,
		TransactionID: tid,
		AttributeID:   mad.AttrSANotice,
	})
	b = mad.AppendTransferHeader(b, mad.TransferHeader{
		Version: 1, Type: mad.TransferData, Active: true, First: true, Last: true,
		SegmentNumber: 1, PayloadLength: 20,
	})
	b = mad.AppendAdminHeader(b, mad.AdminHeader{})
	return append(b, make([]byte, 256-len(b))...)
}

// ibFrame wraps a datagram in LRH, BTH and DETH with both CRCs.
func ibFrame(datagram []byte) []byte {
	body := pcap.AppendBTH(nil, pcap.BTH{Opcode: 0x64, PKey: 0xFFFF, DestQP: 1})
	body = pcap.AppendDETH(body, pcap.DETH{QKey: 0x80010000, SrcQP: 1})
	body = append(body, datagram...)
	body = append(body, 0xDE, 0xAD, 0xBE, 0xEF)
	frame := pcap.AppendLRH(nil, pcap.LRH{LinkNext: 2, DLID: 2, SLID: 1}, 8+len(body))
	frame = append(frame, body...)
	return append(frame, 0x12, 0x34)
}

func writeCapture(t *testing.T, datagrams ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fabric.pcap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create pcap: %v", err)
	}
	defer f.Close()
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65535, pcap.LinkTypeInfiniBand); err != nil {
		t.Fatalf("write header: %v", err)
	}
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	for i, d := range datagrams {
		frame := ibFrame(d)
		ci := gopacket.CaptureInfo{Timestamp: ts.Add(time.Duration(i) * time.Millisecond), CaptureLength: len(frame), Length: len(frame)}
		if err := w.WritePacket(ci, frame); err != nil {
			t.Fatalf("write packet: %v", err)
		}
	}
	return path
}

// run executes a command with args and returns stdout.
func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRequiredFlagsErrors(t *testing.T) {
	tests := []struct {
		name    string
		cmd     func() *cobra.Command
		wantErr string
	}{
		{"decode missing input", newDecodeCmd, "required flag --input not set"},
		{"decode-bytes missing hex", newDecodeBytesCmd, "required flag --hex not set"},
		{"summary missing input", newSummaryCmd, "required flag --input or --pcap-dir not set"},
		{"capture missing interface", newCaptureCmd, "required flag --interface not set"},
		{"metrics-report missing input", newMetricsReportCmd, "required flag --input or --dir not set"},
		{"coverage missing input", newCoverageCmd, "required flag --input or --pcap-dir not set"},
		{"diff missing baseline", newDiffCmd, "required flag --baseline not set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.cmd())
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error: got %q want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParseHexBytes(t *testing.T) {
	tests := []struct {
		in      string
		want    []byte
		wantErr bool
	}{
		{"0103", []byte{0x01, 0x03}, false},
		{"01 03 ff", []byte{0x01, 0x03, 0xff}, false},
		{"01:03:FF", []byte{0x01, 0x03, 0xff}, false},
		{"0x01, 0x03", []byte{0x01, 0x03}, false},
		{"1 3", []byte{0x01, 0x03}, false},
		{"zz", nil, true},
		{"  ", nil, true},
	}
	for _, tt := range tests {
		got, err := parseHexBytes(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseHexBytes(%q) error = %v", tt.in, err)
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("parseHexBytes(%q) = % x, want % x", tt.in, got, tt.want)
		}
	}
}

func TestDecodeBytesText(t *testing.T) {
	out, err := run(t, newDecodeBytesCmd(), "--log-level", "silent", hex.EncodeToString(noticeGet(0x42)))
	if err != nil {
		t.Fatalf("decode-bytes: %v", err)
	}
	for _, want := range []string{"SubnAdm Get Notice", "Common Header", "Administration Header"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDecodeBytesJSON(t *testing.T) {
	out, err := run(t, newDecodeBytesCmd(), "--log-level", "silent", "--format", "json", "--hex", hex.EncodeToString(noticeGet(1)))
	if err != nil {
		t.Fatalf("decode-bytes: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if dgs, ok := decoded["datagrams"].([]any); !ok || len(dgs) != 1 {
		t.Errorf("datagrams = %v", decoded["datagrams"])
	}
}

func TestDecodeBytesInvalidHex(t *testing.T) {
	_, err := run(t, newDecodeBytesCmd(), "--hex", "not hex")
	var ufe errors.UserFriendlyError
	if !stderrors.As(err, &ufe) {
		t.Fatalf("error = %v, want UserFriendlyError", err)
	}
}

func TestDecodeInvalidFormat(t *testing.T) {
	_, err := run(t, newDecodeCmd(), "--format", "xml", "x.pcap")
	if err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Fatalf("error = %v", err)
	}
}

func TestDecodeCaptureWithMetrics(t *testing.T) {
	path := writeCapture(t, noticeGet(1), noticeGet(2))
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "decode.json")
	csvPath := filepath.Join(dir, "decode_metrics.csv")

	if _, err := run(t, newDecodeCmd(), "--log-level", "silent", "--format", "json",
		"--output", jsonPath, "--metrics-csv", csvPath, path); err != nil {
		t.Fatalf("decode: %v", err)
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var decoded struct {
		Input     string           `json:"input"`
		Datagrams []map[string]any `json:"datagrams"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Input != path || len(decoded.Datagrams) != 2 {
		t.Fatalf("report = %+v", decoded)
	}

	out, err := run(t, newMetricsReportCmd(), "--dir", dir)
	if err != nil {
		t.Fatalf("metrics-report: %v", err)
	}
	for _, want := range []string{"Files: 1", "Total Datagrams: 2", "SubnAdm"} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics report missing %q:\n%s", want, out)
		}
	}
}

func TestDecodeCaptureText(t *testing.T) {
	path := writeCapture(t, noticeGet(7))
	out, err := run(t, newDecodeCmd(), "--log-level", "silent", "--input", path)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(out, "Frame 1") || !strings.Contains(out, "lid:1") {
		t.Errorf("output:\n%s", out)
	}

	out, err = run(t, newDecodeCmd(), "--log-level", "silent", "--annotated-only", path)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.Contains(out, "Frame 1") {
		t.Errorf("clean datagram printed with --annotated-only:\n%s", out)
	}
}

func TestDecodeMissingFile(t *testing.T) {
	_, err := run(t, newDecodeCmd(), "--log-level", "silent", filepath.Join(t.TempDir(), "missing.pcap"))
	var ufe errors.UserFriendlyError
	if !stderrors.As(err, &ufe) {
		t.Fatalf("error = %v, want UserFriendlyError", err)
	}
}

func TestSummaryCommand(t *testing.T) {
	path := writeCapture(t, noticeGet(1), noticeGet(2), noticeGet(3))

	out, err := run(t, newSummaryCmd(), "--log-level", "silent", path)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	for _, want := range []string{"Capture Summary", "Management datagrams: 3", "SubnAdm"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, newSummaryCmd(), "--log-level", "silent", "--pcap-dir", filepath.Dir(path))
	if err != nil {
		t.Fatalf("summary dir: %v", err)
	}
	if !strings.Contains(out, "fabric.pcap") {
		t.Errorf("directory table missing file:\n%s", out)
	}
}

func TestCoverageCommand(t *testing.T) {
	path := writeCapture(t, noticeGet(1), noticeGet(2))

	out, err := run(t, newCoverageCmd(), "--log-level", "silent", path)
	if err != nil {
		t.Fatalf("coverage: %v", err)
	}
	for _, want := range []string{"Attribute Coverage", "Datagrams: 2", "Notice (0x0002)"} {
		if !strings.Contains(out, want) {
			t.Errorf("coverage missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, newCoverageCmd(), "--log-level", "silent", "--pcap-dir", filepath.Dir(path), "--format", "json")
	if err != nil {
		t.Fatalf("coverage dir: %v", err)
	}
	var decoded struct {
		Coverage struct {
			Datagrams int `json:"datagrams"`
		} `json:"coverage"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("unmarshal coverage: %v\n%s", err, out)
	}
	if decoded.Coverage.Datagrams != 2 {
		t.Fatalf("coverage datagrams = %d", decoded.Coverage.Datagrams)
	}
}

func TestDiffCommand(t *testing.T) {
	baseline := writeCapture(t, noticeGet(1))
	compare := writeCapture(t, noticeGet(1), noticeGet(2))

	out, err := run(t, newDiffCmd(), "--log-level", "silent", baseline, compare)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	for _, want := range []string{"Capture Diff Report", "1 management datagrams", "2 management datagrams", "No operation differences found."} {
		if !strings.Contains(out, want) {
			t.Errorf("diff missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, newDiffCmd(), "--log-level", "silent", baseline, filepath.Join(t.TempDir(), "missing.pcap")); err == nil {
		t.Fatal("expected error for missing compare capture")
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "madscope.yaml")

	if _, err := run(t, newConfigCmd(), "init", "--config", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := run(t, newConfigCmd(), "init", "--config", path); err == nil {
		t.Fatal("expected error when config exists")
	}
	out, err := run(t, newConfigCmd(), "validate", "--config", path)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "OK") || !strings.Contains(out, "core:") {
		t.Errorf("validate output:\n%s", out)
	}

	if err := os.WriteFile(path, []byte("classes:\n  core: \"0x20-0x10\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, newConfigCmd(), "validate", "--config", path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestDecodeWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "lab.yaml")
	if err := os.WriteFile(cfgPath, []byte("logging:\n  level: silent\ndecode:\n  reassemble: false\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, newDecodeBytesCmd(), "--config", cfgPath, "--format", "json", hex.EncodeToString(noticeGet(1)))
	if err != nil {
		t.Fatalf("decode-bytes: %v", err)
	}
	if !strings.Contains(out, `"reassembly": false`) {
		t.Errorf("config not applied:\n%s", out)
	}
}

func TestVersionAndHelp(t *testing.T) {
	out, err := run(t, newRootCmd(), "version")
	if err != nil || !strings.Contains(out, "madscope version") {
		t.Fatalf("version: %q %v", out, err)
	}
	out, err = run(t, newRootCmd(), "--help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, name := range []string{"decode", "decode-bytes", "summary", "browse", "capture", "config", "metrics-report"} {
		if !strings.Contains(out, name) {
			t.Errorf("help missing %q", name)
		}
	}
}
