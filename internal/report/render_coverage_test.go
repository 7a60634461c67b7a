package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tturner/madscope/internal/dissect"
	"github.com/tturner/madscope/internal/pcap"
)

func TestWriteCoverage(t *testing.T) {
	d := dissect.New(dissect.Options{Reassemble: true})
	dg := d.DecodeFrame(1, testTime, testConv, noticeGet(t))
	coverage := pcap.BuildCoverageReport([]*dissect.Datagram{dg, dg}, nil)
	fileErrors := []pcap.CoverageFileError{{Name: "bad.pcap", Path: "/tmp/bad.pcap", Err: captureError("bad magic")}}

	var buf bytes.Buffer
	WriteCoverage(&buf, coverage, fileErrors)
	out := buf.String()
	for _, want := range []string{
		"Attribute Coverage",
		"Datagrams: 2",
		"Operations: 1 (1 with a decoder)",
		"Notice (0x0002)",
		"Get: 2",
		"bad.pcap: bad magic",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("coverage output missing %q:\n%s", want, out)
		}
	}

	r := NewCoverageReport("test", "captures", coverage, fileErrors)
	if len(r.Errors) != 1 || r.Errors[0].Path != "/tmp/bad.pcap" || r.Coverage != coverage {
		t.Fatalf("report = %+v", r)
	}
}
