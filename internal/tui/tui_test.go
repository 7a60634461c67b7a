package tui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/tturner/madscope/internal/dissect"
	"github.com/tturner/madscope/internal/mad"
	"github.com/tturner/madscope/internal/mad/reassembly"
	"github.com/tturner/madscope/internal/pcap"
)

var testTime = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

var testConv = reassembly.Conversation{Src: "lid:1", Dst: "lid:2", SrcQP: 1, DstQP: 1}

func noticeGet(tid uint64) []byte {
	b := mad.AppendEnvelope(nil, mad.Envelope{
		BaseVersion:   1,
		MgmtClass:     mad.ClassSubnAdm,
		ClassVersion:  1,
		Method:        mad.MethodGet,
		TransactionID: tid,
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

// testModel decodes three clean datagrams and one truncated one at index 2.
func testModel(t *testing.T) *Model {
	t.Helper()
	d := dissect.New(dissect.Options{Reassemble: true})
	decoded := &pcap.Decoded{}
	for i, data := range [][]byte{noticeGet(1), noticeGet(2), {0x01, 0x03}, noticeGet(3)} {
		decoded.Datagrams = append(decoded.Datagrams, d.DecodeFrame(i+1, testTime, testConv, data))
	}
	return NewModel("fabric.pcap", decoded)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "end":
		return tea.KeyMsg{Type: tea.KeyEnd}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModel(t *testing.T) {
	m := testModel(t)
	if m.Selected() == nil || m.Selected().Frame != 1 {
		t.Fatalf("selected = %+v", m.Selected())
	}
	if m.Init() != nil {
		t.Error("Init should not schedule commands")
	}
}

func TestNavigation(t *testing.T) {
	m := testModel(t)

	tests := []struct {
		key  string
		want int
	}{
		{"down", 1},
		{"j", 2},
		{"up", 1},
		{"end", 3},
		{"down", 3},
		{"g", 0},
		{"k", 0},
	}
	for _, tt := range tests {
		m.Update(key(tt.key))
		if m.cursor != tt.want {
			t.Fatalf("after %q cursor = %d, want %d", tt.key, m.cursor, tt.want)
		}
	}
}

func TestNextAnnotated(t *testing.T) {
	m := testModel(t)
	m.Update(key("n"))
	if m.cursor != 2 {
		t.Fatalf("cursor = %d, want truncated datagram at 2", m.cursor)
	}
	m.Update(key("n"))
	if m.cursor != 2 {
		t.Fatalf("cursor = %d, want wrap back to 2", m.cursor)
	}
}

func TestNextAnnotatedNone(t *testing.T) {
	d := dissect.New(dissect.Options{})
	m := NewModel("x", &pcap.Decoded{Datagrams: []*dissect.Datagram{d.Decode(testConv, noticeGet(1))}})
	m.Update(key("n"))
	if m.status != "no annotated datagrams" {
		t.Errorf("status = %q", m.status)
	}
}

func TestQuit(t *testing.T) {
	for _, k := range []string{"q", "ctrl+c"} {
		_, cmd := testModel(t).Update(key(k))
		if cmd == nil {
			t.Fatalf("%q returned no command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%q did not quit", k)
		}
	}
}

func TestCopySelected(t *testing.T) {
	var copied string
	saved := writeClipboard
	writeClipboard = func(s string) error {
		copied = s
		return nil
	}
	t.Cleanup(func() { writeClipboard = saved })

	m := testModel(t)
	_, cmd := m.Update(key("c"))
	if cmd == nil {
		t.Fatal("copy returned no command")
	}
	m.Update(cmd())
	if !strings.HasPrefix(copied, "0103") || len(copied) != 2*len(m.Selected().Raw) {
		t.Errorf("copied = %q", copied)
	}
	if !strings.HasPrefix(m.status, "copied") {
		t.Errorf("status = %q", m.status)
	}

	m.Update(clipboardCopyMsg{err: errors.New("no display")})
	if !strings.Contains(m.status, "no display") {
		t.Errorf("status = %q", m.status)
	}
}

func TestViewShowsTreeAndHex(t *testing.T) {
	m := testModel(t)
	m.Update(tea.WindowSizeMsg{Width: 160, Height: 100})

	view := m.View()
	for _, want := range []string{"madscope", "fabric.pcap", "4 datagrams", "Common Header", "Administration Header"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m.Update(key("x"))
	if !m.showHex {
		t.Fatal("x should toggle hex")
	}
	if !strings.Contains(m.View(), "0000: 01 03 01 01") {
		t.Errorf("hex view missing dump:\n%s", m.View())
	}
}

func TestViewEmpty(t *testing.T) {
	m := NewModel("empty.pcap", &pcap.Decoded{})
	m.Update(key("down"))
	m.Update(key("c"))
	if !strings.Contains(m.View(), "no management datagrams") {
		t.Error("empty view missing placeholder")
	}
}

func TestLayoutMinimums(t *testing.T) {
	l := NewLayout(10, 5)
	if l.Width != MinWidth || l.Height != MinHeight {
		t.Errorf("layout = %+v", l)
	}
	if l.ListWidth <= 0 || l.DetailWidth <= 0 || l.BodyHeight <= 0 {
		t.Errorf("layout = %+v", l)
	}
}

func TestTruncateAndWindow(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
	lines := []string{"a", "b", "c"}
	if got := window(lines, 1, 5); len(got) != 2 || got[0] != "b" {
		t.Errorf("window = %v", got)
	}
	if got := window(lines, 9, 5); len(got) != 0 {
		t.Errorf("window past end = %v", got)
	}
}

func TestCaptureField(t *testing.T) {
	var path string
	if _, ok := captureField([]string{"a.pcap"}, &path).(*huh.Select[string]); !ok {
		t.Error("expected select when captures exist")
	}
	if _, ok := captureField(nil, &path).(*huh.Input); !ok {
		t.Error("expected input when no captures exist")
	}
}

func TestValidateCapturePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.pcap")
	if err := os.WriteFile(file, []byte{0}, 0644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"", true},
		{filepath.Join(dir, "missing.pcap"), true},
		{dir, true},
		{file, false},
	}
	for _, tt := range tests {
		if err := validateCapturePath(tt.path); (err != nil) != tt.wantErr {
			t.Errorf("validateCapturePath(%q) error = %v", tt.path, err)
		}
	}
}
