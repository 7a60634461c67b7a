package attr

import (
	"bytes"
	"testing"

	"github.com/tturner/madscope/internal/mad"
	"github.com/tturner/madscope/internal/mad/modifier"
	"github.com/tturner/madscope/internal/mad/tree"
)

func aggregateContext(method uint8, count uint32) *Context {
	return &Context{
		Class:     mad.ClassSubnLID,
		Method:    method,
		Attribute: mad.AttrSMPAggregate,
		Modifier:  count,
		Table:     tinyTable(),
		Schemas:   modifier.DefaultTable(),
		Sink:      &tree.Sink{},
	}
}

func member(attr uint16, reqlen uint8, body []byte) []byte {
	b := mad.AppendAggregateHeader(nil, mad.AggregateHeader{AttributeID: attr, RequestLength: reqlen})
	return append(b, body...)
}

func TestAggregateResyncsToDeclaredLength(t *testing.T) {
	first := append([]byte{0x11, 0x11, 0x11, 0x11}, bytes.Repeat([]byte{0xEE}, 12)...)
	second := []byte{0x22, 0x22, 0x22, 0x22, 0, 0, 0, 0}
	var buf []byte
	buf = append(buf, member(attrTiny, 2, first)...)
	buf = append(buf, member(attrTiny, 1, second)...)

	ctx := aggregateContext(mad.MethodGetResp, 2)
	root := tree.New("root", 0, 0)
	end := Decode(ctx, buf, 0, root)
	if end != len(buf) {
		t.Fatalf("end = %d, want %d", end, len(buf))
	}

	agg := root.Children[0]
	if len(agg.Children) != 2 {
		t.Fatalf("members = %d", len(agg.Children))
	}
	m1 := agg.Children[1]
	if m1.Offset != 24 {
		t.Fatalf("second member at %d, want 24", m1.Offset)
	}
	if w := m1.Find("Word"); w == nil || w.Value != "572662306" || w.Offset != 32 {
		t.Fatalf("second member word = %+v", w)
	}
	if got := ctx.Sink.Count(tree.KindAggregateBoundaryMismatch); got != 2 {
		t.Fatalf("boundary notes = %d, want 2", got)
	}
	for _, a := range ctx.Sink.Annotations {
		if a.Severity != tree.SeverityNote {
			t.Fatalf("unexpected annotation %+v", a)
		}
	}
}

func TestAggregateFinalGetMemberHasNoBody(t *testing.T) {
	var buf []byte
	buf = append(buf, member(attrTiny, 1, make([]byte, 8))...)
	buf = append(buf, member(attrTiny, 1, nil)...)

	ctx := aggregateContext(mad.MethodGet, 2)
	root := tree.New("root", 0, 0)
	end := Decode(ctx, buf, 0, root)
	if end != len(buf) {
		t.Fatalf("end = %d, want %d", end, len(buf))
	}
	last := root.Children[0].Children[1]
	if last.Find("Tiny") != nil {
		t.Fatalf("final Get member decoded a body")
	}
	if ctx.Sink.Count(tree.KindTruncatedBuffer) != 0 {
		t.Fatalf("annotations = %+v", ctx.Sink.Annotations)
	}
}

func TestAggregateResponseFinalMemberHasBody(t *testing.T) {
	var buf []byte
	buf = append(buf, member(attrTiny, 1, []byte{0, 0, 0, 7, 0, 0, 0, 0})...)

	ctx := aggregateContext(mad.MethodGetResp, 1)
	root := tree.New("root", 0, 0)
	Decode(ctx, buf, 0, root)
	if w := root.Find("Word"); w == nil || w.Value != "7" {
		t.Fatalf("word = %+v", w)
	}
}

func TestAggregateTruncatedMember(t *testing.T) {
	buf := member(attrTiny, 4, make([]byte, 8))

	ctx := aggregateContext(mad.MethodGetResp, 1)
	root := tree.New("root", 0, 0)
	end := Decode(ctx, buf, 0, root)
	if end != len(buf) {
		t.Fatalf("end = %d", end)
	}
	if ctx.Sink.Count(tree.KindTruncatedBuffer) != 1 {
		t.Fatalf("annotations = %+v", ctx.Sink.Annotations)
	}
}

func TestAggregateMemberModifierChecked(t *testing.T) {
	hdr := mad.AppendAggregateHeader(nil, mad.AggregateHeader{AttributeID: attrTiny, RequestLength: 1, Modifier: 5})
	buf := append(hdr, make([]byte, 8)...)

	ctx := aggregateContext(mad.MethodGetResp, 1)
	root := tree.New("root", 0, 0)
	Decode(ctx, buf, 0, root)
	if ctx.Sink.Count(tree.KindSchemaModifierMismatch) != 1 {
		t.Fatalf("annotations = %+v", ctx.Sink.Annotations)
	}
}
