package attr

import (
	"errors"
	"fmt"

	"github.com/tturner/madscope/internal/mad"
	"github.com/tturner/madscope/internal/mad/modifier"
	"github.com/tturner/madscope/internal/mad/tree"
)

// decodeAggregate walks the members of an Aggregate. The member count is
// the low byte of the outer modifier. Each member body is confined to its
// declared length and the walk always resumes at that boundary.
func decodeAggregate(ctx *Context, buf []byte, off int, parent *tree.Node) (int, error) {
	count := int(ctx.Modifier & 0xFF)
	pureGet := ctx.Method == mad.MethodGet

	for i := 0; i < count; i++ {
		hdr, next, err := mad.DecodeAggregateHeader(buf, off)
		if err != nil {
			return off, rebase(ctx, err)
		}
		name := mad.AttributeName(ctx.Class, hdr.AttributeID)
		member := parent.Add(fmt.Sprintf("Member[%d] %s", i, name), ctx.Abs(off), mad.AggregateHeaderSize)
		member.AddHex("AttributeID", ctx.Abs(off), 2, uint64(hdr.AttributeID))
		member.AddBool("Error", ctx.Abs(off+2), 2, hdr.Error)
		member.AddValue("RequestLength", ctx.Abs(off+2), 2, fmt.Sprintf("%d (%d bytes)", hdr.RequestLength, hdr.BodyLength()))

		mctx := ctx.Member(hdr.AttributeID, hdr.Modifier)
		CheckModifier(mctx, ctx.Abs(off+4), member)
		if hdr.Error {
			ctx.Sink.Annotate(tree.KindStatusIndicatesError, tree.SeverityWarn, ctx.Abs(off+2), 2,
				"aggregate member %d (%s) reports an error", i, name)
		}

		if pureGet && i == count-1 {
			off = next
			break
		}

		bodyEnd := next + hdr.BodyLength()
		if bodyEnd > len(buf) {
			member.SetEnd(ctx.Abs(len(buf)))
			return len(buf), truncated(ctx, "aggregate member "+name, buf, next, hdr.BodyLength())
		}
		if hdr.AttributeID == mad.AttrSMPAggregate {
			ctx.Sink.Annotate(tree.KindUndecoded, tree.SeverityWarn, ctx.Abs(next), hdr.BodyLength(),
				"nested aggregate not decoded")
			Opaque(mctx, buf[:bodyEnd], next, member, "Data")
		} else if hdr.BodyLength() > 0 {
			end := Decode(mctx, buf[:bodyEnd], next, member)
			if end != bodyEnd {
				ctx.Sink.Annotate(tree.KindAggregateBoundaryMismatch, tree.SeverityNote, ctx.Abs(end), bodyEnd-end,
					"member %d consumed %d of %d declared bytes", i, end-next, hdr.BodyLength())
			}
		}
		off = bodyEnd
		member.SetEnd(ctx.Abs(off))
	}
	return off, nil
}

// CheckModifier renders ctx's modifier under parent and annotates bits that
// should be zero but are not.
func CheckModifier(ctx *Context, at int, parent *tree.Node) modifier.Result {
	res := ctx.Schemas.Check(ctx.Class, ctx.Attribute, ctx.Modifier)
	node := parent.AddHex("AttributeModifier", at, 4, uint64(ctx.Modifier))
	for _, v := range res.Values {
		node.AddValue(v.Name, at, 4, v.String())
	}
	for _, m := range res.Mismatches {
		ctx.Sink.Annotate(tree.KindSchemaModifierMismatch, tree.SeverityWarn, at, 4, "%s", m.Message)
	}
	return res
}

// rebase converts a buffer-relative truncation error to datagram offsets.
func rebase(ctx *Context, err error) error {
	var te *mad.TruncatedError
	if errors.As(err, &te) {
		out := *te
		out.Offset = ctx.Abs(te.Offset)
		return &out
	}
	return err
}
