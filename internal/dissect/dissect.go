// Package dissect runs one management datagram through the decoding
// pipeline: common header, class routing, transfer header, reassembly,
// record walking and attribute dispatch.
package dissect

import (
	"errors"
	"fmt"
	"time"

	"github.com/tturner/madscope/internal/logging"
	"github.com/tturner/madscope/internal/mad"
	"github.com/tturner/madscope/internal/mad/attr"
	"github.com/tturner/madscope/internal/mad/modifier"
	"github.com/tturner/madscope/internal/mad/reassembly"
	"github.com/tturner/madscope/internal/mad/records"
	"github.com/tturner/madscope/internal/mad/router"
	"github.com/tturner/madscope/internal/mad/tree"
	"github.com/tturner/madscope/internal/metrics"
)

// Options configures a Decoder.
type Options struct {
	// Ranges overrides the class routing sets. The zero value selects the
	// defaults.
	Ranges *router.Ranges
	// Reassemble collects multi-segment transfers.
	Reassemble bool
	// ParseOnErrorStatus decodes the payload even when the status field
	// reports an error.
	ParseOnErrorStatus bool
	// Reassembly is the shared transaction table. When nil the decoder
	// creates one from Reassemble, ReassemblyTimeout and MaxTransactions.
	Reassembly        *reassembly.Table
	ReassemblyTimeout time.Duration
	MaxTransactions   int

	Logger     *logging.Logger
	Metrics    *metrics.Sink
	Attributes *attr.Table
	Schemas    *modifier.Table
}

// Decoder decodes datagrams. Reassembly state persists across calls.
type Decoder struct {
	opts    Options
	router  *router.Router
	table   *reassembly.Table
	log     *logging.Logger
	metrics *metrics.Sink
	attrs   *attr.Table
	schemas *modifier.Table
}

// New builds a decoder.
func New(opts Options) *Decoder {
	ranges := router.DefaultRanges()
	if opts.Ranges != nil {
		ranges = *opts.Ranges
	}
	d := &Decoder{
		opts:    opts,
		router:  router.New(ranges),
		table:   opts.Reassembly,
		log:     opts.Logger,
		metrics: opts.Metrics,
		attrs:   opts.Attributes,
		schemas: opts.Schemas,
	}
	if d.table == nil {
		d.table = reassembly.New(reassembly.Options{
			Enabled:         opts.Reassemble,
			Timeout:         opts.ReassemblyTimeout,
			MaxTransactions: opts.MaxTransactions,
		})
	}
	if d.log == nil {
		d.log = logging.Nop()
	}
	if d.attrs == nil {
		d.attrs = attr.DefaultTable()
	}
	if d.schemas == nil {
		d.schemas = modifier.DefaultTable()
	}
	return d
}

// Reassembly returns the decoder's transaction table.
func (d *Decoder) Reassembly() *reassembly.Table {
	return d.table
}

// Router returns the class router.
func (d *Decoder) Router() *router.Router {
	return d.router
}

// Decode decodes one datagram. It never fails; problems are reported as
// annotations on the result.
func (d *Decoder) Decode(conv reassembly.Conversation, data []byte) *Datagram {
	return d.DecodeFrame(0, time.Time{}, conv, data)
}

// DecodeFrame decodes one captured datagram and records frame metadata.
func (d *Decoder) DecodeFrame(frame int, ts time.Time, conv reassembly.Conversation, data []byte) *Datagram {
	start := time.Now()
	dg := &Datagram{
		Frame:        frame,
		Timestamp:    ts,
		Conversation: conv,
		Length:       len(data),
		Records:      -1,
		Raw:          data,
		Root:         tree.New("Management Datagram", 0, len(data)),
	}
	sink := &tree.Sink{}
	d.run(dg, sink, data)
	dg.Annotations = sink.Annotations

	elapsed := time.Since(start)
	d.log.Debug("frame %d: %s (%d annotations, %v)", frame, dg.Summary(), len(dg.Annotations), elapsed)
	if d.metrics != nil {
		d.metrics.Record(d.metric(dg, elapsed))
	}
	return dg
}

func (d *Decoder) run(dg *Datagram, sink *tree.Sink, data []byte) {
	env, off, err := mad.DecodeEnvelope(data, 0)
	if err != nil {
		dg.Truncated = true
		annotateTruncation(sink, err, 0, len(data))
		if len(data) > 0 {
			dg.Root.AddValue("Data", 0, len(data), fmt.Sprintf("%X", data))
		}
		return
	}
	dg.Envelope = env
	envNode := renderEnvelope(dg.Root, env)

	dg.Handler = d.router.Route(env.MgmtClass)
	ctx := d.context(env, sink)
	dg.Modifier = attr.CheckModifier(ctx, 20, envNode).Values

	stopped := false
	if env.StatusError() {
		sink.Annotate(tree.KindStatusIndicatesError, tree.SeverityWarn, 4, 2,
			"status 0x%04X indicates an error", env.StatusCode())
		stopped = !d.opts.ParseOnErrorStatus
	}

	switch dg.Handler {
	case router.HandlerSubnLID, router.HandlerSubnDirected:
		d.subnet(dg, ctx, sink, data, off, stopped)
	case router.HandlerPerf:
		d.payload(dg, ctx, sink, data, off, nil, stopped, dg.Root)
	case router.HandlerSubnAdm, router.HandlerPerfAdm:
		d.administration(dg, ctx, sink, data, off, stopped)
	case router.HandlerVendorRMPP:
		th, next, err := mad.DecodeTransferHeader(data, off)
		if err != nil {
			annotateTruncation(sink, err, off, len(data))
			return
		}
		dg.Transfer = &th
		renderTransfer(dg.Root, off, th)
		attr.Opaque(ctx, data, next, dg.Root, "Vendor Data")
	default:
		if dg.Handler == router.HandlerReserved || dg.Handler == router.HandlerUnknown {
			sink.Annotate(tree.KindUndecoded, tree.SeverityNote, off, len(data)-off,
				"class 0x%02X has no decoder", env.MgmtClass)
		}
		attr.Opaque(ctx, data, off, dg.Root, dg.Handler.String()+" Data")
	}
}

func (d *Decoder) context(env mad.Envelope, sink *tree.Sink) *attr.Context {
	ctx := &attr.Context{
		Class:     env.MgmtClass,
		Method:    env.Method,
		Attribute: env.AttributeID,
		Modifier:  env.AttributeModifier,
		Table:     d.attrs,
		Schemas:   d.schemas,
		Sink:      sink,
	}
	ctx.Values = d.schemas.Check(env.MgmtClass, env.AttributeID, env.AttributeModifier).Values
	return ctx
}

func (d *Decoder) subnet(dg *Datagram, ctx *attr.Context, sink *tree.Sink, data []byte, off int, stopped bool) {
	directed := dg.Handler == router.HandlerSubnDirected
	h, next, err := mad.DecodeSMPHeader(data, off, directed)
	if err != nil {
		annotateTruncation(sink, err, off, len(data))
		return
	}
	dg.SMP = &h
	renderSMP(dg.Root, off, h, dg.Envelope.HopCount)
	d.payload(dg, ctx, sink, data, next, nil, stopped, dg.Root)
}

func (d *Decoder) administration(dg *Datagram, ctx *attr.Context, sink *tree.Sink, data []byte, off int, stopped bool) {
	th, next, err := mad.DecodeTransferHeader(data, off)
	if err != nil {
		annotateTruncation(sink, err, off, len(data))
		return
	}
	dg.Transfer = &th
	renderTransfer(dg.Root, off, th)

	ah, body, err := mad.DecodeAdminHeader(data, next)
	if err != nil {
		annotateTruncation(sink, err, next, len(data))
		return
	}
	dg.Admin = &ah
	renderAdmin(dg.Root, next, ah)

	if stopped {
		d.undecoded(sink, data, body)
		return
	}

	key := reassembly.Key{Conversation: dg.Conversation, TransactionID: dg.Envelope.TransactionID}
	res := d.table.Submit(key, th, data[body:])
	info := &TransferInfo{
		Outcome:   res.Outcome,
		Segment:   res.Segment,
		Stored:    res.Stored,
		Missing:   res.Missing,
		Absent:    res.MissingCount,
		Discarded: res.Discarded,
		Payload:   len(res.Payload),
	}
	dg.Transfers = info
	for _, ev := range res.Evicted {
		sink.Annotate(tree.KindReassemblyStalled, tree.SeverityWarn, 8, 8,
			"transaction %s evicted with %d segments stored", ev.Key, ev.Stored)
		d.log.Verbose("reassembly: evicted %s (%d stored, missing %s)", ev.Key, ev.Stored,
			reassembly.DescribeMissing(ev.Missing, ev.MissingCount))
	}

	switch res.Outcome {
	case reassembly.OutcomeNoTransfer, reassembly.OutcomeBypass:
		d.payload(dg, ctx, sink, data[:body+len(res.Payload)], body, &ah, false, dg.Root)
	case reassembly.OutcomeInvalid:
		sink.Annotate(tree.KindReassembly, tree.SeverityWarn, off, mad.TransferHeaderSize, "%s", res.Reason)
		d.payload(dg, ctx, sink, data[:body+len(res.Payload)], body, &ah, false, dg.Root)
	case reassembly.OutcomeDisabled:
		if res.Payload != nil {
			sink.Annotate(tree.KindReassembly, tree.SeverityNote, off, mad.TransferHeaderSize,
				"reassembly disabled; decoding segment 1 only")
			d.payload(dg, ctx, sink, data, body, &ah, false, dg.Root)
			return
		}
		sink.Annotate(tree.KindUndecoded, tree.SeverityNote, body, len(data)-body,
			"segment %d not decoded with reassembly disabled", res.Segment)
		attr.Opaque(ctx, data, body, dg.Root, "Segment Data")
	case reassembly.OutcomeCollecting, reassembly.OutcomeDuplicate:
		msg := fmt.Sprintf("segment %d stored (%d held)", res.Segment, res.Stored)
		if res.Outcome == reassembly.OutcomeDuplicate {
			msg = fmt.Sprintf("duplicate segment %d ignored", res.Segment)
		}
		if res.MissingCount > 0 {
			msg += ", missing " + reassembly.DescribeMissing(res.Missing, res.MissingCount)
		}
		sink.Annotate(tree.KindReassembly, tree.SeverityNote, off, mad.TransferHeaderSize, "%s", msg)
		attr.Opaque(ctx, data, body, dg.Root, "Segment Data")
		d.log.Debug("reassembly: %s %s", key, msg)
	case reassembly.OutcomeComplete:
		sink.Annotate(tree.KindReassembly, tree.SeverityNote, off, mad.TransferHeaderSize,
			"transfer complete: %d segments, %d bytes", res.Stored, len(res.Payload))
		attr.Opaque(ctx, data, body, dg.Root, "Segment Data")
		dg.Reassembled = res.Payload
		node := dg.Root.Add("Reassembled", 0, len(res.Payload))
		d.payload(dg, ctx, sink, res.Payload, 0, &ah, false, node)
		d.log.Verbose("reassembly: %s complete (%d segments, %d bytes)", key, res.Stored, len(res.Payload))
	case reassembly.OutcomeTerminated:
		msg := fmt.Sprintf("%s segment ends the transfer", res.Reason)
		if res.Discarded {
			msg += "; collected segments discarded"
		}
		sink.Annotate(tree.KindReassembly, tree.SeverityNote, off, mad.TransferHeaderSize, "%s", msg)
		d.log.Debug("reassembly: %s %s", key, msg)
	}
}

// payload decodes the attribute data at buf[off:]. Administration table
// responses are walked record by record using the header stride.
func (d *Decoder) payload(dg *Datagram, ctx *attr.Context, sink *tree.Sink, buf []byte, off int, admin *mad.AdminHeader, stopped bool, parent *tree.Node) {
	if stopped {
		d.undecoded(sink, buf, off)
		return
	}
	if off >= len(buf) {
		return
	}
	if admin != nil && records.IsTable(ctx.Method) {
		dg.Records = d.walk(ctx, sink, buf, off, admin.Stride(), parent)
		return
	}
	end := attr.Decode(ctx, buf, off, parent)
	if end < len(buf) {
		parent.AddValue("Padding", ctx.Abs(end), len(buf)-end, fmt.Sprintf("%d bytes", len(buf)-end))
	}
}

func (d *Decoder) walk(ctx *attr.Context, sink *tree.Sink, buf []byte, off, stride int, parent *tree.Node) int {
	node := parent.Add("Records", ctx.Abs(off), len(buf)-off)
	if stride <= 0 {
		sink.Annotate(tree.KindUndecoded, tree.SeverityNote, ctx.Abs(off), len(buf)-off,
			"attribute offset is zero; no records walked")
		return 0
	}
	entry, known := d.attrs.Lookup(ctx.Class, ctx.Attribute)
	if !known {
		sink.Annotate(tree.KindUnrecognizedAttribute, tree.SeverityWarn, ctx.Abs(off), len(buf)-off,
			"no decoder for record attribute %s (0x%04X)", mad.AttributeName(ctx.Class, ctx.Attribute), ctx.Attribute)
	}

	n, rem := records.Walk(buf[off:], off, stride, func(r records.Record) bool {
		end := r.Offset + len(r.Data)
		rec := node.Add(fmt.Sprintf("Record %d", r.Index), ctx.Abs(r.Offset), len(r.Data))
		if known {
			attr.DecodeEntry(ctx, entry, buf[:end], r.Offset, rec)
		} else {
			attr.Opaque(ctx, buf[:end], r.Offset, rec, "Data")
		}
		return true
	})
	node.Name = fmt.Sprintf("Records (%d x %d bytes)", n, stride)
	if rem.Length > 0 {
		node.AddValue("Padding", ctx.Abs(rem.Offset), rem.Length, fmt.Sprintf("%d bytes", rem.Length))
	}
	d.log.Debug("records: %d x %d bytes, %d trailing", n, stride, rem.Length)
	return n
}

func (d *Decoder) undecoded(sink *tree.Sink, buf []byte, off int) {
	if off >= len(buf) {
		return
	}
	sink.Annotate(tree.KindUndecoded, tree.SeverityNote, off, len(buf)-off,
		"payload not decoded because the status reports an error")
}

// Expire drops stalled transactions and reports each one.
func (d *Decoder) Expire() []tree.Annotation {
	return d.stalled(d.table.Expire(), "timed out")
}

// Pending reports transactions still collecting, typically at end of input.
func (d *Decoder) Pending() []tree.Annotation {
	return d.stalled(d.table.Pending(), "never completed")
}

func (d *Decoder) stalled(list []reassembly.Stalled, why string) []tree.Annotation {
	sink := &tree.Sink{}
	for _, st := range list {
		sink.Annotate(tree.KindReassemblyStalled, tree.SeverityWarn, 0, 0,
			"transaction %s %s: %d segments stored, last seen %t, missing %s",
			st.Key, why, st.Stored, st.HaveLast, reassembly.DescribeMissing(st.Missing, st.MissingCount))
		d.log.Verbose("reassembly: %s %s after %v idle", st.Key, why, st.Idle)
	}
	return sink.Annotations
}

func (d *Decoder) metric(dg *Datagram, elapsed time.Duration) metrics.Metric {
	m := metrics.Metric{
		Timestamp:   dg.Timestamp,
		Frame:       dg.Frame,
		Class:       dg.ClassName(),
		Method:      dg.MethodName(),
		Attribute:   dg.AttributeName(),
		Handler:     dg.Handler.String(),
		Size:        dg.Length,
		DecodeUs:    float64(elapsed.Nanoseconds()) / 1e3,
		StatusError: !dg.Truncated && dg.Envelope.StatusError(),
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	if dg.Transfers != nil {
		m.Reassembly = dg.Transfers.Outcome.String()
	}
	for _, a := range dg.Annotations {
		if a.Kind == tree.KindReassembly {
			continue
		}
		m.Annotations = append(m.Annotations, string(a.Kind))
	}
	return m
}

func annotateTruncation(sink *tree.Sink, err error, off, have int) {
	var te *mad.TruncatedError
	if errors.As(err, &te) {
		sink.Annotate(tree.KindTruncatedBuffer, tree.SeverityError, te.Offset, te.Have,
			"%s needs %d bytes, %d available", te.What, te.Need, te.Have)
		return
	}
	sink.Annotate(tree.KindTruncatedBuffer, tree.SeverityError, off, have-off, "%v", err)
}
