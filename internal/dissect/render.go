package dissect

import (
	"fmt"

	"github.com/tturner/madscope/internal/mad"
	"github.com/tturner/madscope/internal/mad/tree"
)

func renderEnvelope(parent *tree.Node, e mad.Envelope) *tree.Node {
	n := parent.Add("Common Header", 0, mad.EnvelopeSize)
	n.AddUint("BaseVersion", 0, 1, uint64(e.BaseVersion))
	n.AddValue("MgmtClass", 1, 1, fmt.Sprintf("0x%02X (%s)", e.MgmtClass, mad.ClassName(e.MgmtClass)))
	n.AddUint("ClassVersion", 2, 1, uint64(e.ClassVersion))
	n.AddValue("Method", 3, 1, fmt.Sprintf("0x%02X (%s)", e.Method, mad.MethodName(e.Method)))

	status := n.AddHex("Status", 4, 2, uint64(e.Status))
	if e.DirectedRoute() {
		dir := "outbound"
		if e.Direction() {
			dir = "inbound"
		}
		status.AddValue("Direction", 4, 2, dir)
		status.AddHex("Code", 4, 2, uint64(e.StatusCode()))
		n.AddUint("HopPointer", 6, 1, uint64(e.HopPointer))
		n.AddUint("HopCount", 7, 1, uint64(e.HopCount))
	} else {
		f := e.Fields()
		status.AddHex("ClassSpecific", 4, 1, uint64(f.ClassSpecific))
		status.AddUint("Reserved", 5, 1, uint64(f.Reserved))
		status.AddUint("InvalidField", 5, 1, uint64(f.InvalidField))
		status.AddBool("RedirectRequired", 5, 1, f.Redirect)
		status.AddBool("Busy", 5, 1, f.Busy)
		n.AddHex("Reserved", 6, 2, uint64(e.Reserved1))
	}
	n.AddHex("TransactionID", 8, 8, e.TransactionID)
	n.AddValue("AttributeID", 16, 2, fmt.Sprintf("0x%04X (%s)", e.AttributeID, mad.AttributeName(e.MgmtClass, e.AttributeID)))
	n.AddHex("Reserved2", 18, 2, uint64(e.Reserved2))
	return n
}

func renderTransfer(parent *tree.Node, at int, h mad.TransferHeader) {
	n := parent.Add("Transfer Header", at, mad.TransferHeaderSize)
	n.AddUint("Version", at, 1, uint64(h.Version))
	n.AddValue("Type", at+1, 1, h.Type.String())
	n.AddUint("ResponseTime", at+2, 1, uint64(h.ResponseTime))
	n.AddBool("Last", at+2, 1, h.Last)
	n.AddBool("First", at+2, 1, h.First)
	n.AddBool("Active", at+2, 1, h.Active)
	n.AddHex("Status", at+3, 1, uint64(h.Status))
	switch h.Type {
	case mad.TransferData:
		n.AddUint("SegmentNumber", at+4, 4, uint64(h.SegmentNumber))
		n.AddUint("PayloadLength", at+8, 4, uint64(h.PayloadLength))
	case mad.TransferAck:
		n.AddUint("SegmentNumber", at+4, 4, uint64(h.SegmentNumber))
		n.AddUint("NewWindowLast", at+8, 4, uint64(h.NewWindowLast))
	default:
		n.AddHex("Reserved1", at+4, 4, uint64(h.Reserved1))
		n.AddHex("Reserved2", at+8, 4, uint64(h.Reserved2))
	}
}

func renderAdmin(parent *tree.Node, at int, h mad.AdminHeader) {
	n := parent.Add("Administration Header", at, mad.AdminHeaderSize)
	n.AddHex("Key", at, 8, h.Key)
	n.AddValue("AttributeOffset", at+8, 2, fmt.Sprintf("%d (%d bytes)", h.AttributeOffset, h.Stride()))
	n.AddHex("Reserved", at+10, 2, uint64(h.Reserved))
	n.AddHex("ComponentMask", at+12, 8, h.ComponentMask)
}

func renderSMP(parent *tree.Node, at int, h mad.SMPHeader, hops uint8) {
	size := mad.SMPLIDHeaderSize
	if h.Directed {
		size = mad.SMPDirectedHeaderSize
	}
	n := parent.Add("Subnet Management Header", at, size)
	n.AddHex("MKey", at, 8, h.MKey)
	if !h.Directed {
		return
	}
	n.AddHex("DrSLID", at+8, 4, uint64(h.DrSLID))
	n.AddHex("DrDLID", at+12, 4, uint64(h.DrDLID))
	n.AddValue("InitialPath", at+16, 64, formatPath(h.InitialHops(hops)))
	n.AddValue("ReturnPath", at+80, 64, formatPath(h.ReturnHops(hops)))
}

func formatPath(hops []byte) string {
	if len(hops) == 0 {
		return "(none)"
	}
	s := ""
	for i, p := range hops {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%d", p)
	}
	return s
}
