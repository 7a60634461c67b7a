package modifier

import "github.com/tturner/madscope/internal/mad"

var smInfoControl = map[uint64]string{
	0: "Get",
	1: "Handover",
	2: "Acknowledge",
	3: "Disable",
	4: "Standby",
	5: "Discover",
}

// Named layouts. Several attributes share one.
var (
	SchemaPorts = Schema{Name: "ports", Fields: []Field{
		{Name: "NumPorts", Width: 8, Offset: 24},
		{Name: "Reserved", Width: 16, Offset: 8, Reserved: true},
		{Name: "StartPort", Width: 8, Offset: 0},
	}}
	SchemaPortInfo = Schema{Name: "port_info", Fields: []Field{
		{Name: "NumPorts", Width: 8, Offset: 24},
		{Name: "Reserved", Width: 14, Offset: 10, Reserved: true},
		{Name: "StartOfSMConfig", Width: 1, Offset: 9},
		{Name: "Reserved2", Width: 1, Offset: 8, Reserved: true},
		{Name: "StartPort", Width: 8, Offset: 0},
	}}
	SchemaPartitionBlocks = Schema{Name: "partition_blocks", Fields: []Field{
		{Name: "NumBlocks", Width: 8, Offset: 24},
		{Name: "Port", Width: 8, Offset: 16},
		{Name: "Reserved", Width: 5, Offset: 11, Reserved: true},
		{Name: "StartBlock", Width: 11, Offset: 0},
	}}
	SchemaLinearBlocks = Schema{Name: "linear_blocks", Fields: []Field{
		{Name: "NumBlocks", Width: 8, Offset: 24},
		{Name: "Reserved", Width: 6, Offset: 18, Reserved: true},
		{Name: "StartBlock", Width: 18, Offset: 0},
	}}
	SchemaMulticastBlocks = Schema{Name: "multicast_blocks", Fields: []Field{
		{Name: "NumBlocks", Width: 6, Offset: 26},
		{Name: "Position", Width: 2, Offset: 24},
		{Name: "Reserved", Width: 4, Offset: 20, Reserved: true},
		{Name: "StartBlock", Width: 20, Offset: 0},
	}}
	SchemaVLArbitration = Schema{Name: "vl_arbitration", Fields: []Field{
		{Name: "NumPorts", Width: 8, Offset: 24},
		{Name: "Section", Width: 8, Offset: 16, Names: map[uint64]string{0: "LowPriority", 1: "HighPriority", 2: "PreemptTable", 3: "PreemptMatrix"}},
		{Name: "Reserved", Width: 8, Offset: 8, Reserved: true},
		{Name: "StartPort", Width: 8, Offset: 0},
	}}
	SchemaCableInfo = Schema{Name: "cable_info", Fields: []Field{
		{Name: "Reserved", Width: 2, Offset: 30, Reserved: true},
		{Name: "Address", Width: 11, Offset: 19},
		{Name: "Length", Width: 6, Offset: 13},
		{Name: "Reserved2", Width: 5, Offset: 8, Reserved: true},
		{Name: "Port", Width: 8, Offset: 0},
	}}
	SchemaSMInfo = Schema{Name: "sm_info", Fields: []Field{
		{Name: "Reserved", Width: 24, Offset: 8, Reserved: true},
		{Name: "Control", Width: 8, Offset: 0, Names: smInfoControl},
	}}
	SchemaAggregate = Schema{Name: "aggregate", Fields: []Field{
		{Name: "Reserved", Width: 24, Offset: 8, Reserved: true},
		{Name: "Count", Width: 8, Offset: 0},
	}}
	SchemaCongestionBlocks = Schema{Name: "congestion_blocks", Fields: []Field{
		{Name: "NumBlocks", Width: 8, Offset: 24},
		{Name: "Reserved", Width: 13, Offset: 11, Reserved: true},
		{Name: "StartBlock", Width: 11, Offset: 0},
	}}
	SchemaPMPorts = Schema{Name: "pm_ports", Fields: []Field{
		{Name: "NumPorts", Width: 8, Offset: 24},
		{Name: "Reserved", Width: 24, Offset: 0, Reserved: true},
	}}
	SchemaInOutPort = Schema{Name: "in_out_port", Fields: []Field{
		{Name: "Reserved", Width: 16, Offset: 16, Reserved: true},
		{Name: "InputPort", Width: 8, Offset: 8},
		{Name: "OutputPort", Width: 8, Offset: 0},
	}}
	SchemaImageSelect = Schema{Name: "image_select", Fields: []Field{
		{Name: "Reserved", Width: 31, Offset: 1, Reserved: true},
		{Name: "Historical", Width: 1, Offset: 0},
	}}
)

func registerDefaults(t *Table) {
	smp := mad.ClassSubnLID

	t.Register(smp, mad.AttrSMPPortInfo, SchemaPortInfo)
	for _, attr := range []uint16{
		mad.AttrSMPPortStateInfo,
		mad.AttrSMPBufferControlTable,
		mad.AttrSMPLedInfo,
		mad.AttrSMPSCtoVLr,
		mad.AttrSMPSCtoVLt,
		mad.AttrSMPSCtoVLnt,
		mad.AttrSMPSwitchPortCongestion,
	} {
		t.Register(smp, attr, SchemaPorts)
	}
	t.Register(smp, mad.AttrSMPPartitionTable, SchemaPartitionBlocks)
	t.Register(smp, mad.AttrSMPLinearFwdTable, SchemaLinearBlocks)
	t.Register(smp, mad.AttrSMPMulticastFwdTable, SchemaMulticastBlocks)
	t.Register(smp, mad.AttrSMPVLArbitration, SchemaVLArbitration)
	t.Register(smp, mad.AttrSMPCableInfo, SchemaCableInfo)
	t.Register(smp, mad.AttrSMPSMInfo, SchemaSMInfo)
	t.Register(smp, mad.AttrSMPAggregate, SchemaAggregate)
	t.Register(smp, mad.AttrSMPHFICongestionControl, SchemaCongestionBlocks)
	t.Register(smp, mad.AttrSMPSCtoSC, SchemaInOutPort)

	for _, attr := range []uint16{
		mad.AttrPMPortStatus,
		mad.AttrPMClearPortStatus,
		mad.AttrPMDataPortCounters,
		mad.AttrPMErrorPortCounters,
		mad.AttrPMErrorInfo,
	} {
		t.Register(mad.ClassPerf, attr, SchemaPMPorts)
	}

	t.Register(mad.ClassPerfAdm, mad.AttrPAGetImageInfo, SchemaImageSelect)
}
