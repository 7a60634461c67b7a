package attr

import (
	"github.com/tturner/madscope/internal/mad"
	"github.com/tturner/madscope/internal/mad/tree"
)

var (
	nodeTypeNames = map[uint64]string{1: "FI", 2: "Switch"}

	portStateNames = map[uint64]string{
		0: "NoStateChange", 1: "Down", 2: "Init", 3: "Armed", 4: "Active",
	}

	physStateNames = map[uint64]string{
		0: "NoStateChange", 2: "Polling", 3: "Disabled", 4: "Training",
		5: "LinkUp", 6: "LinkErrorRecovery", 9: "Offline", 11: "Test",
	}

	smStateNames = map[uint64]string{
		0: "Inactive", 1: "Discovering", 2: "Standby", 3: "Master",
	}

	noticeTypeNames = map[uint64]string{
		0: "Fatal", 1: "Urgent", 2: "Security", 3: "SubnetManagement", 4: "Informational",
	}
)

var (
	nodeDescriptionLayout = &Layout{Name: "NodeDescription", Size: 64, Fields: []Field{
		text("NodeString", 0, 64),
	}}

	nodeInfoLayout = &Layout{Name: "NodeInfo", Size: 44, Fields: []Field{
		u8("BaseVersion", 0),
		u8("ClassVersion", 1),
		enum("NodeType", 2, 1, 0, 8, nodeTypeNames),
		u8("NumPorts", 3),
		hex("SystemImageGUID", 8, 8),
		hex("NodeGUID", 16, 8),
		hex("PortGUID", 24, 8),
		u16("PartitionCap", 32),
		hex("DeviceID", 34, 2),
		hex("Revision", 36, 4),
		bits("LocalPortNum", 40, 4, 24, 8),
		{Name: "VendorID", Offset: 40, Size: 4, Width: 24, Display: DisplayHex},
	}}

	switchInfoLayout = &Layout{Name: "SwitchInfo", Size: 84, Fields: []Field{
		u32("LinearFDBCap", 0),
		u32("MulticastFDBCap", 8),
		u32("LinearFDBTop", 12),
		u32("MulticastFDBTop", 16),
		u32("CollectiveCap", 20),
		u32("CollectiveTop", 24),
		gid("IPAddrIPv6", 32),
		raw("IPAddrIPv4", 60, 4),
		bits("LifeTimeValue", 64, 1, 3, 5),
		flag("PortStateChange", 64, 1, 2),
		u16("PartitionEnforcementCap", 66),
		u8("PortGroupCap", 68),
		u8("PortGroupTop", 69),
		hex("RoutingModeSupported", 70, 1),
		hex("RoutingModeEnabled", 71, 1),
		hex("CapabilityMask", 80, 2),
		hex("CapabilityMaskCollectives", 82, 2),
	}}

	portStatesFields = []Field{
		flag("LEDEnabled", 0, 4, 14),
		flag("IsSMConfigurationStarted", 0, 4, 13),
		flag("NeighborNormal", 0, 4, 12),
		bits("OfflineDisabledReason", 0, 4, 8, 4),
		enum("PortPhysicalState", 0, 4, 4, 4, physStateNames),
		enum("PortState", 0, 4, 0, 4, portStateNames),
	}

	portInfoLayout = &Layout{Name: "PortInfo", Size: 242, Stride: 248, Fields: join(
		[]Field{
			u32("LID", 0),
			hex("FlowControlMask", 4, 4),
			u8("VLPreemptCap", 8),
			bits("VLCap", 9, 1, 0, 5),
			u16("VLHighLimit", 10),
			u16("VLPreemptingLimit", 12),
			u8("VLArbitrationHighCap", 14),
			u8("VLArbitrationLowCap", 15),
		},
		shift(portStatesFields, 16),
		[]Field{
			bits("PortType", 20, 1, 0, 4),
			hex("MultiCollectMask", 21, 1),
			bits("MasterSMSL", 22, 1, 0, 5),
			bits("LMC", 23, 1, 0, 4),
			hex("MKey", 32, 8),
			hex("SubnetPrefix", 40, 8),
			u8("NeighborPortNum", 48),
			u8("LocalPortNum", 49),
			enum("NeighborNodeType", 50, 1, 0, 8, nodeTypeNames),
			u32("MasterSMLID", 52),
			bits("SMTrapQP", 56, 4, 0, 24),
			bits("SAQP", 60, 4, 0, 24),
			hex("NeighborNodeGUID", 64, 8),
			hex("CapabilityMask", 72, 4),
			hex("CapabilityMask3", 76, 2),
			u16("OverallBufferSpace", 80),
			hex("LinkSpeedSupported", 82, 2),
			hex("LinkSpeedEnabled", 84, 2),
			hex("LinkSpeedActive", 86, 2),
			hex("LinkWidthSupported", 88, 2),
			hex("LinkWidthEnabled", 90, 2),
			hex("LinkWidthActive", 92, 2),
		},
	)}

	portStateInfoLayout = &Layout{Name: "PortStateInfo", Size: 8, Fields: join(
		shift(portStatesFields, 0),
		[]Field{
			hex("LinkWidthDowngradeTxActive", 4, 2),
			hex("LinkWidthDowngradeRxActive", 6, 2),
		},
	)}

	partitionBlockLayout = &Layout{Name: "PartitionTableBlock", Size: 64,
		Fields: array("PKey", 0, 2, 32, DisplayHex)}

	slToSCLayout = &Layout{Name: "SLtoSCMappingTable", Size: 32,
		Fields: array("SC", 0, 1, 32, DisplayDec)}

	scToSLLayout = &Layout{Name: "SCtoSLMappingTable", Size: 32,
		Fields: array("SL", 0, 1, 32, DisplayDec)}

	scToSCLayout = &Layout{Name: "SCtoSCMappingTable", Size: 32,
		Fields: array("SC", 0, 1, 32, DisplayDec)}

	scToVLLayout = &Layout{Name: "SCtoVLMappingTable", Size: 32,
		Fields: array("VL", 0, 1, 32, DisplayDec)}

	vlArbitrationLayout = &Layout{Name: "VLArbitrationTable", Size: 256,
		Fields: vlArbEntries(128)}

	linearBlockLayout = &Layout{Name: "LinearForwardingBlock", Size: 64,
		Fields: array("Port", 0, 1, 64, DisplayDec)}

	multicastBlockLayout = &Layout{Name: "MulticastForwardingBlock", Size: 64,
		Fields: array("PortMask", 0, 8, 8, DisplayHex)}

	smInfoLayout = &Layout{Name: "SMInfo", Size: 26, Fields: []Field{
		hex("PortGUID", 0, 8),
		hex("SMKey", 8, 8),
		u32("ActCount", 16),
		u32("ElapsedTime", 20),
		bits("Priority", 24, 1, 4, 4),
		bits("ElevatedPriority", 24, 1, 0, 4),
		bits("InitialPriority", 25, 1, 4, 4),
		enum("SMState", 25, 1, 0, 4, smStateNames),
	}}

	ledInfoLayout = &Layout{Name: "LedInfo", Size: 8, Fields: []Field{
		flag("LedMask", 0, 4, 31),
	}}

	bufferControlLayout = &Layout{Name: "BufferControlTable", Size: 132, Stride: 136, Fields: join(
		[]Field{u16("TxOverallSharedLimit", 2)},
		vlBuffers(32),
	)}

	noticeLayout = &Layout{Name: "Notice", Size: 96, Fields: []Field{
		flag("IsGeneric", 0, 1, 7),
		enum("Type", 0, 1, 0, 7, noticeTypeNames),
		{Name: "ProducerType", Offset: 0, Size: 4, Width: 24, Display: DisplayHex},
		u16("TrapNumber", 4),
		flag("Toggle", 6, 2, 15),
		bits("Count", 6, 2, 0, 15),
		u32("IssuerLID", 8),
		gid("IssuerGID", 16),
		raw("Data", 32, 64),
	}}
)

func registerSubnet(t *Table) {
	smp := mad.ClassSubnLID
	t.Register(smp, mad.AttrSMPNotice, noticeLayout.Entry())
	t.Register(smp, mad.AttrSMPNodeDescription, nodeDescriptionLayout.Entry())
	t.Register(smp, mad.AttrSMPNodeInfo, nodeInfoLayout.Entry())
	t.Register(smp, mad.AttrSMPSwitchInfo, switchInfoLayout.Entry())
	t.Register(smp, mad.AttrSMPPortInfo, Repeated(portInfoLayout, "NumPorts", "StartPort", "Port"))
	t.Register(smp, mad.AttrSMPPartitionTable, Repeated(partitionBlockLayout, "NumBlocks", "StartBlock", "Block"))
	t.Register(smp, mad.AttrSMPSLtoSC, slToSCLayout.Entry())
	t.Register(smp, mad.AttrSMPSCtoSL, scToSLLayout.Entry())
	t.Register(smp, mad.AttrSMPSCtoSC, scToSCLayout.Entry())
	for _, a := range []uint16{mad.AttrSMPSCtoVLr, mad.AttrSMPSCtoVLt, mad.AttrSMPSCtoVLnt} {
		t.Register(smp, a, Repeated(scToVLLayout, "NumPorts", "StartPort", "Port"))
	}
	t.Register(smp, mad.AttrSMPVLArbitration, Repeated(vlArbitrationLayout, "NumPorts", "StartPort", "Port"))
	t.Register(smp, mad.AttrSMPLinearFwdTable, Repeated(linearBlockLayout, "NumBlocks", "StartBlock", "Block"))
	t.Register(smp, mad.AttrSMPMulticastFwdTable, Repeated(multicastBlockLayout, "NumBlocks", "StartBlock", "Block"))
	t.Register(smp, mad.AttrSMPSMInfo, smInfoLayout.Entry())
	t.Register(smp, mad.AttrSMPLedInfo, Repeated(ledInfoLayout, "NumPorts", "StartPort", "Port"))
	t.Register(smp, mad.AttrSMPCableInfo, Entry{Name: "CableInfo", Decode: decodeCableInfo})
	t.Register(smp, mad.AttrSMPPortStateInfo, Repeated(portStateInfoLayout, "NumPorts", "StartPort", "Port"))
	t.Register(smp, mad.AttrSMPBufferControlTable, Repeated(bufferControlLayout, "NumPorts", "StartPort", "Port"))
	t.Register(smp, mad.AttrSMPAggregate, Entry{Name: "Aggregate", Decode: decodeAggregate})
}

// decodeCableInfo renders Length+1 bytes of cable memory starting at the
// modifier's Address.
func decodeCableInfo(ctx *Context, buf []byte, off int, parent *tree.Node) (int, error) {
	addr, _ := ctx.Field("Address")
	length, _ := ctx.Field("Length")
	n := int(length) + 1
	parent.AddUint("Address", ctx.Abs(off), 0, addr)
	if off+n > len(buf) {
		return off, truncated(ctx, "CableInfo.Data", buf, off, n)
	}
	parent.AddValue("Data", ctx.Abs(off), n, hexBytes(buf[off:off+n]))
	return off + n, nil
}

func vlArbEntries(count int) []Field {
	fields := make([]Field, 0, count*2)
	for i := 0; i < count; i++ {
		fields = append(fields,
			Field{Name: indexed("VL", i), Offset: i * 2, Size: 1, Width: 5},
			Field{Name: indexed("Weight", i), Offset: i*2 + 1, Size: 1},
		)
	}
	return fields
}

func vlBuffers(count int) []Field {
	fields := make([]Field, 0, count*2)
	for i := 0; i < count; i++ {
		fields = append(fields,
			u16(indexed("Dedicated", i), 4+i*4),
			u16(indexed("Shared", i), 6+i*4),
		)
	}
	return fields
}

// shift returns a copy of fields moved by delta bytes.
func shift(fields []Field, delta int) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		f.Offset += delta
		out[i] = f
	}
	return out
}
