package attr

import "github.com/tturner/madscope/internal/mad"

var classPortInfoLayout = &Layout{Name: "ClassPortInfo", Size: 80, Fields: []Field{
	u8("BaseVersion", 0),
	u8("ClassVersion", 1),
	hex("CapMask", 2, 2),
	{Name: "CapMask2", Offset: 4, Size: 4, Bit: 5, Width: 27, Display: DisplayHex},
	bits("RespTimeValue", 4, 4, 0, 5),
	gid("RedirectGID", 8),
	bits("RedirectTClass", 24, 4, 24, 8),
	bits("RedirectSL", 24, 4, 19, 5),
	{Name: "RedirectFlowLabel", Offset: 24, Size: 4, Width: 19, Display: DisplayHex},
	u32("RedirectLID", 28),
	bits("RedirectQP", 32, 4, 0, 24),
	hex("RedirectQKey", 36, 4),
	gid("TrapGID", 40),
	bits("TrapTClass", 56, 4, 24, 8),
	u32("TrapLID", 60),
	bits("TrapHopLimit", 64, 4, 24, 8),
	bits("TrapQP", 64, 4, 0, 24),
	hex("TrapQKey", 68, 4),
	hex("TrapPKey", 72, 2),
	hex("RedirectPKey", 74, 2),
	bits("TrapSL", 76, 1, 0, 5),
}}

var (
	informInfoLayout = &Layout{Name: "InformInfo", Size: 40, Fields: []Field{
		gid("GID", 0),
		u32("LIDRangeBegin", 16),
		u32("LIDRangeEnd", 20),
		u8("IsGeneric", 24),
		u8("Subscribe", 25),
		u16("Type", 26),
		u16("TrapNumber", 28),
		bits("QPN", 32, 4, 8, 24),
		bits("RespTimeValue", 32, 4, 0, 5),
		{Name: "ProducerType", Offset: 36, Size: 4, Width: 24, Display: DisplayHex},
	}}

	nodeRecordLayout = &Layout{Name: "NodeRecord", Size: 116,
		Fields: []Field{u32("LID", 0)},
		Subs: []Sub{
			{Name: "NodeInfo", Offset: 8, Layout: nodeInfoLayout},
			{Name: "NodeDescription", Offset: 52, Layout: nodeDescriptionLayout},
		},
	}

	portInfoRecordLayout = &Layout{Name: "PortInfoRecord", Size: 250,
		Fields: []Field{
			u32("EndPortLID", 0),
			u8("PortNum", 4),
			hex("Options", 5, 1),
		},
		Subs: []Sub{{Name: "PortInfo", Offset: 8, Layout: portInfoLayout}},
	}

	switchInfoRecordLayout = &Layout{Name: "SwitchInfoRecord", Size: 92,
		Fields: []Field{u32("LID", 0)},
		Subs:   []Sub{{Name: "SwitchInfo", Offset: 8, Layout: switchInfoLayout}},
	}

	lftRecordLayout = &Layout{Name: "LinearFDBRecord", Size: 72,
		Fields: []Field{
			u32("LID", 0),
			bits("BlockNum", 4, 4, 0, 18),
		},
		Subs: []Sub{{Name: "LinearFDB", Offset: 8, Layout: linearBlockLayout}},
	}

	smInfoRecordLayout = &Layout{Name: "SMInfoRecord", Size: 34,
		Fields: []Field{u32("LID", 0)},
		Subs:   []Sub{{Name: "SMInfo", Offset: 8, Layout: smInfoLayout}},
	}

	linkRecordLayout = &Layout{Name: "LinkRecord", Size: 12, Fields: []Field{
		u32("FromLID", 0),
		u8("FromPort", 4),
		u8("ToPort", 5),
		u32("ToLID", 8),
	}}

	serviceRecordLayout = &Layout{Name: "ServiceRecord", Size: 184, Fields: []Field{
		hex("ServiceID", 0, 8),
		u32("ServiceLID", 8),
		hex("ServicePKey", 12, 2),
		u32("ServiceLease", 16),
		gid("ServiceGID", 24),
		raw("ServiceKey", 40, 16),
		text("ServiceName", 56, 64),
		raw("ServiceData", 120, 64),
	}}

	pathRecordLayout = &Layout{Name: "PathRecord", Size: 64, Fields: []Field{
		gid("DGID", 8),
		gid("SGID", 24),
		u16("DLID", 40),
		u16("SLID", 42),
		flag("RawTraffic", 44, 4, 31),
		bits("FlowLabel", 44, 4, 8, 20),
		bits("HopLimit", 44, 4, 0, 8),
		u8("TClass", 48),
		flag("Reversible", 49, 1, 7),
		bits("NumbPath", 49, 1, 0, 7),
		hex("PKey", 50, 2),
		bits("QosType", 52, 2, 14, 2),
		bits("QosPriority", 52, 2, 0, 8),
		bits("SL", 54, 2, 0, 5),
		bits("MTUSelector", 56, 1, 6, 2),
		bits("MTU", 56, 1, 0, 6),
		bits("RateSelector", 57, 1, 6, 2),
		bits("Rate", 57, 1, 0, 6),
		bits("PktLifeTimeSelector", 58, 1, 6, 2),
		bits("PktLifeTime", 58, 1, 0, 6),
		u8("Preference", 59),
	}}

	mcMemberRecordLayout = &Layout{Name: "MCMemberRecord", Size: 56, Fields: []Field{
		gid("MGID", 0),
		gid("PortGID", 16),
		hex("QKey", 32, 4),
		u8("TClass", 38),
		bits("MTUSelector", 39, 1, 6, 2),
		bits("MTU", 39, 1, 0, 6),
		bits("RateSelector", 40, 1, 6, 2),
		bits("Rate", 40, 1, 0, 6),
		bits("PktLifeTimeSelector", 41, 1, 6, 2),
		bits("PktLifeTime", 41, 1, 0, 6),
		hex("PKey", 42, 2),
		bits("SL", 44, 4, 28, 4),
		bits("FlowLabel", 44, 4, 8, 20),
		bits("HopLimit", 44, 4, 0, 8),
		bits("Scope", 48, 1, 4, 4),
		bits("JoinState", 48, 1, 0, 4),
		flag("ProxyJoin", 49, 1, 7),
		u32("MLID", 52),
	}}
)

func registerAdmin(t *Table) {
	sa := mad.ClassSubnAdm
	t.Register(sa, mad.AttrSAClassPortInfo, classPortInfoLayout.Entry())
	t.Register(sa, mad.AttrSANotice, noticeLayout.Entry())
	t.Register(sa, mad.AttrSAInformInfo, informInfoLayout.Entry())
	t.Register(sa, mad.AttrSANodeRecord, nodeRecordLayout.Entry())
	t.Register(sa, mad.AttrSAPortInfoRecord, portInfoRecordLayout.Entry())
	t.Register(sa, mad.AttrSASwitchInfoRecord, switchInfoRecordLayout.Entry())
	t.Register(sa, mad.AttrSALFTRecord, lftRecordLayout.Entry())
	t.Register(sa, mad.AttrSASMInfoRecord, smInfoRecordLayout.Entry())
	t.Register(sa, mad.AttrSALinkRecord, linkRecordLayout.Entry())
	t.Register(sa, mad.AttrSAServiceRecord, serviceRecordLayout.Entry())
	t.Register(sa, mad.AttrSAPathRecord, pathRecordLayout.Entry())
	t.Register(sa, mad.AttrSAMCMemberRecord, mcMemberRecordLayout.Entry())
}
