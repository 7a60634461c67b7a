package attr

import "github.com/tturner/madscope/internal/mad"

// portSelectHead is the port mask and counter selector preceding PM
// per-port records.
func portSelectHead(name, mask string) *Layout {
	return &Layout{Name: name, Size: 40, Fields: []Field{
		raw("PortSelectMask", 0, 32),
		hex(mask, 32, 4),
	}}
}

var (
	portStatusLayout = &Layout{Name: "PortStatus", Size: 216, Fields: join(
		[]Field{
			u8("PortNumber", 0),
			hex("VLSelectMask", 4, 4),
		},
		seq64(8,
			"PortXmitData", "PortRcvData", "PortXmitPkts", "PortRcvPkts",
			"PortMulticastXmitPkts", "PortMulticastRcvPkts", "PortXmitWait",
			"SwPortCongestion", "PortRcvFECN", "PortRcvBECN", "PortXmitTimeCong",
			"PortXmitWastedBW", "PortXmitWaitData", "PortRcvBubble", "PortMarkFECN",
			"PortRcvConstraintErrors", "PortRcvSwitchRelayErrors", "PortXmitDiscards",
			"PortXmitConstraintErrors", "PortRcvRemotePhysicalErrors",
			"LocalLinkIntegrityErrors", "PortRcvErrors", "ExcessiveBufferOverruns",
			"FMConfigErrors",
		),
		[]Field{
			u32("LinkErrorRecovery", 200),
			u32("LinkDowned", 204),
			u8("UncorrectableErrors", 208),
			bits("LinkQualityIndicator", 209, 1, 0, 3),
		},
	)}

	clearPortStatusLayout = &Layout{Name: "ClearPortStatus", Size: 36, Fields: []Field{
		raw("PortSelectMask", 0, 32),
		hex("CounterSelectMask", 32, 4),
	}}

	dataPortLayout = &Layout{Name: "DataPortCountersPort", Size: 136, Fields: join(
		[]Field{
			u8("PortNumber", 0),
			bits("LinkQualityIndicator", 4, 1, 0, 3),
		},
		seq64(8,
			"PortXmitData", "PortRcvData", "PortXmitPkts", "PortRcvPkts",
			"PortMulticastXmitPkts", "PortMulticastRcvPkts", "PortXmitWait",
			"SwPortCongestion", "PortRcvFECN", "PortRcvBECN", "PortXmitTimeCong",
			"PortXmitWastedBW", "PortXmitWaitData", "PortRcvBubble", "PortMarkFECN",
			"PortErrorCounterSummary",
		),
	)}

	errorPortLayout = &Layout{Name: "ErrorPortCountersPort", Size: 96, Fields: join(
		[]Field{u8("PortNumber", 0)},
		seq64(8,
			"PortRcvConstraintErrors", "PortRcvSwitchRelayErrors", "PortXmitDiscards",
			"PortXmitConstraintErrors", "PortRcvRemotePhysicalErrors",
			"LocalLinkIntegrityErrors", "PortRcvErrors", "ExcessiveBufferOverruns",
			"FMConfigErrors",
		),
		[]Field{
			u32("LinkErrorRecovery", 80),
			u32("LinkDowned", 84),
			u8("UncorrectableErrors", 88),
		},
	)}

	errorInfoPortLayout = &Layout{Name: "ErrorInfoPort", Size: 64, Fields: []Field{
		u8("PortNumber", 0),
		flag("RcvErrorStatus", 8, 1, 7),
		bits("RcvErrorCode", 8, 1, 0, 4),
		flag("ExcessiveBufferOverrunStatus", 24, 1, 7),
		bits("ExcessiveBufferOverrunSC", 24, 1, 0, 5),
		flag("XmitConstraintStatus", 26, 1, 7),
		hex("XmitConstraintPKey", 28, 2),
		u32("XmitConstraintSLID", 32),
		flag("RcvConstraintStatus", 36, 1, 7),
		hex("RcvConstraintPKey", 38, 2),
		u32("RcvConstraintSLID", 40),
		flag("RcvSwitchRelayStatus", 44, 1, 7),
		bits("RcvSwitchRelayErrorCode", 44, 1, 0, 4),
		u32("RcvSwitchRelayDLID", 48),
		flag("FMConfigStatus", 52, 1, 7),
		bits("FMConfigErrorCode", 52, 1, 0, 4),
		flag("UncorrectableStatus", 56, 1, 7),
		bits("UncorrectableErrorCode", 56, 1, 0, 4),
	}}
)

var (
	imageIDLayout = &Layout{Name: "ImageID", Size: 16, Fields: []Field{
		u64("ImageNumber", 0),
		hex("ImageOffset", 8, 4),
	}}

	groupListLayout = &Layout{Name: "GroupListRecord", Size: 64, Fields: []Field{
		text("GroupName", 0, 64),
	}}

	groupInfoLayout = &Layout{Name: "GroupInfoRecord", Size: 128,
		Fields: []Field{
			text("GroupName", 0, 64),
			u32("NumInternalPorts", 80),
			u32("NumExternalPorts", 84),
			u64("TotalMBps", 88),
			u64("TotalKPps", 96),
			u32("AvgMBps", 104),
			u32("MinMBps", 108),
			u32("MaxMBps", 112),
			u32("AvgKPps", 116),
			u32("MinKPps", 120),
			u32("MaxKPps", 124),
		},
		Subs: []Sub{{Name: "ImageID", Offset: 64, Layout: imageIDLayout}},
	}

	groupConfigLayout = &Layout{Name: "GroupConfigRecord", Size: 80, Fields: []Field{
		hex("NodeGUID", 0, 8),
		text("NodeDesc", 8, 64),
		u32("NodeLID", 72),
		u8("PortNumber", 76),
	}}

	paPortCountersLayout = &Layout{Name: "PortCountersRecord", Size: 232,
		Fields: join(
			[]Field{
				u32("NodeLID", 0),
				u8("PortNumber", 4),
				hex("Flags", 8, 4),
			},
			seq64(16,
				"PortXmitData", "PortRcvData", "PortXmitPkts", "PortRcvPkts",
				"PortMulticastXmitPkts", "PortMulticastRcvPkts",
				"LocalLinkIntegrityErrors", "FMConfigErrors", "PortRcvErrors",
				"ExcessiveBufferOverruns", "PortRcvConstraintErrors",
				"PortRcvSwitchRelayErrors", "PortXmitDiscards",
				"PortXmitConstraintErrors", "PortRcvRemotePhysicalErrors",
				"SwPortCongestion", "PortXmitWait", "PortRcvFECN", "PortRcvBECN",
				"PortXmitTimeCong", "PortXmitWastedBW", "PortXmitWaitData",
				"PortRcvBubble", "PortMarkFECN",
			),
			[]Field{
				u32("LinkErrorRecovery", 208),
				u32("LinkDowned", 212),
			},
		),
		Subs: []Sub{{Name: "ImageID", Offset: 216, Layout: imageIDLayout}},
	}

	clearPortCountersLayout = &Layout{Name: "ClearPortCounters", Size: 16, Fields: []Field{
		u32("NodeLID", 0),
		u8("PortNumber", 4),
		hex("CounterSelectMask", 8, 4),
	}}

	clearAllPortCountersLayout = &Layout{Name: "ClearAllPortCounters", Size: 8, Fields: []Field{
		hex("CounterSelectMask", 0, 4),
	}}

	pmConfigLayout = &Layout{Name: "PMConfig", Size: 24, Fields: []Field{
		u32("SweepInterval", 0),
		u32("MaxClients", 4),
		u32("SizeHistory", 8),
		u32("SizeFreeze", 12),
		u32("Lease", 16),
		hex("PMFlags", 20, 4),
	}}

	freezeImageLayout = &Layout{Name: "FreezeImage", Size: 16,
		Subs: []Sub{{Name: "ImageID", Offset: 0, Layout: imageIDLayout}}}

	releaseImageLayout = &Layout{Name: "ReleaseImage", Size: 16,
		Subs: []Sub{{Name: "ImageID", Offset: 0, Layout: imageIDLayout}}}

	renewImageLayout = &Layout{Name: "RenewImage", Size: 16,
		Subs: []Sub{{Name: "ImageID", Offset: 0, Layout: imageIDLayout}}}

	moveFreezeFrameLayout = &Layout{Name: "MoveFreezeFrame", Size: 32,
		Subs: []Sub{
			{Name: "OldImageID", Offset: 0, Layout: imageIDLayout},
			{Name: "NewImageID", Offset: 16, Layout: imageIDLayout},
		}}

	imageInfoLayout = &Layout{Name: "ImageInfo", Size: 72,
		Fields: []Field{
			u64("SweepStart", 16),
			u32("SweepDuration", 24),
			u16("NumHFIPorts", 28),
			u32("NumSwitchNodes", 32),
			u32("NumSwitchPorts", 36),
			u32("NumLinks", 40),
			u32("NumSMs", 44),
			u32("NumNoRespNodes", 48),
			u32("NumNoRespPorts", 52),
			u32("NumSkippedNodes", 56),
			u32("NumSkippedPorts", 60),
			u32("NumUnexpectedClearPorts", 64),
			u32("ImageInterval", 68),
		},
		Subs: []Sub{{Name: "ImageID", Offset: 0, Layout: imageIDLayout}},
	}

	focusPortsLayout = &Layout{Name: "FocusPortsRecord", Size: 176, Fields: []Field{
		u32("NodeLID", 0),
		u8("PortNumber", 4),
		bits("Rate", 5, 1, 0, 5),
		bits("MTU", 6, 1, 0, 4),
		u64("Value", 8),
		hex("NodeGUID", 16, 8),
		text("NodeDesc", 24, 64),
		u32("NeighborLID", 88),
		u8("NeighborPortNumber", 92),
		u64("NeighborValue", 96),
		hex("NeighborGUID", 104, 8),
		text("NeighborNodeDesc", 112, 64),
	}}

	vfListLayout = &Layout{Name: "VFListRecord", Size: 64, Fields: []Field{
		text("VFName", 0, 64),
	}}
)

func registerPerf(t *Table) {
	pm := mad.ClassPerf
	t.Register(pm, mad.AttrPMClassPortInfo, classPortInfoLayout.Entry())
	t.Register(pm, mad.AttrPMPortStatus, portStatusLayout.Entry())
	t.Register(pm, mad.AttrPMClearPortStatus, clearPortStatusLayout.Entry())
	t.Register(pm, mad.AttrPMDataPortCounters,
		WithPorts("DataPortCounters", portSelectHead("DataPortCountersHead", "VLSelectMask"), dataPortLayout))
	t.Register(pm, mad.AttrPMErrorPortCounters,
		WithPorts("ErrorPortCounters", portSelectHead("ErrorPortCountersHead", "CounterSelectMask"), errorPortLayout))
	t.Register(pm, mad.AttrPMErrorInfo,
		WithPorts("ErrorInfo", portSelectHead("ErrorInfoHead", "ErrorInfoSelectMask"), errorInfoPortLayout))
}

func registerPerfAdmin(t *Table) {
	pa := mad.ClassPerfAdm
	t.Register(pa, mad.AttrPAClassPortInfo, classPortInfoLayout.Entry())
	t.Register(pa, mad.AttrPAGetGroupList, groupListLayout.Entry())
	t.Register(pa, mad.AttrPAGetGroupInfo, groupInfoLayout.Entry())
	t.Register(pa, mad.AttrPAGetGroupConfig, groupConfigLayout.Entry())
	t.Register(pa, mad.AttrPAGetPortCounters, paPortCountersLayout.Entry())
	t.Register(pa, mad.AttrPAClearPortCounters, clearPortCountersLayout.Entry())
	t.Register(pa, mad.AttrPAClearAllPortCounters, clearAllPortCountersLayout.Entry())
	t.Register(pa, mad.AttrPAGetPMConfig, pmConfigLayout.Entry())
	t.Register(pa, mad.AttrPAFreezeImage, freezeImageLayout.Entry())
	t.Register(pa, mad.AttrPAReleaseImage, releaseImageLayout.Entry())
	t.Register(pa, mad.AttrPARenewImage, renewImageLayout.Entry())
	t.Register(pa, mad.AttrPAGetImageInfo, imageInfoLayout.Entry())
	t.Register(pa, mad.AttrPAMoveFreezeFrame, moveFreezeFrameLayout.Entry())
	t.Register(pa, mad.AttrPAGetFocusPorts, focusPortsLayout.Entry())
	t.Register(pa, mad.AttrPAGetVFList, vfListLayout.Entry())
}
