package mad

import "fmt"

// Management classes.
const (
	ClassSubnLID      uint8 = 0x01
	ClassSubnAdm      uint8 = 0x03
	ClassPerf         uint8 = 0x04
	ClassPerfAdm      uint8 = 0x32
	ClassSubnDirected uint8 = 0x81
)

// Methods. The high bit marks a response.
const (
	MethodGet               uint8 = 0x01
	MethodSet               uint8 = 0x02
	MethodSend              uint8 = 0x03
	MethodTrap              uint8 = 0x05
	MethodReport            uint8 = 0x06
	MethodTrapRepress       uint8 = 0x07
	MethodGetTable          uint8 = 0x12
	MethodGetTraceTable     uint8 = 0x13
	MethodGetMulti          uint8 = 0x14
	MethodDelete            uint8 = 0x15
	MethodGetResp           uint8 = 0x81
	MethodReportResp        uint8 = 0x86
	MethodGetTableResp      uint8 = 0x92
	MethodGetTraceTableResp uint8 = 0x93
	MethodGetMultiResp      uint8 = 0x94
	MethodDeleteResp        uint8 = 0x95

	MethodResponseBit uint8 = 0x80
)

// Subnet management attributes.
const (
	AttrSMPNotice               uint16 = 0x0002
	AttrSMPNodeDescription      uint16 = 0x0010
	AttrSMPNodeInfo             uint16 = 0x0011
	AttrSMPSwitchInfo           uint16 = 0x0012
	AttrSMPPortInfo             uint16 = 0x0015
	AttrSMPPartitionTable       uint16 = 0x0016
	AttrSMPSLtoSC               uint16 = 0x0017
	AttrSMPVLArbitration        uint16 = 0x0018
	AttrSMPLinearFwdTable       uint16 = 0x0019
	AttrSMPMulticastFwdTable    uint16 = 0x001B
	AttrSMPSMInfo               uint16 = 0x0020
	AttrSMPLedInfo              uint16 = 0x0031
	AttrSMPCableInfo            uint16 = 0x0032
	AttrSMPAggregate            uint16 = 0x0080
	AttrSMPSCtoSL               uint16 = 0x0081
	AttrSMPSCtoVLr              uint16 = 0x0082
	AttrSMPSCtoVLt              uint16 = 0x0083
	AttrSMPSCtoVLnt             uint16 = 0x0084
	AttrSMPSCtoSC               uint16 = 0x0085
	AttrSMPPortStateInfo        uint16 = 0x0087
	AttrSMPBufferControlTable   uint16 = 0x008A
	AttrSMPCongestionInfo       uint16 = 0x008B
	AttrSMPSwitchPortCongestion uint16 = 0x008E
	AttrSMPHFICongestionControl uint16 = 0x0091
)

// Subnet administration attributes.
const (
	AttrSAClassPortInfo    uint16 = 0x0001
	AttrSANotice           uint16 = 0x0002
	AttrSAInformInfo       uint16 = 0x0003
	AttrSANodeRecord       uint16 = 0x0011
	AttrSAPortInfoRecord   uint16 = 0x0012
	AttrSASwitchInfoRecord uint16 = 0x0014
	AttrSALFTRecord        uint16 = 0x0015
	AttrSASMInfoRecord     uint16 = 0x0018
	AttrSALinkRecord       uint16 = 0x0020
	AttrSAServiceRecord    uint16 = 0x0031
	AttrSAPathRecord       uint16 = 0x0035
	AttrSAMCMemberRecord   uint16 = 0x0038
)

// Performance management attributes.
const (
	AttrPMClassPortInfo     uint16 = 0x0001
	AttrPMPortStatus        uint16 = 0x0040
	AttrPMClearPortStatus   uint16 = 0x0041
	AttrPMDataPortCounters  uint16 = 0x0042
	AttrPMErrorPortCounters uint16 = 0x0043
	AttrPMErrorInfo         uint16 = 0x0044
)

// Performance administration attributes.
const (
	AttrPAClassPortInfo        uint16 = 0x0001
	AttrPAGetGroupList         uint16 = 0x00A0
	AttrPAGetGroupInfo         uint16 = 0x00A1
	AttrPAGetGroupConfig       uint16 = 0x00A2
	AttrPAGetPortCounters      uint16 = 0x00A3
	AttrPAClearPortCounters    uint16 = 0x00A4
	AttrPAClearAllPortCounters uint16 = 0x00A5
	AttrPAGetPMConfig          uint16 = 0x00A6
	AttrPAFreezeImage          uint16 = 0x00A7
	AttrPAReleaseImage         uint16 = 0x00A8
	AttrPARenewImage           uint16 = 0x00A9
	AttrPAGetFocusPorts        uint16 = 0x00AA
	AttrPAGetImageInfo         uint16 = 0x00AB
	AttrPAMoveFreezeFrame      uint16 = 0x00AC
	AttrPAGetVFList            uint16 = 0x00AD
)

var classNames = map[uint8]string{
	ClassSubnLID:      "SubnMgt LID-routed",
	ClassSubnAdm:      "SubnAdm",
	ClassPerf:         "PerfMgt",
	ClassPerfAdm:      "PerfAdm",
	ClassSubnDirected: "SubnMgt directed-route",
}

var methodNames = map[uint8]string{
	MethodGet:               "Get",
	MethodSet:               "Set",
	MethodSend:              "Send",
	MethodTrap:              "Trap",
	MethodReport:            "Report",
	MethodTrapRepress:       "TrapRepress",
	MethodGetTable:          "GetTable",
	MethodGetTraceTable:     "GetTraceTable",
	MethodGetMulti:          "GetMulti",
	MethodDelete:            "Delete",
	MethodGetResp:           "GetResp",
	MethodReportResp:        "ReportResp",
	MethodGetTableResp:      "GetTableResp",
	MethodGetTraceTableResp: "GetTraceTableResp",
	MethodGetMultiResp:      "GetMultiResp",
	MethodDeleteResp:        "DeleteResp",
}

var smpAttrNames = map[uint16]string{
	AttrSMPNotice:               "Notice",
	AttrSMPNodeDescription:      "NodeDescription",
	AttrSMPNodeInfo:             "NodeInfo",
	AttrSMPSwitchInfo:           "SwitchInfo",
	AttrSMPPortInfo:             "PortInfo",
	AttrSMPPartitionTable:       "PartitionTable",
	AttrSMPSLtoSC:               "SLtoSCMappingTable",
	AttrSMPVLArbitration:        "VLArbitrationTable",
	AttrSMPLinearFwdTable:       "LinearForwardingTable",
	AttrSMPMulticastFwdTable:    "MulticastForwardingTable",
	AttrSMPSMInfo:               "SMInfo",
	AttrSMPLedInfo:              "LedInfo",
	AttrSMPCableInfo:            "CableInfo",
	AttrSMPAggregate:            "Aggregate",
	AttrSMPSCtoSL:               "SCtoSLMappingTable",
	AttrSMPSCtoVLr:              "SCtoVLrMappingTable",
	AttrSMPSCtoVLt:              "SCtoVLtMappingTable",
	AttrSMPSCtoVLnt:             "SCtoVLntMappingTable",
	AttrSMPSCtoSC:               "SCtoSCMappingTable",
	AttrSMPPortStateInfo:        "PortStateInfo",
	AttrSMPBufferControlTable:   "BufferControlTable",
	AttrSMPCongestionInfo:       "CongestionInfo",
	AttrSMPSwitchPortCongestion: "SwitchPortCongestionSetting",
	AttrSMPHFICongestionControl: "HFICongestionControlTable",
}

var saAttrNames = map[uint16]string{
	AttrSAClassPortInfo:    "ClassPortInfo",
	AttrSANotice:           "Notice",
	AttrSAInformInfo:       "InformInfo",
	AttrSANodeRecord:       "NodeRecord",
	AttrSAPortInfoRecord:   "PortInfoRecord",
	AttrSASwitchInfoRecord: "SwitchInfoRecord",
	AttrSALFTRecord:        "LinearFwdTableRecord",
	AttrSASMInfoRecord:     "SMInfoRecord",
	AttrSALinkRecord:       "LinkRecord",
	AttrSAServiceRecord:    "ServiceRecord",
	AttrSAPathRecord:       "PathRecord",
	AttrSAMCMemberRecord:   "MCMemberRecord",
}

var pmAttrNames = map[uint16]string{
	AttrPMClassPortInfo:     "ClassPortInfo",
	AttrPMPortStatus:        "PortStatus",
	AttrPMClearPortStatus:   "ClearPortStatus",
	AttrPMDataPortCounters:  "DataPortCounters",
	AttrPMErrorPortCounters: "ErrorPortCounters",
	AttrPMErrorInfo:         "ErrorInfo",
}

var paAttrNames = map[uint16]string{
	AttrPAClassPortInfo:        "ClassPortInfo",
	AttrPAGetGroupList:         "GetGroupList",
	AttrPAGetGroupInfo:         "GetGroupInfo",
	AttrPAGetGroupConfig:       "GetGroupConfig",
	AttrPAGetPortCounters:      "GetPortCounters",
	AttrPAClearPortCounters:    "ClearPortCounters",
	AttrPAClearAllPortCounters: "ClearAllPortCounters",
	AttrPAGetPMConfig:          "GetPMConfig",
	AttrPAFreezeImage:          "FreezeImage",
	AttrPAReleaseImage:         "ReleaseImage",
	AttrPARenewImage:           "RenewImage",
	AttrPAGetFocusPorts:        "GetFocusPorts",
	AttrPAGetImageInfo:         "GetImageInfo",
	AttrPAMoveFreezeFrame:      "MoveFreezeFrame",
	AttrPAGetVFList:            "GetVFList",
}

// ClassName returns a display name for a management class.
func ClassName(class uint8) string {
	if name, ok := classNames[class]; ok {
		return name
	}
	return fmt.Sprintf("Class(0x%02X)", class)
}

// MethodName returns a display name for a method.
func MethodName(method uint8) string {
	if name, ok := methodNames[method]; ok {
		return name
	}
	return fmt.Sprintf("Method(0x%02X)", method)
}

// AttributeName returns a display name for an attribute within a class.
func AttributeName(class uint8, attr uint16) string {
	var names map[uint16]string
	switch class {
	case ClassSubnLID, ClassSubnDirected:
		names = smpAttrNames
	case ClassSubnAdm:
		names = saAttrNames
	case ClassPerf:
		names = pmAttrNames
	case ClassPerfAdm:
		names = paAttrNames
	}
	if name, ok := names[attr]; ok {
		return name
	}
	return fmt.Sprintf("Attribute(0x%04X)", attr)
}

// IsTableMethod reports whether a method carries a stride-packed record list.
func IsTableMethod(method uint8) bool {
	switch method {
	case MethodGetTableResp, MethodGetTraceTableResp, MethodGetMultiResp:
		return true
	}
	return false
}

// ClassFamily folds both subnet management addressing variants onto the
// LID-routed class so they share attribute tables.
func ClassFamily(class uint8) uint8 {
	if class == ClassSubnDirected {
		return ClassSubnLID
	}
	return class
}
