// Package router selects the decoder for a management class.
package router

import (
	"fmt"

	"github.com/tturner/madscope/internal/mad"
)

// Handler is the downstream decoder selected for a class.
type Handler int

const (
	HandlerUnknown Handler = iota
	HandlerVendor
	HandlerVendorRMPP
	HandlerApplication
	HandlerReserved
	HandlerSubnLID
	HandlerSubnDirected
	HandlerSubnAdm
	HandlerPerf
	HandlerPerfAdm
)

var handlerNames = map[Handler]string{
	HandlerUnknown:      "Unknown",
	HandlerVendor:       "Vendor",
	HandlerVendorRMPP:   "VendorRMPP",
	HandlerApplication:  "Application",
	HandlerReserved:     "Reserved",
	HandlerSubnLID:      "SubnLID",
	HandlerSubnDirected: "SubnDirected",
	HandlerSubnAdm:      "SubnAdm",
	HandlerPerf:         "Perf",
	HandlerPerfAdm:      "PerfAdm",
}

func (h Handler) String() string {
	if name, ok := handlerNames[h]; ok {
		return name
	}
	return fmt.Sprintf("Handler(%d)", int(h))
}

// MarshalText renders the handler name in JSON output.
func (h Handler) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// HasTransferHeader reports whether the class carries an RMPP header.
func (h Handler) HasTransferHeader() bool {
	switch h {
	case HandlerSubnAdm, HandlerPerfAdm, HandlerVendorRMPP:
		return true
	}
	return false
}

// IsSubnetManagement reports whether h is either SMP variant.
func (h Handler) IsSubnetManagement() bool {
	return h == HandlerSubnLID || h == HandlerSubnDirected
}

// IsAdministration reports whether h carries the SA/PA class header.
func (h Handler) IsAdministration() bool {
	return h == HandlerSubnAdm || h == HandlerPerfAdm
}

// Default range strings.
const (
	DefaultVendor      = "0x09-0x0F"
	DefaultVendorRMPP  = "0x30-0x31,0x33-0x4F"
	DefaultApplication = "0x10-0x2F"
	DefaultReserved    = "0x00,0x02,0x05-0x08,0x50-0x80,0x82-0xFF"
	DefaultCore        = "0x01,0x03-0x04,0x32,0x81"
)

// Ranges are the five operator-overridable class sets.
type Ranges struct {
	Vendor      RangeSet
	VendorRMPP  RangeSet
	Application RangeSet
	Reserved    RangeSet
	Core        RangeSet
}

// DefaultRanges returns the built-in class sets.
func DefaultRanges() Ranges {
	return Ranges{
		Vendor:      MustParseRangeSet(DefaultVendor),
		VendorRMPP:  MustParseRangeSet(DefaultVendorRMPP),
		Application: MustParseRangeSet(DefaultApplication),
		Reserved:    MustParseRangeSet(DefaultReserved),
		Core:        MustParseRangeSet(DefaultCore),
	}
}

// Router maps class bytes to handlers.
type Router struct {
	ranges Ranges
}

// New returns a router over the given ranges.
func New(ranges Ranges) *Router {
	return &Router{ranges: ranges}
}

// Ranges returns the router's class sets.
func (r *Router) Ranges() Ranges {
	return r.ranges
}

// Route selects the handler for class. Sets are checked in fixed precedence
// and the first match wins.
func (r *Router) Route(class uint8) Handler {
	switch {
	case r.ranges.Vendor.Contains(class):
		return HandlerVendor
	case r.ranges.VendorRMPP.Contains(class):
		return HandlerVendorRMPP
	case r.ranges.Application.Contains(class):
		return HandlerApplication
	case r.ranges.Reserved.Contains(class):
		return HandlerReserved
	case r.ranges.Core.Contains(class):
		return coreHandler(class)
	}
	return HandlerUnknown
}

func coreHandler(class uint8) Handler {
	switch class {
	case mad.ClassSubnLID:
		return HandlerSubnLID
	case mad.ClassSubnDirected:
		return HandlerSubnDirected
	case mad.ClassSubnAdm:
		return HandlerSubnAdm
	case mad.ClassPerf:
		return HandlerPerf
	case mad.ClassPerfAdm:
		return HandlerPerfAdm
	}
	return HandlerUnknown
}
