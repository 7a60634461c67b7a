package router

import "testing"

func TestParseRangeSet(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    RangeSet
		wantErr bool
	}{
		{"empty", "", nil, false},
		{"single decimal", "3", RangeSet{{3, 3}}, false},
		{"mixed", "1, 3-4,0x32", RangeSet{{1, 1}, {3, 4}, {0x32, 0x32}}, false},
		{"hex range", "0x50-0x80", RangeSet{{0x50, 0x80}}, false},
		{"inverted", "5-2", nil, true},
		{"too large", "0-256", nil, true},
		{"garbage", "abc", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRangeSet(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestRangeSetStringRoundTrip(t *testing.T) {
	rs := MustParseRangeSet(DefaultReserved)
	again, err := ParseRangeSet(rs.String())
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if again.String() != rs.String() {
		t.Fatalf("round trip changed set: %s vs %s", again, rs)
	}
}

func TestRouteDefaults(t *testing.T) {
	r := New(DefaultRanges())
	tests := []struct {
		class uint8
		want  Handler
	}{
		{0x01, HandlerSubnLID},
		{0x81, HandlerSubnDirected},
		{0x03, HandlerSubnAdm},
		{0x04, HandlerPerf},
		{0x32, HandlerPerfAdm},
		{0x09, HandlerVendor},
		{0x0F, HandlerVendor},
		{0x30, HandlerVendorRMPP},
		{0x4F, HandlerVendorRMPP},
		{0x10, HandlerApplication},
		{0x2F, HandlerApplication},
		{0x00, HandlerReserved},
		{0x02, HandlerReserved},
		{0x06, HandlerReserved},
		{0x80, HandlerReserved},
		{0xFF, HandlerReserved},
	}
	for _, tt := range tests {
		if got := r.Route(tt.class); got != tt.want {
			t.Errorf("Route(0x%02X) = %s, want %s", tt.class, got, tt.want)
		}
	}
}

func TestRoutePrecedence(t *testing.T) {
	ranges := DefaultRanges()
	// Overlapping sets: vendor wins over core.
	ranges.Vendor = MustParseRangeSet("0x01")
	r := New(ranges)
	if got := r.Route(0x01); got != HandlerVendor {
		t.Fatalf("Route(0x01) = %s, want Vendor", got)
	}

	// A core value with no specific handler falls through to Unknown.
	ranges = DefaultRanges()
	ranges.Reserved = MustParseRangeSet("0x00")
	ranges.Core = MustParseRangeSet("0x01-0x08")
	r = New(ranges)
	if got := r.Route(0x06); got != HandlerUnknown {
		t.Fatalf("Route(0x06) = %s, want Unknown", got)
	}

	// Classes in no set at all.
	r = New(Ranges{})
	if got := r.Route(0x03); got != HandlerUnknown {
		t.Fatalf("Route(0x03) with empty sets = %s, want Unknown", got)
	}
}

func TestHandlerTransferHeader(t *testing.T) {
	for h, want := range map[Handler]bool{
		HandlerSubnAdm:      true,
		HandlerPerfAdm:      true,
		HandlerVendorRMPP:   true,
		HandlerSubnLID:      false,
		HandlerSubnDirected: false,
		HandlerPerf:         false,
		HandlerVendor:       false,
	} {
		if got := h.HasTransferHeader(); got != want {
			t.Errorf("%s.HasTransferHeader() = %v, want %v", h, got, want)
		}
	}
}
