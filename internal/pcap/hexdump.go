package pcap

// Hex dump utilities for datagram display

import (
	"fmt"
	"strings"

	"github.com/tturner/madscope/internal/mad"
)

// HexDump creates a hex dump of data, width bytes per line.
func HexDump(data []byte, width int) string {
	if width <= 0 {
		width = 16
	}

	var sb strings.Builder
	for i := 0; i < len(data); i += width {
		fmt.Fprintf(&sb, "%04x: ", i)

		for j := 0; j < width; j++ {
			if i+j < len(data) {
				fmt.Fprintf(&sb, "%02x ", data[i+j])
			} else {
				sb.WriteString("   ")
			}
		}

		sb.WriteString(" |")
		for j := 0; j < width && i+j < len(data); j++ {
			b := data[i+j]
			if b >= 32 && b < 127 {
				sb.WriteByte(b)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteString("|\n")
	}

	return sb.String()
}

// FormatDatagramHex formats a datagram as hex. With annotate set the common
// header and the payload are dumped separately.
func FormatDatagramHex(data []byte, annotate bool) string {
	if !annotate {
		var sb strings.Builder
		for i, b := range data {
			if i > 0 && i%16 == 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "%02x ", b)
		}
		return sb.String()
	}

	if len(data) < mad.EnvelopeSize {
		return HexDump(data, 16)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Common Header (%d bytes):\n", mad.EnvelopeSize)
	sb.WriteString(HexDump(data[:mad.EnvelopeSize], 16))
	if len(data) > mad.EnvelopeSize {
		fmt.Fprintf(&sb, "\nPayload (%d bytes):\n", len(data)-mad.EnvelopeSize)
		sb.WriteString(HexDump(data[mad.EnvelopeSize:], 16))
	}
	return sb.String()
}
