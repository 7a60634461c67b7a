package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapPCAPError wraps capture file errors with user-friendly context
func WrapPCAPError(err error, path string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to read capture %s", path),
		Reason:  extractPCAPReason(err),
		Hint:    "madscope reads pcap and pcapng files with raw InfiniBand or RoCEv2 (UDP 4791) frames",
		Try:     fmt.Sprintf("madscope summary --input %s", path),
		Err:     err,
	}
}

// WrapCaptureError wraps live capture errors with user-friendly context
func WrapCaptureError(err error, iface string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Live capture on %s failed", iface),
		Reason:  extractCaptureReason(err),
		Hint:    "Live capture needs libpcap and permission to open the interface",
		Try:     "Run with elevated privileges, or capture with tcpdump -w and use madscope decode",
		Err:     err,
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "Class ranges are comma-separated values or lo-hi pairs, e.g. 0x09-0x0F",
		Try:     fmt.Sprintf("Validate your config: madscope config validate --config %s", configPath),
		Err:     err,
	}
}

// WrapHexInputError wraps errors parsing a hex datagram given on the command line
func WrapHexInputError(err error, input string) error {
	if err == nil {
		return nil
	}

	shown := input
	if len(shown) > 32 {
		shown = shown[:32] + "..."
	}
	return UserFriendlyError{
		Message: "Could not parse datagram bytes",
		Reason:  fmt.Sprintf("input %q is not valid hex", shown),
		Hint:    "Spaces, colons and a 0x prefix are accepted between bytes",
		Try:     "madscope decode-bytes --hex \"01 03 01 01 00 00 ...\"",
		Err:     err,
	}
}

func extractPCAPReason(err error) string {
	if errors.Is(err, fs.ErrNotExist) {
		return "File does not exist"
	}
	if errors.Is(err, fs.ErrPermission) {
		return "Permission denied reading the file"
	}

	errStr := err.Error()
	if strings.Contains(errStr, "Unknown magic") || strings.Contains(errStr, "magic") {
		return "File is not a pcap or pcapng capture"
	}
	if strings.Contains(errStr, "unexpected EOF") {
		return "Capture file is truncated"
	}
	if strings.Contains(errStr, "link type") {
		return "Capture link type carries no management datagrams"
	}

	return "Capture could not be decoded"
}

func extractCaptureReason(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "permission") || strings.Contains(errStr, "Operation not permitted") {
		return "Insufficient privileges to capture packets"
	}
	if strings.Contains(errStr, "No such device") || strings.Contains(errStr, "no such device") {
		return "Interface does not exist"
	}
	if strings.Contains(errStr, "BPF") || strings.Contains(errStr, "filter") {
		return "Capture filter was rejected"
	}

	return "Capture could not be started"
}
