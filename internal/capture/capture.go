// Package capture decodes management datagrams from a live interface.
package capture

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/pcapgo"

	"github.com/tturner/madscope/internal/dissect"
	"github.com/tturner/madscope/internal/logging"
	madpcap "github.com/tturner/madscope/internal/pcap"
)

// DefaultFilter selects RoCEv2 traffic.
const DefaultFilter = "udp port 4791"

// Options configures a capture session.
type Options struct {
	Interface string
	// Filter is a BPF expression; DefaultFilter when empty. Raw InfiniBand
	// interfaces may need an empty filter, which "none" selects.
	Filter  string
	SnapLen int32
	Promisc bool
	// Output, when set, receives a pcap copy of every captured packet.
	Output string
	// ExpireEvery runs reassembly expiry on this interval. Zero disables it.
	ExpireEvery time.Duration
	Logger      *logging.Logger
}

// Handler receives each decoded datagram.
type Handler func(*dissect.Datagram)

// Capture represents a live capture session
type Capture struct {
	opts     Options
	handle   *pcap.Handle
	writer   *pcapgo.Writer
	file     *os.File
	decoder  *dissect.Decoder
	log      *logging.Logger
	mu       sync.Mutex
	packets  int
	mads     int
	started  time.Time
	stopOnce sync.Once
}

// Stats reports capture counters.
type Stats struct {
	Packets   int
	Datagrams int
	Elapsed   time.Duration
}

// Open starts a live handle on the interface.
func Open(opts Options, decoder *dissect.Decoder) (*Capture, error) {
	if opts.SnapLen <= 0 {
		opts.SnapLen = 65535
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	handle, err := pcap.OpenLive(opts.Interface, opts.SnapLen, opts.Promisc, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("open live capture: %w", err)
	}

	filter := opts.Filter
	if filter == "" {
		filter = DefaultFilter
	}
	if filter != "none" {
		if err := handle.SetBPFFilter(filter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("set BPF filter: %w", err)
		}
	}

	c := &Capture{
		opts:    opts,
		handle:  handle,
		decoder: decoder,
		log:     log,
		started: time.Now(),
	}

	if opts.Output != "" {
		file, err := os.Create(opts.Output)
		if err != nil {
			handle.Close()
			return nil, fmt.Errorf("create pcap file: %w", err)
		}
		writer := pcapgo.NewWriter(file)
		if err := writer.WriteFileHeader(uint32(opts.SnapLen), handle.LinkType()); err != nil {
			file.Close()
			handle.Close()
			return nil, fmt.Errorf("write pcap header: %w", err)
		}
		c.file = file
		c.writer = writer
	}

	log.Verbose("capture: %s filter=%q link=%s", opts.Interface, filter, handle.LinkType())
	return c, nil
}

// Run reads packets until ctx is cancelled, decoding each management
// datagram and handing it to fn.
func (c *Capture) Run(ctx context.Context, fn Handler) error {
	source := gopacket.NewPacketSource(c.handle, c.handle.LinkType())
	packets := source.Packets()

	var expire <-chan time.Time
	if c.opts.ExpireEvery > 0 {
		ticker := time.NewTicker(c.opts.ExpireEvery)
		defer ticker.Stop()
		expire = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return c.Stop()
		case <-expire:
			for _, a := range c.decoder.Expire() {
				c.log.Info("%s", a.Message)
			}
		case packet, ok := <-packets:
			if !ok {
				return c.Stop()
			}
			c.handlePacket(packet, fn)
		}
	}
}

func (c *Capture) handlePacket(packet gopacket.Packet, fn Handler) {
	c.mu.Lock()
	c.packets++
	index := c.packets
	c.mu.Unlock()

	if c.writer != nil {
		if err := c.writer.WritePacket(packet.Metadata().CaptureInfo, packet.Data()); err != nil {
			c.log.Error("capture: write packet %d: %v", index, err)
		}
	}

	frame, ok := madpcap.FrameFromPacket(index, packet)
	if !ok {
		return
	}
	c.mu.Lock()
	c.mads++
	c.mu.Unlock()
	fn(c.decoder.DecodeFrame(frame.Index, frame.Timestamp, frame.Conversation, frame.Data))
}

// Stop closes the handle and any output file. It is idempotent.
func (c *Capture) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		if c.handle != nil {
			c.handle.Close()
		}
		if c.file != nil {
			err = c.file.Close()
		}
	})
	return err
}

// Stats returns the current counters.
func (c *Capture) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Packets: c.packets, Datagrams: c.mads, Elapsed: time.Since(c.started)}
}

// Interface describes a capture-capable device.
type Interface struct {
	Name        string
	Description string
	Addresses   []string
	Loopback    bool
}

// Interfaces lists capture-capable devices.
func Interfaces() ([]Interface, error) {
	devices, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("find network devices: %w", err)
	}
	out := make([]Interface, 0, len(devices))
	for _, d := range devices {
		info := Interface{Name: d.Name, Description: d.Description}
		for _, addr := range d.Addresses {
			if addr.IP == nil {
				continue
			}
			info.Addresses = append(info.Addresses, addr.IP.String())
			if addr.IP.IsLoopback() {
				info.Loopback = true
			}
		}
		out = append(out, info)
	}
	return out, nil
}
