package pcap

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/tturner/madscope/internal/dissect"
	"github.com/tturner/madscope/internal/mad/reassembly"
	"github.com/tturner/madscope/internal/mad/tree"
)

const pcapngMagic = 0x0A0D0D0A

// Frame is one management datagram pulled from a capture.
type Frame struct {
	Index        int
	Timestamp    time.Time
	Transport    string
	PKey         uint16
	Conversation reassembly.Conversation
	Data         []byte
}

// ReadStats counts what a capture walk saw.
type ReadStats struct {
	TotalPackets int            `json:"total_packets"`
	MADPackets   int            `json:"mad_packets"`
	Skipped      int            `json:"skipped_packets"`
	Transports   map[string]int `json:"transports"`
	LinkType     string         `json:"link_type"`
}

// Decoded is the result of decoding every datagram in a capture.
type Decoded struct {
	Datagrams []*dissect.Datagram
	// Stalled lists transactions still collecting at end of input.
	Stalled []tree.Annotation
	Stats   ReadStats
}

// ExtractMADs reads every management datagram in a pcap or pcapng file.
func ExtractMADs(path string) ([]Frame, error) {
	var frames []Frame
	_, err := walkFile(path, func(f Frame) error {
		frames = append(frames, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return frames, nil
}

// DecodeFile decodes every management datagram in path with d. Reassembly
// state carries across frames in capture order.
func DecodeFile(path string, d *dissect.Decoder) (*Decoded, error) {
	out := &Decoded{}
	stats, err := walkFile(path, func(f Frame) error {
		out.Datagrams = append(out.Datagrams, d.DecodeFrame(f.Index, f.Timestamp, f.Conversation, f.Data))
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Stats = stats
	out.Stalled = d.Pending()
	return out, nil
}

func walkFile(path string, fn func(Frame) error) (ReadStats, error) {
	stats := ReadStats{Transports: make(map[string]int)}
	file, err := os.Open(path)
	if err != nil {
		return stats, fmt.Errorf("open pcap file: %w", err)
	}
	defer file.Close()

	src, linkType, err := openSource(file)
	if err != nil {
		return stats, err
	}
	stats.LinkType = linkType.String()

	packetSource := gopacket.NewPacketSource(src, linkType)
	for {
		packet, err := packetSource.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read packet %d: %w", stats.TotalPackets+1, err)
		}
		stats.TotalPackets++
		frame, ok := FrameFromPacket(stats.TotalPackets, packet)
		if !ok {
			stats.Skipped++
			continue
		}
		stats.MADPackets++
		stats.Transports[frame.Transport]++
		if err := fn(frame); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// openSource picks the pcap or pcapng reader from the file magic.
func openSource(r io.Reader) (gopacket.PacketDataSource, layers.LinkType, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, 0, fmt.Errorf("read pcap header: %w", err)
	}
	if binary.BigEndian.Uint32(magic) == pcapngMagic {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, 0, fmt.Errorf("open pcapng: %w", err)
		}
		return ng, ng.LinkType(), nil
	}
	rd, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, 0, fmt.Errorf("open pcap: %w", err)
	}
	return rd, rd.LinkType(), nil
}

// FrameFromPacket extracts the management datagram carried by packet. It
// returns false for packets that are not unreliable-datagram sends to a
// management queue pair.
func FrameFromPacket(index int, packet gopacket.Packet) (Frame, bool) {
	bthLayer := packet.Layer(LayerTypeBTH)
	dethLayer := packet.Layer(LayerTypeDETH)
	if bthLayer == nil || dethLayer == nil {
		return Frame{}, false
	}
	bth := bthLayer.(*BTH)
	deth := dethLayer.(*DETH)
	if !bth.Management() || len(deth.Payload) == 0 {
		return Frame{}, false
	}

	frame := Frame{
		Index:     index,
		Transport: "ib",
		PKey:      bth.PKey,
		Data:      append([]byte(nil), deth.Payload...),
		Conversation: reassembly.Conversation{
			SrcQP: deth.SrcQP,
			DstQP: bth.DestQP,
		},
	}
	if md := packet.Metadata(); md != nil {
		frame.Timestamp = md.Timestamp
	}
	if packet.Layer(layers.LayerTypeUDP) != nil {
		frame.Transport = "rocev2"
	}

	switch {
	case packet.Layer(LayerTypeGRH) != nil:
		grh := packet.Layer(LayerTypeGRH).(*GRH)
		frame.Conversation.Src = grh.SGID.String()
		frame.Conversation.Dst = grh.DGID.String()
	case packet.Layer(LayerTypeLRH) != nil:
		src, dst := packet.Layer(LayerTypeLRH).(*LRH).LinkFlow().Endpoints()
		frame.Conversation.Src = src.String()
		frame.Conversation.Dst = dst.String()
	case packet.NetworkLayer() != nil:
		src, dst := packet.NetworkLayer().NetworkFlow().Endpoints()
		frame.Conversation.Src = src.String()
		frame.Conversation.Dst = dst.String()
	}
	return frame, true
}
