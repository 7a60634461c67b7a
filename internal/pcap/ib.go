package pcap

// InfiniBand transport headers as gopacket layers

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/tturner/madscope/internal/mad"
)

// LinkTypeInfiniBand is LINKTYPE_INFINIBAND: frames start with the local
// route header.
const LinkTypeInfiniBand layers.LinkType = 247

// RoCEv2Port is the UDP port carrying RoCEv2 base transport headers.
const RoCEv2Port = 4791

const (
	lrhSize  = 8
	grhSize  = 40
	bthSize  = 12
	dethSize = 8
	icrcSize = 4

	// Link next header values carrying IBA transport.
	lnhIBALocal  = 2
	lnhIBAGlobal = 3

	grhNextHeaderIBA = 0x1B

	// Unreliable datagram SEND only.
	opcodeUDSendOnly = 0x64
)

// EndpointLID formats a 16-bit local identifier.
var EndpointLID = gopacket.RegisterEndpointType(2300, gopacket.EndpointTypeMetadata{Name: "LID", Formatter: func(b []byte) string {
	if len(b) != 2 {
		return fmt.Sprintf("%X", b)
	}
	return fmt.Sprintf("lid:%d", binary.BigEndian.Uint16(b))
}})

var (
	LayerTypeLRH  = gopacket.RegisterLayerType(2300, gopacket.LayerTypeMetadata{Name: "IB-LRH", Decoder: gopacket.DecodeFunc(decodeLRH)})
	LayerTypeGRH  = gopacket.RegisterLayerType(2301, gopacket.LayerTypeMetadata{Name: "IB-GRH", Decoder: gopacket.DecodeFunc(decodeGRH)})
	LayerTypeBTH  = gopacket.RegisterLayerType(2302, gopacket.LayerTypeMetadata{Name: "IB-BTH", Decoder: gopacket.DecodeFunc(decodeBTH)})
	LayerTypeDETH = gopacket.RegisterLayerType(2303, gopacket.LayerTypeMetadata{Name: "IB-DETH", Decoder: gopacket.DecodeFunc(decodeDETH)})
)

func init() {
	layers.LinkTypeMetadata[LinkTypeInfiniBand] = layers.EnumMetadata{
		DecodeWith: gopacket.DecodeFunc(decodeLRH),
		Name:       "InfiniBand",
		LayerType:  LayerTypeLRH,
	}
	layers.RegisterUDPPortLayerType(RoCEv2Port, LayerTypeBTH)
}

func truncatedLayer(name string, need, have int) error {
	return fmt.Errorf("%s needs %d bytes, have %d: %w", name, need, have, mad.ErrTruncatedBuffer)
}

// LRH is the InfiniBand local route header.
type LRH struct {
	layers.BaseLayer
	VL           uint8
	LinkVersion  uint8
	SL           uint8
	LinkNext     uint8
	DLID         uint16
	PacketLength uint16
	SLID         uint16
}

func (l *LRH) LayerType() gopacket.LayerType { return LayerTypeLRH }

// DecodeFromBytes parses the header and trims the payload to the declared
// packet length, which drops the variant CRC.
func (l *LRH) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < lrhSize {
		df.SetTruncated()
		return truncatedLayer("local route header", lrhSize, len(data))
	}
	l.VL = data[0] >> 4
	l.LinkVersion = data[0] & 0x0F
	l.SL = data[1] >> 4
	l.LinkNext = data[1] & 0x03
	l.DLID = binary.BigEndian.Uint16(data[2:4])
	l.PacketLength = binary.BigEndian.Uint16(data[4:6]) & 0x07FF
	l.SLID = binary.BigEndian.Uint16(data[6:8])

	end := int(l.PacketLength) * 4
	if end < lrhSize || end > len(data) {
		end = len(data)
	}
	l.Contents = data[:lrhSize]
	l.Payload = data[lrhSize:end]
	return nil
}

func (l *LRH) CanDecode() gopacket.LayerClass { return LayerTypeLRH }

func (l *LRH) NextLayerType() gopacket.LayerType {
	switch l.LinkNext {
	case lnhIBALocal:
		return LayerTypeBTH
	case lnhIBAGlobal:
		return LayerTypeGRH
	}
	return gopacket.LayerTypePayload
}

func decodeLRH(data []byte, p gopacket.PacketBuilder) error {
	l := &LRH{}
	if err := l.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(l)
	p.SetLinkLayer(l)
	return p.NextDecoder(l.NextLayerType())
}

// LinkFlow returns the LID flow of the packet.
func (l *LRH) LinkFlow() gopacket.Flow {
	src := make([]byte, 2)
	dst := make([]byte, 2)
	binary.BigEndian.PutUint16(src, l.SLID)
	binary.BigEndian.PutUint16(dst, l.DLID)
	return gopacket.NewFlow(EndpointLID, src, dst)
}

// GRH is the InfiniBand global route header.
type GRH struct {
	layers.BaseLayer
	IPVersion    uint8
	TrafficClass uint8
	FlowLabel    uint32
	PayloadLen   uint16
	NextHeader   uint8
	HopLimit     uint8
	SGID         netip.Addr
	DGID         netip.Addr
}

func (g *GRH) LayerType() gopacket.LayerType { return LayerTypeGRH }

func (g *GRH) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < grhSize {
		df.SetTruncated()
		return truncatedLayer("global route header", grhSize, len(data))
	}
	word := binary.BigEndian.Uint32(data[0:4])
	g.IPVersion = uint8(word >> 28)
	g.TrafficClass = uint8(word >> 20)
	g.FlowLabel = word & 0x000FFFFF
	g.PayloadLen = binary.BigEndian.Uint16(data[4:6])
	g.NextHeader = data[6]
	g.HopLimit = data[7]
	g.SGID = netip.AddrFrom16([16]byte(data[8:24]))
	g.DGID = netip.AddrFrom16([16]byte(data[24:40]))
	g.Contents = data[:grhSize]
	g.Payload = data[grhSize:]
	return nil
}

func (g *GRH) CanDecode() gopacket.LayerClass { return LayerTypeGRH }

func (g *GRH) NextLayerType() gopacket.LayerType {
	if g.NextHeader == grhNextHeaderIBA {
		return LayerTypeBTH
	}
	return gopacket.LayerTypePayload
}

func decodeGRH(data []byte, p gopacket.PacketBuilder) error {
	g := &GRH{}
	if err := g.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(g)
	return p.NextDecoder(g.NextLayerType())
}

// BTH is the base transport header.
type BTH struct {
	layers.BaseLayer
	Opcode     uint8
	Solicited  bool
	MigReq     bool
	PadCount   uint8
	TVer       uint8
	PKey       uint16
	DestQP     uint32
	AckRequest bool
	PSN        uint32
}

func (b *BTH) LayerType() gopacket.LayerType { return LayerTypeBTH }

// DecodeFromBytes parses the header. The payload excludes pad bytes and the
// invariant CRC.
func (b *BTH) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < bthSize {
		df.SetTruncated()
		return truncatedLayer("base transport header", bthSize, len(data))
	}
	b.Opcode = data[0]
	b.Solicited = data[1]&0x80 != 0
	b.MigReq = data[1]&0x40 != 0
	b.PadCount = (data[1] >> 4) & 0x03
	b.TVer = data[1] & 0x0F
	b.PKey = binary.BigEndian.Uint16(data[2:4])
	b.DestQP = binary.BigEndian.Uint32(data[4:8]) & 0x00FFFFFF
	b.AckRequest = data[8]&0x80 != 0
	b.PSN = binary.BigEndian.Uint32(data[8:12]) & 0x00FFFFFF

	end := len(data) - icrcSize - int(b.PadCount)
	if end < bthSize {
		end = bthSize
	}
	b.Contents = data[:bthSize]
	b.Payload = data[bthSize:end]
	return nil
}

func (b *BTH) CanDecode() gopacket.LayerClass { return LayerTypeBTH }

func (b *BTH) NextLayerType() gopacket.LayerType {
	if b.Opcode == opcodeUDSendOnly {
		return LayerTypeDETH
	}
	return gopacket.LayerTypePayload
}

// Management reports whether the packet targets a management queue pair.
func (b *BTH) Management() bool {
	return b.DestQP <= 1
}

func decodeBTH(data []byte, p gopacket.PacketBuilder) error {
	b := &BTH{}
	if err := b.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(b)
	return p.NextDecoder(b.NextLayerType())
}

// DETH is the datagram extended transport header.
type DETH struct {
	layers.BaseLayer
	QKey  uint32
	SrcQP uint32
}

func (d *DETH) LayerType() gopacket.LayerType { return LayerTypeDETH }

func (d *DETH) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < dethSize {
		df.SetTruncated()
		return truncatedLayer("datagram extended transport header", dethSize, len(data))
	}
	d.QKey = binary.BigEndian.Uint32(data[0:4])
	d.SrcQP = binary.BigEndian.Uint32(data[4:8]) & 0x00FFFFFF
	d.Contents = data[:dethSize]
	d.Payload = data[dethSize:]
	return nil
}

func (d *DETH) CanDecode() gopacket.LayerClass { return LayerTypeDETH }

func (d *DETH) NextLayerType() gopacket.LayerType { return mad.LayerTypeMAD }

func decodeDETH(data []byte, p gopacket.PacketBuilder) error {
	d := &DETH{}
	if err := d.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(d)
	return p.NextDecoder(d.NextLayerType())
}

// AppendLRH encodes an LRH for fixtures and live tooling. length is the
// byte count from the LRH through the invariant CRC.
func AppendLRH(dst []byte, l LRH, length int) []byte {
	dst = append(dst, l.VL<<4|l.LinkVersion&0x0F, l.SL<<4|l.LinkNext&0x03)
	dst = binary.BigEndian.AppendUint16(dst, l.DLID)
	dst = binary.BigEndian.AppendUint16(dst, uint16(length/4)&0x07FF)
	return binary.BigEndian.AppendUint16(dst, l.SLID)
}

// AppendBTH encodes a BTH.
func AppendBTH(dst []byte, b BTH) []byte {
	flags := b.PadCount&0x03<<4 | b.TVer&0x0F
	if b.Solicited {
		flags |= 0x80
	}
	if b.MigReq {
		flags |= 0x40
	}
	dst = append(dst, b.Opcode, flags)
	dst = binary.BigEndian.AppendUint16(dst, b.PKey)
	dst = binary.BigEndian.AppendUint32(dst, b.DestQP&0x00FFFFFF)
	psn := b.PSN & 0x00FFFFFF
	if b.AckRequest {
		psn |= 0x80000000
	}
	return binary.BigEndian.AppendUint32(dst, psn)
}

// AppendDETH encodes a DETH.
func AppendDETH(dst []byte, d DETH) []byte {
	dst = binary.BigEndian.AppendUint32(dst, d.QKey)
	return binary.BigEndian.AppendUint32(dst, d.SrcQP&0x00FFFFFF)
}
