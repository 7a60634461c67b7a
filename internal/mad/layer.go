package mad

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// LayerTypeMAD lets gopacket hand management datagrams to this package.
var LayerTypeMAD = gopacket.RegisterLayerType(2310, gopacket.LayerTypeMetadata{Name: "MAD", Decoder: gopacket.DecodeFunc(decodeMAD)})

// MAD is a management datagram as a gopacket layer. Contents is the common
// header; Payload is everything after it.
type MAD struct {
	layers.BaseLayer
	Envelope
}

// LayerType returns LayerTypeMAD.
func (m *MAD) LayerType() gopacket.LayerType {
	return LayerTypeMAD
}

// DecodeFromBytes decodes the given bytes into this layer.
func (m *MAD) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	env, off, err := DecodeEnvelope(data, 0)
	if err != nil {
		df.SetTruncated()
		return err
	}
	m.Envelope = env
	m.Contents = data[:off]
	m.Payload = data[off:]
	return nil
}

// CanDecode returns the set of layer types that this DecodingLayer can decode.
func (m *MAD) CanDecode() gopacket.LayerClass {
	return LayerTypeMAD
}

// NextLayerType returns the layer type contained by this DecodingLayer.
func (m *MAD) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypePayload
}

// Bytes returns the full datagram (header plus payload).
func (m *MAD) Bytes() []byte {
	out := make([]byte, 0, len(m.Contents)+len(m.Payload))
	out = append(out, m.Contents...)
	return append(out, m.Payload...)
}

func decodeMAD(data []byte, p gopacket.PacketBuilder) error {
	m := &MAD{}
	if err := m.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(m)
	return p.NextDecoder(m.NextLayerType())
}
