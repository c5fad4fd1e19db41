package audio

import (
	"bytes"
	"encoding/binary"
)

// Encoder packs raw PCM16LE into a self-describing container.
type Encoder interface {
	MediaType() string
	Encode(pcm []byte, f Format) []byte
}

// WAVEncoder writes a canonical 44-byte RIFF header followed by the samples.
type WAVEncoder struct{}

func (WAVEncoder) MediaType() string { return "audio/wav" }

func (WAVEncoder) Encode(pcm []byte, f Format) []byte {
	channels := f.Channels
	if channels <= 0 {
		channels = 1
	}
	rate := f.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	const bitsPerSample = 16
	blockAlign := channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate*blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
