// Package compression wraps zstd for stored artifacts.
//
// Small payloads and payloads that do not shrink are stored raw; the zstd
// magic number distinguishes the two forms on the way back, so a store can
// hold a mix of raw and compressed objects.
package compression

import (
	"bytes"

	"github.com/klauspost/compress/zstd"
)

// Objects below this size are never worth compressing.
const minSize = 128

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Level selects the encoder speed/ratio trade-off.
type Level string

const (
	Fastest Level = "fastest"
	Default Level = "default"
	Better  Level = "better"
)

// Codec compresses and decompresses artifact payloads.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec creates a codec at the given level.
func NewCodec(level Level) (*Codec, error) {
	encoderLevel := zstd.SpeedDefault
	switch level {
	case Fastest:
		encoderLevel = zstd.SpeedFastest
	case Better:
		encoderLevel = zstd.SpeedBetterCompression
	}

	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(encoderLevel),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, err
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}

	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Compress returns the compressed payload, or the input unchanged when
// compression would not pay off.
func (c *Codec) Compress(data []byte) []byte {
	if len(data) < minSize {
		return data
	}
	compressed := c.encoder.EncodeAll(data, make([]byte, 0, len(data)))
	if len(compressed) >= len(data) {
		return data
	}
	return compressed
}

// Decompress restores a payload, passing raw payloads through untouched.
func (c *Codec) Decompress(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	return c.decoder.DecodeAll(data, nil)
}

// Close releases encoder and decoder resources.
func (c *Codec) Close() error {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
	return nil
}
