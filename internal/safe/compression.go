// internal/safe/compression.go
package safe

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// CompressionOptions configures compression behavior
type CompressionOptions struct {
	// Minimum size in bytes before compressing
	MinSize int
	// Compression level (1=fastest, 4=best)
	Level int
}

func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		MinSize: 1024,
		Level:   2,
	}
}

// compressionManager handles compression operations
type compressionManager struct {
	opts CompressionOptions

	encoders sync.Pool
	decoders sync.Pool
}

func newCompressionManager(opts CompressionOptions) (*compressionManager, error) {
	if opts.Level < int(zstd.SpeedFastest) || opts.Level > int(zstd.SpeedBestCompression) {
		return nil, fmt.Errorf("compression level %d out of range", opts.Level)
	}

	// Fail early on a bad configuration instead of on first use.
	enc, err := newEncoder(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}
	dec, err := newDecoder()
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	cm := &compressionManager{opts: opts}
	cm.encoders.Put(enc)
	cm.decoders.Put(dec)
	return cm, nil
}

func newEncoder(level int) (*zstd.Encoder, error) {
	return zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevel(level)),
		zstd.WithEncoderConcurrency(1),
	)
}

func newDecoder() (*zstd.Decoder, error) {
	return zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
	)
}

// compress returns the bytes to store and whether they are compressed.
// Content below MinSize, or content that does not shrink, is stored as is.
func (cm *compressionManager) compress(content []byte) ([]byte, bool, error) {
	if len(content) < cm.opts.MinSize {
		return content, false, nil
	}

	enc, _ := cm.encoders.Get().(*zstd.Encoder)
	if enc == nil {
		var err error
		if enc, err = newEncoder(cm.opts.Level); err != nil {
			return nil, false, fmt.Errorf("creating encoder: %w", err)
		}
	}
	defer cm.encoders.Put(enc)

	out := enc.EncodeAll(content, make([]byte, 0, len(content)/2))
	if len(out) >= len(content) {
		return content, false, nil
	}
	return out, true, nil
}

func (cm *compressionManager) decompress(content []byte) ([]byte, error) {
	dec, _ := cm.decoders.Get().(*zstd.Decoder)
	if dec == nil {
		var err error
		if dec, err = newDecoder(); err != nil {
			return nil, fmt.Errorf("creating decoder: %w", err)
		}
	}
	defer cm.decoders.Put(dec)

	out, err := dec.DecodeAll(content, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return out, nil
}

func looksCompressed(content []byte) bool {
	return len(content) > len(zstdMagic) && bytes.Equal(content[:len(zstdMagic)], zstdMagic)
}
