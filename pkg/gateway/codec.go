package gateway

import (
	"github.com/klauspost/compress/zstd"
)

// frameEncoder compresses server frames when a client negotiates
// ?compress=zstd. One encoder serves all connections; EncodeAll is
// safe for concurrent use and allocates nothing per call beyond the
// destination buffer.
var frameEncoder *zstd.Encoder

func init() {
	var err error
	frameEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedFastest),
		zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic("gateway: zstd encoder: " + err.Error())
	}
}

// compressFrame returns the zstd-compressed form of a JSON frame.
func compressFrame(data []byte) []byte {
	return frameEncoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

var frameDecoder *zstd.Decoder

func init() {
	var err error
	frameDecoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic("gateway: zstd decoder: " + err.Error())
	}
}

// decompressFrame reverses compressFrame. The server never receives
// compressed frames; this exists for tooling and tests.
func decompressFrame(data []byte) ([]byte, error) {
	return frameDecoder.DecodeAll(data, nil)
}
