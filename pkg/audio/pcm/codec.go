// Package pcm converts between raw PCM bytes and float32 samples
// in [-1, 1].
package pcm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/xaionaro-go/rtdenoise/pkg/audio"
)

const s24Scale = 1 << 23

type codec struct {
	decode func(p []byte) float64
	encode func(p []byte, v float64)
}

var codecs = map[audio.PCMFormat]codec{
	audio.PCMFormatU8: {
		decode: func(p []byte) float64 { return (float64(p[0]) - 128) / 128 },
		encode: func(p []byte, v float64) { p[0] = byte(clampInt(v*128, -128, 127) + 128) },
	},
	audio.PCMFormatS16LE: intCodec(binary.LittleEndian, 16),
	audio.PCMFormatS16BE: intCodec(binary.BigEndian, 16),
	audio.PCMFormatS24LE: {
		decode: func(p []byte) float64 {
			u := uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16
			return float64(signExtend24(u)) / s24Scale
		},
		encode: func(p []byte, v float64) {
			u := uint32(clampInt(v*s24Scale, -s24Scale, s24Scale-1))
			p[0], p[1], p[2] = byte(u), byte(u>>8), byte(u>>16)
		},
	},
	audio.PCMFormatS24BE: {
		decode: func(p []byte) float64 {
			u := uint32(p[2]) | uint32(p[1])<<8 | uint32(p[0])<<16
			return float64(signExtend24(u)) / s24Scale
		},
		encode: func(p []byte, v float64) {
			u := uint32(clampInt(v*s24Scale, -s24Scale, s24Scale-1))
			p[0], p[1], p[2] = byte(u>>16), byte(u>>8), byte(u)
		},
	},
	audio.PCMFormatS32LE: intCodec(binary.LittleEndian, 32),
	audio.PCMFormatS32BE: intCodec(binary.BigEndian, 32),
	audio.PCMFormatS64LE: intCodec(binary.LittleEndian, 64),
	audio.PCMFormatS64BE: intCodec(binary.BigEndian, 64),
	audio.PCMFormatFloat32LE: {
		decode: func(p []byte) float64 { return float64(math.Float32frombits(binary.LittleEndian.Uint32(p))) },
		encode: func(p []byte, v float64) { binary.LittleEndian.PutUint32(p, math.Float32bits(float32(v))) },
	},
	audio.PCMFormatFloat32BE: {
		decode: func(p []byte) float64 { return float64(math.Float32frombits(binary.BigEndian.Uint32(p))) },
		encode: func(p []byte, v float64) { binary.BigEndian.PutUint32(p, math.Float32bits(float32(v))) },
	},
	audio.PCMFormatFloat64LE: {
		decode: func(p []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(p)) },
		encode: func(p []byte, v float64) { binary.LittleEndian.PutUint64(p, math.Float64bits(v)) },
	},
	audio.PCMFormatFloat64BE: {
		decode: func(p []byte) float64 { return math.Float64frombits(binary.BigEndian.Uint64(p)) },
		encode: func(p []byte, v float64) { binary.BigEndian.PutUint64(p, math.Float64bits(v)) },
	},
}

func intCodec(order binary.ByteOrder, bits uint) codec {
	scale := math.Ldexp(1, int(bits)-1)
	lo, hi := -scale, scale-1
	switch bits {
	case 16:
		return codec{
			decode: func(p []byte) float64 { return float64(int16(order.Uint16(p))) / scale },
			encode: func(p []byte, v float64) { order.PutUint16(p, uint16(int16(clampInt(v*scale, lo, hi)))) },
		}
	case 32:
		return codec{
			decode: func(p []byte) float64 { return float64(int32(order.Uint32(p))) / scale },
			encode: func(p []byte, v float64) { order.PutUint32(p, uint32(int32(clampInt(v*scale, lo, hi)))) },
		}
	case 64:
		return codec{
			decode: func(p []byte) float64 { return float64(int64(order.Uint64(p))) / scale },
			encode: func(p []byte, v float64) {
				// 2^63-1 is not representable in float64
				x := v * scale
				switch {
				case x >= scale:
					order.PutUint64(p, math.MaxInt64)
				case x <= lo:
					order.PutUint64(p, 1<<63)
				default:
					order.PutUint64(p, uint64(int64(math.Round(x))))
				}
			},
		}
	}
	panic(fmt.Errorf("unsupported integer size: %d", bits))
}

func clampInt(v, lo, hi float64) int64 {
	v = math.Round(v)
	switch {
	case math.IsNaN(v):
		return 0
	case v < lo:
		return int64(lo)
	case v > hi:
		return int64(hi)
	}
	return int64(v)
}

func signExtend24(u uint32) int32 {
	return int32(u<<8) >> 8
}

func getCodec(f audio.PCMFormat) (codec, error) {
	c, ok := codecs[f]
	if !ok {
		return codec{}, fmt.Errorf("unsupported PCM format: %v", f)
	}
	return c, nil
}

// Decode converts len(dst) samples from src.
func Decode(dst []float32, src []byte, f audio.PCMFormat) error {
	c, err := getCodec(f)
	if err != nil {
		return err
	}
	size := int(f.Size())
	if len(src) != len(dst)*size {
		return fmt.Errorf("expected %d bytes for %d samples of %v, but received %d", len(dst)*size, len(dst), f, len(src))
	}
	for idx := range dst {
		dst[idx] = float32(c.decode(src[idx*size:]))
	}
	return nil
}

// Encode converts src into len(src)*f.Size() bytes of dst.
func Encode(dst []byte, src []float32, f audio.PCMFormat) error {
	c, err := getCodec(f)
	if err != nil {
		return err
	}
	size := int(f.Size())
	if len(dst) != len(src)*size {
		return fmt.Errorf("expected a buffer of %d bytes for %d samples of %v, but received %d", len(src)*size, len(src), f, len(dst))
	}
	for idx, v := range src {
		c.encode(dst[idx*size:], float64(v))
	}
	return nil
}
