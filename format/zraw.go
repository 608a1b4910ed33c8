// File: format/zraw.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ZRAW is a zstd-compressed raw pixel container:
//
//	offset size  field
//	0      4     magic "ZRAW"
//	4      1     version (1)
//	5      1     components (1..4)
//	6      2     reserved, zero
//	8      4     width, little endian
//	12     4     height, little endian
//	16     ...   zstd frame holding width*height*components bytes, row major
//
// Frames of 256 bytes or more must declare their content size, and it must
// match the header.
//
// Decoding streams the frame row by row so it can stop when a time slice
// runs out and resume on the next call. Discard level d reduces each
// dimension to max(1, dim>>d) by point sampling.

package format

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/momentics/hioload-decode/api"
)

// ZRAW container constants.
const (
	ZRAWVersion    = 1
	zrawHeaderSize = 16
	maxComponents  = 4
	maxDimension   = 1 << 15
	maxDiscard     = 15

	// maxPixelBytes caps width*height*components for every format.
	maxPixelBytes   = 1 << 28
	// Frames of at least this many bytes must carry their content size.
	minDeclaredSize = 256
)

var zrawMagic = [4]byte{'Z', 'R', 'A', 'W'}

// ErrBadHeader is returned for payloads that are not a valid ZRAW container.
var ErrBadHeader = errors.New("zraw: bad header")

var zstdEncPool = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderConcurrency(1),
			zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			panic(err)
		}
		return enc
	},
}

// EncodeZRAW packs pix (row major, width*height*components bytes) into a
// ZRAW container.
func EncodeZRAW(width, height, components int, pix []byte) ([]byte, error) {
	if width <= 0 || height <= 0 || width > maxDimension || height > maxDimension ||
		width*height*max(components, 1) > maxPixelBytes {
		return nil, fmt.Errorf("zraw: dimensions %dx%d: %w", width, height, api.ErrInvalidArgument)
	}
	if components < 1 || components > maxComponents {
		return nil, fmt.Errorf("zraw: %d components: %w", components, api.ErrInvalidArgument)
	}
	if len(pix) != width*height*components {
		return nil, fmt.Errorf("zraw: have %d pixel bytes, want %d: %w",
			len(pix), width*height*components, api.ErrInvalidArgument)
	}
	out := make([]byte, zrawHeaderSize, zrawHeaderSize+len(pix)/2)
	copy(out, zrawMagic[:])
	out[4] = ZRAWVersion
	out[5] = byte(components)
	binary.LittleEndian.PutUint32(out[8:], uint32(width))
	binary.LittleEndian.PutUint32(out[12:], uint32(height))

	enc := zstdEncPool.Get().(*zstd.Encoder)
	out = enc.EncodeAll(pix, out)
	zstdEncPool.Put(enc)
	return out, nil
}

// ZRAW decodes a ZRAW payload. It implements api.FormattedImage and, like
// any formatted image, is driven by one goroutine at a time.
type ZRAW struct {
	payload []byte

	parsed     bool
	width      int
	height     int
	components int
	discard    int

	primary *rowStream
	aux     *rowStream

	now func() time.Time
}

var _ api.FormattedImage = (*ZRAW)(nil)

// NewZRAW wraps payload. The slice must not be modified while decoding.
func NewZRAW(payload []byte) *ZRAW {
	return &ZRAW{payload: payload, now: time.Now}
}

// UpdateData parses the container header.
func (z *ZRAW) UpdateData() bool {
	if z.parsed {
		return true
	}
	w, h, c, err := parseZRAWHeader(z.payload)
	if err != nil {
		return false
	}
	z.width, z.height, z.components = w, h, c
	z.parsed = true
	return true
}

func parseZRAWHeader(p []byte) (w, h, c int, err error) {
	if len(p) < zrawHeaderSize || !bytes.Equal(p[:4], zrawMagic[:]) || p[4] != ZRAWVersion {
		return 0, 0, 0, ErrBadHeader
	}
	c = int(p[5])
	w = int(binary.LittleEndian.Uint32(p[8:]))
	h = int(binary.LittleEndian.Uint32(p[12:]))
	if c < 1 || c > maxComponents || w > maxDimension || h > maxDimension || w*h*c > maxPixelBytes {
		return 0, 0, 0, ErrBadHeader
	}
	// The frame must agree with the header before any pixels are allocated.
	var fh zstd.Header
	if err := fh.Decode(p[zrawHeaderSize:]); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	switch {
	case fh.Skippable:
		return 0, 0, 0, fmt.Errorf("%w: skippable frame", ErrBadHeader)
	case fh.HasFCS && fh.FrameContentSize != uint64(w*h*c):
		return 0, 0, 0, fmt.Errorf("%w: frame holds %d bytes, header wants %d",
			ErrBadHeader, fh.FrameContentSize, w*h*c)
	case !fh.HasFCS && w*h*c >= minDeclaredSize:
		return 0, 0, 0, fmt.Errorf("%w: frame does not declare its size", ErrBadHeader)
	}
	return w, h, c, nil
}

// Width returns the width after the discard level.
func (z *ZRAW) Width() int { return reduce(z.width, z.discard) }

// Height returns the height after the discard level.
func (z *ZRAW) Height() int { return reduce(z.height, z.discard) }

// Components returns the stored component count.
func (z *ZRAW) Components() int { return z.components }

// SetDiscardLevel selects the resolution tier. It has no effect once a
// decode has started.
func (z *ZRAW) SetDiscardLevel(level int) {
	if z.primary != nil || z.aux != nil || level < 0 {
		return
	}
	z.discard = min(level, maxDiscard)
}

// Decode writes all components into out.
func (z *ZRAW) Decode(out api.RawImage, slice time.Duration) bool {
	return z.decode(&z.primary, out, slice, -1)
}

// DecodeChannels writes component channel (1-based, of "of") into out.
func (z *ZRAW) DecodeChannels(out api.RawImage, slice time.Duration, channel, of int) bool {
	if channel < 1 || channel > of || channel > z.components {
		out.Discard()
		return true
	}
	return z.decode(&z.aux, out, slice, channel-1)
}

func (z *ZRAW) decode(sp **rowStream, out api.RawImage, slice time.Duration, channel int) bool {
	if !z.parsed {
		out.Discard()
		return true
	}
	s := *sp
	if s == nil {
		want := z.components
		if channel >= 0 {
			want = 1
		}
		if out.Width() != z.Width() || out.Height() != z.Height() || out.Components() != want {
			out.Discard()
			return true
		}
		var err error
		s, err = newRowStream(z.payload[zrawHeaderSize:], z.width, z.components)
		if err != nil {
			out.Discard()
			return true
		}
		*sp = s
	}
	var deadline time.Time
	if slice > 0 {
		deadline = z.now().Add(slice)
	}
	done, err := s.copyRows(out.Data(), z.height, z.discard, channel, func() bool {
		return !deadline.IsZero() && !z.now().Before(deadline)
	})
	if err != nil {
		s.close()
		*sp = nil
		out.Discard()
		return true
	}
	if done {
		s.close()
		*sp = nil
	}
	return done
}

// rowStream reads full-resolution rows from a zstd frame.
type rowStream struct {
	dec        *zstd.Decoder
	row        []byte
	width      int
	components int
	y          int // next source row
}

func newRowStream(frame []byte, width, components int) (*rowStream, error) {
	dec, err := zstd.NewReader(bytes.NewReader(frame),
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true))
	if err != nil {
		return nil, err
	}
	return &rowStream{
		dec:        dec,
		row:        make([]byte, width*components),
		width:      width,
		components: components,
	}, nil
}

// copyRows decodes source rows into dst until all height rows are read or
// expired reports true. With channel >= 0 only that component is copied.
func (s *rowStream) copyRows(dst []byte, height, discard, channel int, expired func() bool) (bool, error) {
	step := 1 << discard
	ow := reduce(s.width, discard)
	oc := s.components
	if channel >= 0 {
		oc = 1
	}
	for s.y < height {
		if _, err := io.ReadFull(s.dec, s.row); err != nil {
			return false, fmt.Errorf("zraw: row %d: %w", s.y, err)
		}
		if s.y%step == 0 {
			oy := s.y / step
			if oy < reduce(height, discard) {
				base := oy * ow * oc
				for ox := 0; ox < ow; ox++ {
					src := ox * step * s.components
					if channel >= 0 {
						dst[base+ox] = s.row[src+channel]
					} else {
						copy(dst[base+ox*oc:base+(ox+1)*oc], s.row[src:src+oc])
					}
				}
			}
		}
		s.y++
		if s.y < height && expired() {
			return false, nil
		}
	}
	return true, nil
}

func (s *rowStream) close() {
	if s.dec != nil {
		s.dec.Close()
		s.dec = nil
	}
}

func reduce(dim, level int) int {
	if level <= 0 || dim == 0 {
		return dim
	}
	dim >>= level
	if dim < 1 {
		dim = 1
	}
	return dim
}
