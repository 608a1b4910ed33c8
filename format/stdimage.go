// File: format/stdimage.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// StdImage adapts the standard library image decoders (PNG, JPEG, GIF) to
// api.FormattedImage. These decoders are not incremental, so Decode always
// completes in one call regardless of the time slice.

package format

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/momentics/hioload-decode/api"
)

// StdImage wraps an encoded PNG, JPEG or GIF payload.
type StdImage struct {
	payload []byte

	parsed     bool
	format     string
	width      int
	height     int
	components int
	discard    int

	decoded image.Image
}

var _ api.FormattedImage = (*StdImage)(nil)

// NewStdImage wraps payload. The slice must not be modified while decoding.
func NewStdImage(payload []byte) *StdImage {
	return &StdImage{payload: payload}
}

// UpdateData reads the image configuration. Grayscale sources decode to one
// component, YCbCr to three and everything else to four. Images over
// maxPixelBytes of decoded pixels are refused.
func (s *StdImage) UpdateData() bool {
	if s.parsed {
		return true
	}
	cfg, name, err := image.DecodeConfig(bytes.NewReader(s.payload))
	if err != nil {
		return false
	}
	s.format = name
	s.width, s.height = cfg.Width, cfg.Height
	switch cfg.ColorModel {
	case color.GrayModel, color.Gray16Model:
		s.components = 1
	case color.YCbCrModel:
		s.components = 3
	default:
		s.components = 4
	}
	if cfg.Width < 0 || cfg.Height < 0 ||
		int64(cfg.Width)*int64(cfg.Height)*int64(s.components) > maxPixelBytes {
		return false
	}
	s.parsed = true
	return true
}

// Format returns the registered format name, e.g. "png".
func (s *StdImage) Format() string { return s.format }

func (s *StdImage) Width() int      { return reduce(s.width, s.discard) }
func (s *StdImage) Height() int     { return reduce(s.height, s.discard) }
func (s *StdImage) Components() int { return s.components }

// SetDiscardLevel selects the resolution tier.
func (s *StdImage) SetDiscardLevel(level int) {
	if level >= 0 {
		s.discard = min(level, maxDiscard)
	}
}

// Decode writes all components into out.
func (s *StdImage) Decode(out api.RawImage, _ time.Duration) bool {
	if !s.fill(out, s.components, -1) {
		out.Discard()
	}
	return true
}

// DecodeChannels writes component channel (1-based, of "of") into out.
func (s *StdImage) DecodeChannels(out api.RawImage, _ time.Duration, channel, of int) bool {
	if channel < 1 || channel > of || channel > s.components || !s.fill(out, 1, channel-1) {
		out.Discard()
	}
	return true
}

func (s *StdImage) fill(out api.RawImage, want, channel int) bool {
	if !s.parsed || out.Width() != s.Width() || out.Height() != s.Height() || out.Components() != want {
		return false
	}
	if s.decoded == nil {
		img, _, err := image.Decode(bytes.NewReader(s.payload))
		if err != nil {
			return false
		}
		s.decoded = img
	}
	dst := out.Data()
	b := s.decoded.Bounds()
	step := 1 << s.discard
	ow, oh := s.Width(), s.Height()
	var px [4]byte
	for oy := 0; oy < oh; oy++ {
		for ox := 0; ox < ow; ox++ {
			s.sample(&px, b.Min.X+ox*step, b.Min.Y+oy*step)
			i := (oy*ow + ox) * want
			if channel >= 0 {
				dst[i] = px[channel]
			} else {
				copy(dst[i:i+want], px[:want])
			}
		}
	}
	return true
}

// sample stores the pixel at (x, y) with s.components components in px.
func (s *StdImage) sample(px *[4]byte, x, y int) {
	c := s.decoded.At(x, y)
	switch s.components {
	case 1:
		px[0] = color.GrayModel.Convert(c).(color.Gray).Y
	case 3:
		r, g, b, _ := c.RGBA()
		px[0], px[1], px[2] = byte(r>>8), byte(g>>8), byte(b>>8)
	default:
		n := color.NRGBAModel.Convert(c).(color.NRGBA)
		px[0], px[1], px[2], px[3] = n.R, n.G, n.B, n.A
	}
}
