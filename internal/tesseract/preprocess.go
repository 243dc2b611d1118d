package tesseract

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sort"

	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/extract"
)

// Preprocess prepares a rendered page image for recognition. Every preset
// gets grayscale conversion; balanced and accurate add contrast stretching,
// and accurate adds a median filter to knock speckle noise out of old
// scans.
func Preprocess(data []byte, quality extract.Quality) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode page image: %w", err)
	}

	gray := toGray(img)
	if quality == extract.QualityBalanced || quality == extract.QualityAccurate {
		gray = stretchContrast(gray)
	}
	if quality == extract.QualityAccurate {
		gray = medianFilter(gray)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("encode processed image: %w", err)
	}
	return buf.Bytes(), nil
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return out
}

// stretchContrast maps the darkest observed value to 0 and the brightest to
// 255. Faded scans cluster in a narrow band; stretching restores the
// ink/paper separation the recognizer wants.
func stretchContrast(img *image.Gray) *image.Gray {
	min, max := uint8(255), uint8(0)
	for _, p := range img.Pix {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	if max <= min {
		return img
	}

	scale := 255.0 / float64(max-min)
	out := image.NewGray(img.Bounds())
	for i, p := range img.Pix {
		out.Pix[i] = uint8(float64(p-min) * scale)
	}
	return out
}

// medianFilter applies a 3x3 median, preserving edges better than a blur
// while removing salt-and-pepper noise.
func medianFilter(img *image.Gray) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	var window [9]uint8

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					px, py := x+dx, y+dy
					if px < b.Min.X || px >= b.Max.X || py < b.Min.Y || py >= b.Max.Y {
						continue
					}
					window[n] = img.GrayAt(px, py).Y
					n++
				}
			}
			vals := window[:n]
			sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
			out.SetGray(x, y, color.Gray{Y: vals[n/2]})
		}
	}
	return out
}
