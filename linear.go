package dngpatch

import (
	"image"
	"io"
	"os"

	"golang.org/x/image/tiff"
)

// DecodeLinear reads a single-channel TIFF into a pixel buffer. 8-bit
// images keep their sample values.
func DecodeLinear(r io.Reader) (*PixelBuffer, error) {
	img, err := tiff.Decode(r)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	buf := NewPixelBuffer(b.Dx(), b.Dy())
	switch m := img.(type) {
	case *image.Gray16:
		for y := 0; y < buf.Height; y++ {
			row := m.Pix[y*m.Stride:]
			for x := 0; x < buf.Width; x++ {
				buf.Pix[y*buf.Width+x] = uint16(row[2*x])<<8 | uint16(row[2*x+1])
			}
		}
	case *image.Gray:
		for y := 0; y < buf.Height; y++ {
			row := m.Pix[y*m.Stride:]
			for x := 0; x < buf.Width; x++ {
				buf.Pix[y*buf.Width+x] = uint16(row[x])
			}
		}
	default:
		return nil, UnsupportedError("linear image is not grayscale")
	}
	return buf, nil
}

// EncodeLinear writes buf as an uncompressed 16-bit grayscale TIFF.
func EncodeLinear(w io.Writer, buf *PixelBuffer) error {
	if err := buf.valid(); err != nil {
		return err
	}
	img := image.NewGray16(image.Rect(0, 0, buf.Width, buf.Height))
	for i, v := range buf.Pix {
		img.Pix[2*i] = uint8(v >> 8)
		img.Pix[2*i+1] = uint8(v)
	}
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Uncompressed})
}

// ReadLinear reads the linear TIFF at path.
func ReadLinear(path string) (*PixelBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeLinear(f)
}

// WriteLinear writes buf to path as a linear TIFF.
func WriteLinear(path string, buf *PixelBuffer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeLinear(f, buf); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
