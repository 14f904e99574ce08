package dngpatch

import (
	"path/filepath"
	"strings"
)

// A RasterReader loads a plane from a file.
type RasterReader func(path string) (*PixelBuffer, error)

var rasters = map[string]RasterReader{}

// RegisterRaster registers a reader for files with the given extension.
func RegisterRaster(ext string, r RasterReader) {
	rasters[strings.ToLower(ext)] = r
}

func init() {
	RegisterRaster(".tif", ReadLinear)
	RegisterRaster(".tiff", ReadLinear)
}

// LoadRaster reads path with the reader registered for its extension,
// and decodes anything else as a raw container with dec.
func LoadRaster(path string, dec Decoder) (*PixelBuffer, error) {
	if r, ok := rasters[strings.ToLower(filepath.Ext(path))]; ok {
		return r(path)
	}
	buf, _, err := dec.Decode(path)
	return buf, err
}
