package storage

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

const photoJPEGQuality = 85

// PhotoNormalizer re-encodes uploaded student photos as bounded JPEGs.
type PhotoNormalizer struct {
	maxEdge int
}

// NewPhotoNormalizer builds a normalizer fitting images within maxEdge pixels.
func NewPhotoNormalizer(maxEdge int) *PhotoNormalizer {
	if maxEdge <= 0 {
		maxEdge = 800
	}
	return &PhotoNormalizer{maxEdge: maxEdge}
}

// Normalize decodes data, applies EXIF orientation, shrinks it to fit and encodes JPEG.
func (n *PhotoNormalizer) Normalize(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > n.maxEdge || bounds.Dy() > n.maxEdge {
		img = imaging.Fit(img, n.maxEdge, n.maxEdge, imaging.Lanczos)
	}
	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(photoJPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	return buf.Bytes(), nil
}
