package detection

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// PrepareImage decodes the upload, applies EXIF orientation and shrinks it so
// the longest side is at most maxSide. Images that already fit keep their
// original bytes. maxSide <= 0 disables resizing.
func PrepareImage(img Image, maxSide int) (Image, int, int, error) {
	if len(img.Data) == 0 {
		return img, 0, 0, fmt.Errorf("image is empty")
	}

	decoded, err := imaging.Decode(bytes.NewReader(img.Data), imaging.AutoOrientation(true))
	if err != nil {
		return img, 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}

	w, h := decoded.Bounds().Dx(), decoded.Bounds().Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img, w, h, nil
	}

	resized := imaging.Fit(decoded, maxSide, maxSide, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return img, 0, 0, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return Image{
		Data:     buf.Bytes(),
		MimeType: "image/jpeg",
		Ref:      img.Ref,
		Hints:    img.Hints,
	}, resized.Bounds().Dx(), resized.Bounds().Dy(), nil
}
