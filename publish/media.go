package publish

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/eringen/pagespub/format"
)

const jpegQuality = 80

// Asset is an uploaded file as received from the operator.
type Asset struct {
	Name string
	Data []byte
}

// MediaAsset is an Asset placed in a post's media directory.
type MediaAsset struct {
	FileName string
	Data     []byte
	Path     string
	Width    int
	Height   int
}

func placeAsset(a Asset, mediaDir string) MediaAsset {
	name := format.SanitizeFileName(a.Name)
	m := MediaAsset{FileName: name, Data: a.Data, Path: mediaDir + name}
	m.Width, m.Height, _ = imageSize(a.Data)
	return m
}

// imageSize reads the dimensions of a GIF, JPEG or PNG without decoding pixels.
func imageSize(data []byte) (int, int, bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

// downscale shrinks an image wider than maxWidth, keeping its aspect ratio and
// source format. Images that are narrow enough, or in a format the standard
// decoders do not know, are returned unchanged with resized == false.
func downscale(data []byte, maxWidth int) (out []byte, resized bool, err error) {
	if maxWidth <= 0 {
		return data, false, nil
	}
	img, kind, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, false, nil
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxWidth {
		return data, false, nil
	}

	newH := h * maxWidth / w
	if newH < 1 {
		newH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	switch kind {
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
	case "png":
		err = png.Encode(&buf, dst)
	case "gif":
		err = gif.Encode(&buf, dst, nil)
	default:
		return data, false, nil
	}
	if err != nil {
		return data, false, fmt.Errorf("encode %s: %w", kind, err)
	}
	return buf.Bytes(), true, nil
}
