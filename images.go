package pagespub

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pagespub/publish"
)

const maxImagesPerPost = 20

var errUploadTooLarge = errors.New("file too large")

// readUpload reads one multipart file, refusing anything over limit bytes.
func readUpload(fh *multipart.FileHeader, limit int64) (publish.Asset, error) {
	if fh.Size > limit {
		return publish.Asset{}, fmt.Errorf("%w: %s (max %dMB)", errUploadTooLarge, fh.Filename, limit>>20)
	}
	src, err := fh.Open()
	if err != nil {
		return publish.Asset{}, err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return publish.Asset{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	if int64(len(data)) > limit {
		return publish.Asset{}, fmt.Errorf("%w: %s (max %dMB)", errUploadTooLarge, fh.Filename, limit>>20)
	}
	return publish.Asset{Name: fh.Filename, Data: data}, nil
}

// readAssets collects the optional thumbnail ("thumb") and the inline images
// ("images") from a multipart publish request.
func readAssets(c echo.Context, limit int64) (*publish.Asset, []publish.Asset, error) {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil, nil, nil
	}

	var thumb *publish.Asset
	fh, err := c.FormFile("thumb")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return nil, nil, err
	default:
		a, err := readUpload(fh, limit)
		if err != nil {
			return nil, nil, err
		}
		thumb = &a
	}

	var images []publish.Asset
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, err
	}
	files := form.File["images"]
	if len(files) > maxImagesPerPost {
		return nil, nil, fmt.Errorf("too many images (max %d)", maxImagesPerPost)
	}
	for _, fh := range files {
		if fh.Filename == "" {
			continue
		}
		a, err := readUpload(fh, limit)
		if err != nil {
			return nil, nil, err
		}
		images = append(images, a)
	}
	return thumb, images, nil
}
