package service

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	ErrInvalidImage  = errors.New("file is not a supported image")
	ErrImageTooLarge = errors.New("image exceeds the upload limit")
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

type uploadedImage struct {
	data        []byte
	contentType string
	ext         string
}

// readImage buffers at most limit bytes and checks the content is an image.
// The declared content type of the upload is ignored in favour of sniffing.
func readImage(r io.Reader, limit int64) (*uploadedImage, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrImageTooLarge
	}
	if len(data) == 0 {
		return nil, ErrInvalidImage
	}

	ct := http.DetectContentType(data)
	ext, ok := imageExtensions[ct]
	if !ok {
		return nil, fmt.Errorf("%w: detected %s", ErrInvalidImage, ct)
	}
	switch ct {
	case "image/jpeg", "image/png", "image/gif":
		if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
	}
	return &uploadedImage{data: data, contentType: ct, ext: ext}, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// sanitizeFilename reduces a client supplied name to a safe ASCII base name.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(strings.TrimSpace(name))
	name = unsafeFilenameChars.ReplaceAllString(strings.Join(strings.Fields(name), "_"), "")
	name = strings.Trim(name, "._")
	if name == "" {
		return "upload"
	}
	return name
}
