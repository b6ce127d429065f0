package shop

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"
	"github.com/plantitas/plantitas/internal/client/pipeline"
)

// MaxImageSize bounds product image uploads.
const MaxImageSize = 5 << 20

// Image is a product picture ready for upload. ContentType comes from the file contents, not
// from its name.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// NewImage checks that data holds a supported image and records its type.
func NewImage(filename string, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrNotAnImage.Msg("image file is empty")
	}
	if len(data) > MaxImageSize {
		return nil, ErrNotAnImage.Msg(fmt.Sprintf("image exceeds %d MiB", MaxImageSize>>20))
	}
	if !filetype.IsImage(data) {
		return nil, ErrNotAnImage.Msg(fmt.Sprintf("%s is not an image", filename))
	}
	kind, err := filetype.Image(data)
	if err != nil {
		return nil, ErrNotAnImage.Err(err)
	}
	name := filepath.Base(filename)
	if filepath.Ext(name) == "" && kind.Extension != "" {
		name += "." + kind.Extension
	}
	return &Image{Filename: name, ContentType: kind.MIME.Value, Data: data}, nil
}

// LoadImage reads and checks an image file.
func LoadImage(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return NewImage(path, data)
}

func (img *Image) part() pipeline.File {
	return pipeline.File{
		Field:       "image",
		Filename:    img.Filename,
		ContentType: img.ContentType,
		Data:        img.Data,
	}
}
