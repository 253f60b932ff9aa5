// Package validate contains filename validators for the upload pipeline.
// Validators run before any object-store or database call, so a rejected
// filename never produces side effects.
package validate

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/clipstream/simple-upload/pkg/simpleupload"
)

// Extension allow-lists per media type.
var (
	VideoExtensions = []string{".mp4", ".mkv"}
	ImageExtensions = []string{".png", ".jpg", ".jpeg"}
)

// NotEmpty rejects missing filenames.
type NotEmpty struct{}

func (NotEmpty) Validate(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return simpleupload.ErrInvalidFilename
	}
	return nil
}

// Extension rejects filenames whose extension is not in the allow-list.
// Matching is case-insensitive.
type Extension struct {
	Allowed []string
}

func (v Extension) Validate(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range v.Allowed {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (allowed: %s)",
		simpleupload.ErrUnsupportedFormat, ext, strings.Join(v.Allowed, ", "))
}

// Chain runs validators in order and stops at the first failure.
type Chain struct {
	validators []simpleupload.Validator
}

// NewChain composes validators into one.
func NewChain(validators ...simpleupload.Validator) *Chain {
	return &Chain{validators: validators}
}

func (c *Chain) Validate(filename string) error {
	for _, v := range c.validators {
		if err := v.Validate(filename); err != nil {
			return err
		}
	}
	return nil
}

// ForMediaType returns the standard validator chain for a media type.
func ForMediaType(mediaType simpleupload.MediaType) *Chain {
	switch mediaType {
	case simpleupload.MediaTypeVideo:
		return NewChain(NotEmpty{}, Extension{Allowed: VideoExtensions})
	case simpleupload.MediaTypeAvatar:
		return NewChain(NotEmpty{}, Extension{Allowed: ImageExtensions})
	default:
		return NewChain(NotEmpty{})
	}
}
