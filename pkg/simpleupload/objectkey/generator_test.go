package objectkey_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipstream/simple-upload/pkg/simpleupload/objectkey"
)

func TestPrefixedGenerator(t *testing.T) {
	gen := objectkey.NewPrefixedGenerator()

	key := gen.GenerateKey("video", "clip.mp4")
	require.True(t, strings.HasPrefix(key, "video/"))
	require.True(t, strings.HasSuffix(key, "_clip.mp4"))

	// Twelve hex characters between prefix and filename.
	token := strings.TrimSuffix(strings.TrimPrefix(key, "video/"), "_clip.mp4")
	assert.Len(t, token, 12)

	// Keys for the same filename must not collide.
	assert.NotEqual(t, key, gen.GenerateKey("video", "clip.mp4"))
}

func TestPrefixedGeneratorSanitizesFilename(t *testing.T) {
	gen := objectkey.NewPrefixedGenerator()

	key := gen.GenerateKey("avatar", `my photo/with:odd*chars?.png`)
	assert.True(t, strings.HasSuffix(key, "_my_photo_with_odd_chars_.png"))
	// No path separators may survive past the prefix.
	assert.Equal(t, 1, strings.Count(key, "/"))
}

func TestCustomFuncGenerator(t *testing.T) {
	gen := &objectkey.CustomFuncGenerator{
		GenerateFunc: func(prefix, filename string) string {
			return prefix + "/fixed_" + filename
		},
	}

	assert.Equal(t, "video/fixed_clip.mp4", gen.GenerateKey("video", "clip.mp4"))
}
