// Package util is a set of utility variables or methods
package util

import (
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// SupportedExt holds lower case image extensions the decoders are registered for.
var SupportedExt = mapset.NewSet(
	".jpeg", ".jpg",
	".png",
	".gif",
	".bmp",
	".webp",
)

// IsSupported reports whether the file name has a supported image extension,
// ignoring case.
func IsSupported(name string) bool {
	return SupportedExt.Contains(strings.ToLower(filepath.Ext(name)))
}
