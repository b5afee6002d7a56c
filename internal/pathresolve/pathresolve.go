// Package pathresolve translates virtual upload-target paths
// (/<dev_name>/<segments>) into absolute filesystem paths under a
// configured volume, rejecting traversal, per spec.md §4.9.
package pathresolve

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/canmi21/anchr/internal/config"
)

var (
	ErrEmptyPath        = errors.New("pathresolve: virtual path is empty")
	ErrUnknownVolume    = errors.New("pathresolve: unknown volume")
	ErrNonNormalSegment = errors.New("pathresolve: path segment is not a plain name")
)

// isNormalSegment reports whether s is a "normal name" component: nonempty,
// not ".", not "..", and contains no path separator.
func isNormalSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, "/\\")
}

// Resolve resolves a virtual path of the form /<dev_name>/<rest...> to an
// absolute filesystem path under the matching volume's bind_path. The
// filename (upload leaf) is never part of virtualPath; callers append it
// themselves after resolution to keep it from being smuggled in as a
// traversal segment.
func Resolve(cfg *config.Config, virtualPath string) (string, error) {
	trimmed := strings.Trim(virtualPath, "/")
	if trimmed == "" {
		return "", ErrEmptyPath
	}
	segments := strings.Split(trimmed, "/")
	devName := segments[0]
	rest := segments[1:]

	vol, ok := cfg.VolumeByName(devName)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownVolume, devName)
	}

	result := vol.BindPath
	for _, seg := range rest {
		if !isNormalSegment(seg) {
			return "", fmt.Errorf("%w: %q", ErrNonNormalSegment, seg)
		}
		result = path.Join(result, seg)
	}
	return result, nil
}
