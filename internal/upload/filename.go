// Package upload implements the client side of the chunked, parallel,
// resumable, content-addressed upload protocol (spec.md §4.6): filename
// validation, whole-file hashing, the upload state machine, and the
// per-worker-stream chunk loop.
package upload

import (
	"errors"
	"regexp"
)

// FilenamePattern is the grammar a local filename must match before an
// upload may be initiated. spec.md §9 resolves an ambiguity in the
// original source between two near-identical regexes in favor of this
// one: the intended character set is letters, digits, underscore, dot,
// hyphen and at-sign.
var FilenamePattern = regexp.MustCompile(`^[A-Za-z0-9_.@-]+$`)

// ErrInvalidFilename is returned when a local file's base name fails
// FilenamePattern.
var ErrInvalidFilename = errors.New("upload: file name does not match [A-Za-z0-9_.@-]+")

// ValidateFilename checks name against FilenamePattern.
func ValidateFilename(name string) error {
	if !FilenamePattern.MatchString(name) {
		return ErrInvalidFilename
	}
	return nil
}
