package uploadserver

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/canmi21/anchr/internal/finalize"
)

// Outcome is the Init-handler's decision for a requested upload, echoed to
// the client as a 1-byte ack payload (1=New, 2=Resumable).
type Outcome uint8

const (
	OutcomeNew       Outcome = 1
	OutcomeResumable Outcome = 2
)

// ErrAlreadyExists indicates the final file already exists on disk; a
// completed upload is not resumable/overwritable even with a matching
// hash (spec.md §9, "Final-file-exists collision" is deliberate).
var ErrAlreadyExists = errors.New("uploadserver: file already exists")

// Prepare implements the preparation decision table from spec.md §4.7,
// evaluated in order under finalPath (the resolved target directory
// joined with the requested file name).
func Prepare(finalPath string, fileHash string) (Outcome, error) {
	if info, err := os.Stat(finalPath); err == nil && info.Mode().IsRegular() {
		return 0, ErrAlreadyExists
	} else if err != nil && !os.IsNotExist(err) {
		return 0, err
	}

	lockPath := finalize.LockFile(finalPath)
	if _, err := os.Stat(lockPath); err == nil {
		storedHash, err := os.ReadFile(finalize.HashFile(finalPath))
		if err == nil && string(storedHash) == fileHash {
			return OutcomeResumable, nil
		}
		// Stale lock from a different file content: discard and start fresh.
		if err := discardStaging(finalPath); err != nil {
			return 0, err
		}
	} else if err != nil && !os.IsNotExist(err) {
		return 0, err
	}

	return create(finalPath, fileHash)
}

func discardStaging(finalPath string) error {
	if err := os.Remove(finalize.LockFile(finalPath)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(finalize.HashFile(finalPath)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.RemoveAll(finalize.TmpDir(finalPath))
}

func create(finalPath, fileHash string) (Outcome, error) {
	if dir := filepath.Dir(finalPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}
	}
	f, err := os.Create(finalize.LockFile(finalPath))
	if err != nil {
		return 0, err
	}
	_ = f.Close()
	if err := os.WriteFile(finalize.HashFile(finalPath), []byte(fileHash), 0o644); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(finalize.TmpDir(finalPath), 0o755); err != nil {
		return 0, err
	}
	return OutcomeNew, nil
}
