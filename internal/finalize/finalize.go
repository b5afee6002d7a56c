// Package finalize assembles a completed upload's chunks into the final
// file, verifies the whole-file hash, and cleans up staging markers,
// per spec.md §4.8. Finalize is a plain blocking call: the server
// dispatcher runs it inline on the control-stream loop, so no further
// control frames are read until it returns; there is no separate pool.
package finalize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ChunkSize is the fixed chunk size used throughout the upload subsystem.
const ChunkSize = 512 * 1024

var (
	ErrMissingChunk = errors.New("finalize: a chunk file is missing")
	ErrHashMismatch = errors.New("finalize: assembled file hash does not match metadata")
)

// Metadata is the minimal information the Finalizer needs about an
// upload: its final resolved path (directory + file name) and expected
// size/hash.
type Metadata struct {
	FinalPath string // resolved directory + file name, the final on-disk path
	FileSize  int64
	FileHash  string // lowercase hex sha256
}

func totalChunks(fileSize int64) int64 {
	if fileSize == 0 {
		return 1
	}
	return (fileSize + ChunkSize - 1) / ChunkSize
}

// TotalChunks returns ceil(fileSize / ChunkSize), with a minimum of 1 for
// an empty file, the chunk count used throughout the upload subsystem.
func TotalChunks(fileSize int64) int64 { return totalChunks(fileSize) }

// TmpDir, LockFile, HashFile and ChunkPath name the staging layout under a
// resolved final path, per spec.md §3's Chunk-layout-on-server data model.
// They are shared between the Finalizer and the UploadServer, which both
// need to agree on exactly where chunks and markers live on disk.
func TmpDir(finalPath string) string  { return tmpDir(finalPath) }
func LockFile(finalPath string) string { return lockFile(finalPath) }
func HashFile(finalPath string) string { return hashFile(finalPath) }
func ChunkPath(finalPath string, i int64) string { return chunkPath(finalPath, i) }

func tmpDir(finalPath string) string  { return finalPath + ".tmp" }
func lockFile(finalPath string) string { return finalPath + ".lock" }
func hashFile(finalPath string) string { return finalPath + ".hash" }
func chunkPath(finalPath string, i int64) string {
	return filepath.Join(tmpDir(finalPath), fmt.Sprintf("chunk_%d", i))
}

// Finalize assembles all chunks of md in ascending order into the final
// file, verifies the whole-file SHA-256, and — only on success — removes
// the .lock/.hash/.tmp staging markers. On any failure the assembled file
// is removed and the staging markers are left in place so a retried
// finalize (or a fresh resumed upload) can still find the stored chunks.
func Finalize(md Metadata) error {
	n := totalChunks(md.FileSize)

	for i := int64(0); i < n; i++ {
		if _, err := os.Stat(chunkPath(md.FinalPath, i)); err != nil {
			return fmt.Errorf("%w: chunk %d: %s", ErrMissingChunk, i, md.FinalPath)
		}
	}

	if err := assemble(md.FinalPath, n); err != nil {
		_ = os.Remove(md.FinalPath)
		return fmt.Errorf("finalize: assemble: %w", err)
	}

	sum, err := hashFileContents(md.FinalPath)
	if err != nil {
		_ = os.Remove(md.FinalPath)
		return fmt.Errorf("finalize: hash: %w", err)
	}
	if sum != md.FileHash {
		_ = os.Remove(md.FinalPath)
		return fmt.Errorf("%w: got %s want %s", ErrHashMismatch, sum, md.FileHash)
	}

	return cleanup(md.FinalPath)
}

func assemble(finalPath string, n int64) error {
	out, err := os.Create(finalPath)
	if err != nil {
		return err
	}
	defer out.Close()

	for i := int64(0); i < n; i++ {
		if err := appendChunk(out, chunkPath(finalPath, i)); err != nil {
			return err
		}
	}
	return out.Sync()
}

func appendChunk(out *os.File, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = io.Copy(out, in)
	return err
}

func hashFileContents(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, 8192)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func cleanup(finalPath string) error {
	if err := os.Remove(lockFile(finalPath)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(hashFile(finalPath)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.RemoveAll(tmpDir(finalPath)); err != nil {
		return err
	}
	return nil
}
