package dispatch

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/canmi21/anchr/internal/upload"
	"github.com/canmi21/anchr/internal/wsm"
)

func statFile(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, errors.New("dispatch: not a regular file: " + path)
	}
	return info.Size(), nil
}

// InitiateUpload implements spec.md §4.6's Init step: validate the
// filename, hash the file, allocate a message id, send the upload-init
// frame, and record the new upload context as this connection's single
// active upload.
func (c *ClientSession) InitiateUpload(targetDir, localPath string) (*upload.Client, error) {
	fileName := filepath.Base(localPath)
	if err := upload.ValidateFilename(fileName); err != nil {
		return nil, err
	}

	info, err := statFile(localPath)
	if err != nil {
		return nil, err
	}

	fileHash, err := upload.HashFile(localPath)
	if err != nil {
		return nil, err
	}

	md := upload.Metadata{TargetDir: targetDir, FileName: fileName, FileSize: info, FileHash: fileHash}

	id, ok := c.ids.Allocate()
	if !ok {
		return nil, errors.New("dispatch: id pool exhausted")
	}

	u := upload.NewClient(md, localPath, id)
	if err := c.SetActiveUpload(u, id); err != nil {
		c.ids.Release(id)
		return nil, err
	}

	body, err := json.Marshal(md)
	if err != nil {
		c.ids.Release(id)
		_ = c.SetActiveUpload(nil, 0)
		return nil, err
	}
	if err := c.writeFrame(wsm.New(wsm.OpUploadInit, id, wsm.PayloadJSON, 0, uint32(len(body))), body); err != nil {
		c.ids.Release(id)
		_ = c.SetActiveUpload(nil, 0)
		return nil, err
	}
	return u, nil
}
