package storage

import (
	"errors"
	"io"
)

var ErrInvalidPath = errors.New("invalid path")

type FileInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

// Storage holds uploaded candidate blobs for playback. Callers own cleanup:
// a blob lives until DeleteFile is called for it.
type Storage interface {
	SaveFile(file io.Reader, info FileInfo) (string, error)
	OpenFile(path string) (io.ReadSeekCloser, error)
	DeleteFile(path string) error
}
