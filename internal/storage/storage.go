package storage

import (
	"io"
)

type FileInfo struct {
	Name string
	Size int64
}

// Storage gives read access to the files of a dataset directory.
type Storage interface {
	OpenFile(path string) (io.ReadSeekCloser, error)
	ListFiles(ext string) ([]FileInfo, error)
}
