package sync

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	goSync "sync"

	"github.com/spf13/afero"

	"github.com/sidkik/foldersync/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// ChunkSize is the number of bytes read from a file at a time when hashing
// or copying it.
const ChunkSize = 1000000

var bufferPool = goSync.Pool{
	New: func() interface{} {
		b := make([]byte, ChunkSize)
		return &b
	},
}

// HashFile returns the lowercase hex encoded MD5 digest of the file at the
// given path. The file is streamed in chunks, so it may be larger than the
// available memory.
func HashFile(path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", errors.WithContext(err, "open")
	}
	defer f.Close()

	buf := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(buf)

	hasher := md5.New()
	for {
		n, err := f.Read(*buf)
		if n > 0 {
			hasher.Write((*buf)[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.WithContext(err, "read")
		}
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
