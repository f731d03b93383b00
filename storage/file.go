package storage

import (
	"bufio"
	"fmt"
	"os"

	"github.com/TFMV/bqdecode/decode"
	"github.com/TFMV/bqdecode/wire"
)

const readBufferSize = 100 * 1024

// LoadFile parses the JSON document stored at path.
func LoadFile(path string) (wire.Node, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	doc, err := wire.Decode(bufio.NewReaderSize(file, readBufferSize))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", path, err)
	}
	return doc, nil
}

// FileSource is a page stored in a local file. It is read when the decoder
// reaches it, not before.
func FileSource(path string) decode.Source {
	return decode.SourceFunc{
		ID: path,
		Fn: func() (wire.Node, error) { return LoadFile(path) },
	}
}

// FileSources turns an ordered list of paths into page sources.
func FileSources(paths ...string) []decode.Source {
	sources := make([]decode.Source, len(paths))
	for i, p := range paths {
		sources[i] = FileSource(p)
	}
	return sources
}
