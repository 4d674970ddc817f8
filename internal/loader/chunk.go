package loader

import (
	"os"

	"github.com/pkg/errors"
)

// chunk is a newline-aligned byte range [Start, End) of the source file.
type chunk struct {
	Start int64
	End   int64
}

const boundaryScanBlock = 4096

// chunkRanges splits [dataStart, size) into ranges of roughly chunkSize
// bytes whose end boundaries always fall just after a newline. From the
// candidate end the walk goes backward to the nearest preceding newline;
// if that collapses the range to empty it goes forward to the next newline
// instead. The final range ends at the file size.
func chunkRanges(f *os.File, dataStart, size, chunkSize int64) ([]chunk, error) {
	chunks := []chunk{}
	start := dataStart
	for start < size {
		end := start + chunkSize
		if end >= size {
			chunks = append(chunks, chunk{start, size})
			break
		}

		aligned, err := prevNewline(f, start, end)
		if err != nil {
			return nil, err
		}
		if aligned == start {
			aligned, err = nextNewline(f, end, size)
			if err != nil {
				return nil, err
			}
		}
		chunks = append(chunks, chunk{start, aligned})
		start = aligned
	}
	return chunks, nil
}

// prevNewline walks backward from pos to the first position p in
// (floor, pos] where the byte at p-1 is a newline. Returns floor when no
// newline exists in the range.
func prevNewline(f *os.File, floor, pos int64) (int64, error) {
	buf := make([]byte, boundaryScanBlock)
	for pos > floor {
		lo := pos - int64(len(buf))
		if lo < floor {
			lo = floor
		}
		n, err := f.ReadAt(buf[:pos-lo], lo)
		if err != nil {
			return 0, errors.Wrap(err, "scanning for chunk boundary")
		}
		for i := n - 1; i >= 0; i-- {
			if buf[i] == '\n' {
				return lo + int64(i) + 1, nil
			}
		}
		pos = lo
	}
	return floor, nil
}

// nextNewline walks forward from pos to the position just after the next
// newline, or to size when the file ends first.
func nextNewline(f *os.File, pos, size int64) (int64, error) {
	buf := make([]byte, boundaryScanBlock)
	for pos < size {
		hi := pos + int64(len(buf))
		if hi > size {
			hi = size
		}
		n, err := f.ReadAt(buf[:hi-pos], pos)
		if err != nil {
			return 0, errors.Wrap(err, "scanning for chunk boundary")
		}
		for i := 0; i < n; i++ {
			if buf[i] == '\n' {
				return pos + int64(i) + 1, nil
			}
		}
		pos = hi
	}
	return size, nil
}
