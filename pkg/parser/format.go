package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
)

// ErrUnsupportedFormat is returned for input that is neither text nor gzip
var ErrUnsupportedFormat = errors.New("unsupported input format")

const sniffLen = 3072

// OpenTable sniffs the input and transparently decompresses gzip streams.
// Plain text passes through unchanged.
func OpenTable(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if len(head) == 0 {
		return br, nil
	}

	mtype := mimetype.Detect(head)
	switch {
	case mtype.Is("application/gzip"):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		return zr, nil
	case isText(mtype):
		return br, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mtype.String())
	}
}

func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
