package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/roach88/limitidx/internal/order"
)

// maxLineSize bounds a single JSONL record.
const maxLineSize = 1 << 20

// JSONL reads one JSON event per line. Blank lines and lines starting with
// '#' are skipped. A line that does not decode becomes a Delivery with Err
// set; reading continues with the next line.
type JSONL struct {
	name    string
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

var _ Source = (*JSONL)(nil)

// NewJSONL reads events from r. name labels origins ("<name>:<line>").
func NewJSONL(name string, r io.Reader) *JSONL {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	j := &JSONL{name: name, scanner: sc}
	if c, ok := r.(io.Closer); ok {
		j.closer = c
	}
	return j
}

// OpenJSONL opens path for reading. "-" reads standard input.
func OpenJSONL(path string) (*JSONL, error) {
	if path == "-" {
		return NewJSONL("stdin", io.NopCloser(os.Stdin)), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event file: %w", err)
	}
	return NewJSONL(path, f), nil
}

// Next returns the next non-blank line as a delivery, or io.EOF.
func (j *JSONL) Next(ctx context.Context) (Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Delivery{}, err
		}
		if !j.scanner.Scan() {
			if err := j.scanner.Err(); err != nil {
				return Delivery{}, fmt.Errorf("read %s line %d: %w", j.name, j.line+1, err)
			}
			return Delivery{}, io.EOF
		}
		j.line++

		text := strings.TrimSpace(j.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		origin := fmt.Sprintf("%s:%d", j.name, j.line)
		ev, err := order.DecodeEvent([]byte(text))
		ev.Origin = origin
		return NewDelivery(ev, err, nil), nil
	}
}

// Close closes the underlying reader if it is closable.
func (j *JSONL) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}
