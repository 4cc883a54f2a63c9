package pretrain

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"

	"github.com/goccy/go-json"

	"github.com/kbukum/fwaudio/errors"
	"github.com/kbukum/fwaudio/provider"
)

var _ provider.Sink[Data] = (*Writer)(nil)

// Stdout is the output path that selects standard output.
const Stdout = "-"

// Writer writes Data records as JSON lines.
type Writer struct {
	mu      sync.Mutex
	name    string
	buf     *bufio.Writer
	enc     *json.Encoder
	closer  io.Closer
	written int
}

// NewWriter returns a Writer over w. If w is an io.Closer it is closed by Close.
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	wr := &Writer{name: "jsonl", buf: buf, enc: enc}
	if c, ok := w.(io.Closer); ok {
		wr.closer = c
	}
	return wr
}

// Create opens path for writing, truncating it. Stdout ("-") writes to
// standard output, which Close leaves open.
func Create(path string) (*Writer, error) {
	if path == "" || path == Stdout {
		w := NewWriter(os.Stdout)
		w.closer = nil
		w.name = "jsonl:stdout"
		return w, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.InvalidInput("output", "cannot create output file").WithCause(err)
	}
	w := NewWriter(f)
	w.name = "jsonl:" + path
	return w, nil
}

// Name identifies the sink.
func (w *Writer) Name() string { return w.name }

// IsAvailable always reports true.
func (w *Writer) IsAvailable(context.Context) bool { return true }

// Send encodes one record as a line.
func (w *Writer) Send(ctx context.Context, d Data) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(d); err != nil {
		return errors.Internal(err).WithDetail("sink", w.name)
	}
	w.written++
	return nil
}

// Written returns the number of records sent.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Flush writes buffered records to the underlying writer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Flush()
}

// Close flushes and closes the underlying writer when it owns one.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
