package logging

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"time"
)

// lineWriter prefixes every complete line with a sequence number and a
// timestamp. Partial lines are held until their newline arrives or Close.
type lineWriter struct {
	mu     sync.Mutex
	target io.Writer
	seq    uint64
	buf    bytes.Buffer
	now    func() time.Time
}

func newLineWriter(target io.Writer) *lineWriter {
	return &lineWriter{target: target, now: time.Now}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := w.buf.Next(i + 1)
		if err := w.writeLine(bytes.TrimRight(line, "\r\n")); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Close flushes a trailing partial line.
func (w *lineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() == 0 {
		return nil
	}
	line := bytes.Clone(w.buf.Bytes())
	w.buf.Reset()
	return w.writeLine(line)
}

func (w *lineWriter) writeLine(line []byte) error {
	w.seq++
	prefix := slog.Uint64("line", w.seq).String() + " " +
		slog.String("time", w.now().Format(time.RFC3339)).String() + " "

	var out bytes.Buffer
	out.Grow(len(prefix) + len(line) + 1)
	out.WriteString(prefix)
	out.Write(line)
	out.WriteByte('\n')

	_, err := w.target.Write(out.Bytes())
	return err
}
