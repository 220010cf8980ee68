package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// writeOp is a single unit of work for the writer goroutine. A nil data
// slice with a non-nil ack is a flush request.
type writeOp struct {
	data []byte
	ack  chan error
}

// asyncWriter decouples log emission from sink latency. Records are
// handed to a single goroutine that fans them out to every sink.
type asyncWriter struct {
	ops       chan writeOp
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	out  []*bufio.Writer
	fail error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	out := make([]*bufio.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			out = append(out, bufio.NewWriterSize(w, bufSize))
		}
	}
	aw := &asyncWriter{
		ops:  make(chan writeOp, 256),
		done: make(chan struct{}),
		out:  out,
	}
	go aw.run()
	return aw
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for op := range w.ops {
		if op.data == nil {
			op.ack <- w.flushSinks()
			continue
		}
		if err := w.emit(op.data); err != nil {
			w.recordErr(err)
		}
	}
	w.flushSinks()
}

// Write copies p and queues it. The call blocks only when the queue is full.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.firstErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	data := make([]byte, len(p))
	copy(data, p)
	w.ops <- writeOp{data: data}
	return nil
}

// Flush blocks until everything queued so far has reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.firstErr(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	w.ops <- writeOp{ack: ack}
	return <-ack
}

// Close drains the queue, flushes the sinks and returns the first write error.
func (w *asyncWriter) Close() error {
	w.closeOnce.Do(func() {
		close(w.ops)
	})
	<-w.done
	return w.firstErr()
}

func (w *asyncWriter) emit(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, sink := range w.out {
		if _, err := sink.Write(p); err != nil {
			return err
		}
		if err := sink.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushSinks() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, sink := range w.out {
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) firstErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fail
}

func (w *asyncWriter) recordErr(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail == nil {
		w.fail = err
	}
}
