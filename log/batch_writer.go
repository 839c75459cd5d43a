package log

import (
	"io"
	"sync"
	"time"
)

// batchWriter buffers log lines in memory and writes them to the underlying
// writer when the buffer fills up, on a timer, or on Close.
type batchWriter struct {
	mu       sync.Mutex
	w        io.Writer
	buf      []byte
	limit    int
	stopCh   chan struct{}
	wg       sync.WaitGroup
	closed   bool
	flushErr error
}

func newBatchWriter(w io.Writer, limit int, interval time.Duration) *batchWriter {
	if limit <= 0 {
		limit = 32 << 10
	}
	bw := &batchWriter{
		w:      w,
		buf:    make([]byte, 0, limit),
		limit:  limit,
		stopCh: make(chan struct{}),
	}
	if interval > 0 {
		bw.wg.Add(1)
		go bw.loop(interval)
	}
	return bw
}

// Write implements io.Writer. Writes larger than the buffer bypass it.
func (bw *batchWriter) Write(p []byte) (int, error) {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return 0, io.ErrClosedPipe
	}
	if len(bw.buf)+len(p) > bw.limit {
		if err := bw.flushLocked(); err != nil {
			return 0, err
		}
	}
	if len(p) > bw.limit {
		return bw.w.Write(p)
	}
	bw.buf = append(bw.buf, p...)
	return len(p), nil
}

func (bw *batchWriter) flushLocked() error {
	if len(bw.buf) == 0 {
		return nil
	}
	_, err := bw.w.Write(bw.buf)
	bw.buf = bw.buf[:0]
	if err != nil {
		bw.flushErr = err
	}
	return err
}

// Flush writes buffered data.
func (bw *batchWriter) Flush() error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.flushLocked()
}

func (bw *batchWriter) loop(interval time.Duration) {
	defer bw.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-bw.stopCh:
			return
		case <-ticker.C:
			_ = bw.Flush()
		}
	}
}

// Close flushes pending data and closes the underlying writer if it is an
// io.Closer.
func (bw *batchWriter) Close() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return nil
	}
	bw.closed = true
	bw.mu.Unlock()

	close(bw.stopCh)
	bw.wg.Wait()

	bw.mu.Lock()
	err := bw.flushLocked()
	bw.mu.Unlock()
	if c, ok := bw.w.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
