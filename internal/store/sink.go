package store

import (
	"context"
	"sync"

	"github.com/xkilldash9x/wayfarer/api/schemas"
	"go.uber.org/zap"
)

// FrameSink buffers recorded frames and copies them to the database every
// flushEvery frames.
type FrameSink struct {
	store      *Store
	flushEvery int

	mu     sync.Mutex
	buf    []schemas.FrameRecord
	copied int64
}

// NewFrameSink returns a sink writing through s.
func NewFrameSink(s *Store, flushEvery int) *FrameSink {
	if flushEvery <= 0 {
		flushEvery = 1
	}
	return &FrameSink{store: s, flushEvery: flushEvery}
}

// ObserveFrame buffers frame and flushes when the buffer is full.
func (f *FrameSink) ObserveFrame(ctx context.Context, frame schemas.FrameRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buf = append(f.buf, frame)
	if len(f.buf) < f.flushEvery {
		return nil
	}
	return f.flushLocked(ctx)
}

// Flush writes whatever is buffered.
func (f *FrameSink) Flush(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushLocked(ctx)
}

// Copied is the total number of agent rows written.
func (f *FrameSink) Copied() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.copied
}

func (f *FrameSink) flushLocked(ctx context.Context) error {
	if len(f.buf) == 0 {
		return nil
	}
	n, err := f.store.SaveFrames(ctx, f.buf)
	if err != nil {
		return err
	}
	f.store.log.Debug("Flushed agent frames.",
		zap.Int("frames", len(f.buf)),
		zap.Int64("rows", n))
	f.copied += n
	f.buf = f.buf[:0]
	return nil
}
