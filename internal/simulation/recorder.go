package simulation

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/xkilldash9x/wayfarer/api/schemas"
)

// CompressedSuffix marks recordings written through brotli.
const CompressedSuffix = ".br"

// maxLineBytes bounds one recorded frame when reading back.
const maxLineBytes = 16 << 20

// Recorder writes frames as JSON lines. Plain recordings are flushed after
// every frame so they can be followed while the run is in progress.
type Recorder struct {
	mu      sync.Mutex
	buf     *bufio.Writer
	enc     *json.Encoder
	closers []io.Closer
	every   int
	flush   bool
	written int
}

// NewRecorder creates the recording file at path, compressing it when the
// path ends in ".br". every keeps one frame out of N.
func NewRecorder(path string, every int) (*Recorder, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("simulation: expanding recording path: %w", err)
	}
	f, err := os.Create(expanded)
	if err != nil {
		return nil, fmt.Errorf("simulation: creating recording: %w", err)
	}
	if strings.HasSuffix(expanded, CompressedSuffix) {
		bw := brotli.NewWriter(f)
		r := newRecorder(bw, every, false)
		r.closers = []io.Closer{bw, f}
		return r, nil
	}
	r := newRecorder(f, every, true)
	r.closers = []io.Closer{f}
	return r, nil
}

// NewStreamRecorder records to w without taking ownership of it.
func NewStreamRecorder(w io.Writer, every int) *Recorder {
	return newRecorder(w, every, true)
}

func newRecorder(w io.Writer, every int, flush bool) *Recorder {
	if every <= 0 {
		every = 1
	}
	buf := bufio.NewWriter(w)
	return &Recorder{
		buf:   buf,
		enc:   json.ConfigCompatibleWithStandardLibrary.NewEncoder(buf),
		every: every,
		flush: flush,
	}
}

// ObserveFrame implements FrameObserver.
func (r *Recorder) ObserveFrame(_ context.Context, frame schemas.FrameRecord) error {
	if frame.Frame%r.every != 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(frame); err != nil {
		return fmt.Errorf("simulation: encoding frame %d: %w", frame.Frame, err)
	}
	r.written++
	if r.flush {
		return r.buf.Flush()
	}
	return nil
}

// Written is the number of frames recorded so far.
func (r *Recorder) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Close flushes buffered frames and closes whatever the recorder opened.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.buf.Flush()
	for _, c := range r.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	r.closers = nil
	return err
}

// RecordingReader reads frames back from a recording.
type RecordingReader struct {
	scanner *bufio.Scanner
	closer  io.Closer
}

// OpenRecording opens a recording written by Recorder.
func OpenRecording(path string) (*RecordingReader, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("simulation: expanding recording path: %w", err)
	}
	f, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("simulation: opening recording: %w", err)
	}
	var src io.Reader = f
	if strings.HasSuffix(expanded, CompressedSuffix) {
		src = brotli.NewReader(f)
	}
	rr := NewRecordingReader(src)
	rr.closer = f
	return rr, nil
}

// NewRecordingReader reads frames from r.
func NewRecordingReader(r io.Reader) *RecordingReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &RecordingReader{scanner: sc}
}

// Next returns the next frame or io.EOF.
func (rr *RecordingReader) Next() (schemas.FrameRecord, error) {
	for rr.scanner.Scan() {
		line := rr.scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		return DecodeFrame(line)
	}
	if err := rr.scanner.Err(); err != nil {
		return schemas.FrameRecord{}, fmt.Errorf("simulation: reading recording: %w", err)
	}
	return schemas.FrameRecord{}, io.EOF
}

// Close releases the underlying file, if any.
func (rr *RecordingReader) Close() error {
	if rr.closer == nil {
		return nil
	}
	return rr.closer.Close()
}

// DecodeFrame decodes one recorded line.
func DecodeFrame(line []byte) (schemas.FrameRecord, error) {
	var rec schemas.FrameRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return rec, fmt.Errorf("simulation: decoding frame: %w", err)
	}
	return rec, nil
}
