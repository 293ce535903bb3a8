// Package audio implements the capture state machine used to record voces
// and voice messages.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/d60-Lab/friendlyvoice/internal/apperr"
)

// State of a Recorder.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopped
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrPayloadTooLarge is reported when a finished capture exceeds the limit.
	ErrPayloadTooLarge = errors.New("recording exceeds the size limit")
	// ErrStartAborted is returned by a Start whose acquisition was overtaken by Reset.
	ErrStartAborted = errors.New("capture start aborted by reset")
)

// flushGrace bounds how long a stopped capture waits for its stream to
// deliver the chunk in flight and close.
const flushGrace = 250 * time.Millisecond

// Snapshot is a consistent view of a Recorder.
type Snapshot struct {
	State   State
	Payload string
	Err     error
}

// Recorder drives one capture at a time: Idle -> Recording -> Stopped,
// Recording -> Error on device failure, and back to Idle on Reset.
type Recorder struct {
	device   Device
	maxBytes int

	mu      sync.Mutex
	state   State
	payload string
	err     error
	cur     *capture

	// acquiring is set while Start waits on the device; Reset bumps epoch so
	// the pending Start releases what it acquired instead of committing it.
	acquiring bool
	epoch     uint64
}

type capture struct {
	stream Stream
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
	chunks [][]byte // owned by the collector until done is closed
}

func (c *capture) halt() { c.once.Do(func() { close(c.stop) }) }

type Option func(*Recorder)

// WithMaxBytes caps the decoded payload size; zero means no cap.
func WithMaxBytes(n int) Option { return func(r *Recorder) { r.maxBytes = n } }

func NewRecorder(d Device, opts ...Option) *Recorder {
	r := &Recorder{device: d}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Start begins a capture. It is a no-op while already recording or while
// another Start is still acquiring the device. The device is acquired
// without holding the lock, so State and Reset stay responsive.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateRecording || r.acquiring {
		r.mu.Unlock()
		return nil
	}
	r.payload = ""
	r.err = nil
	r.acquiring = true
	epoch := r.epoch
	r.mu.Unlock()

	stream, err := r.device.Acquire(ctx)

	r.mu.Lock()
	if r.epoch != epoch {
		r.mu.Unlock()
		if stream != nil {
			stream.Release()
		}
		return ErrStartAborted
	}
	defer r.mu.Unlock()
	r.acquiring = false

	if err != nil {
		r.state = StateError
		r.err = &apperr.DeviceError{Cause: causeOf(err), Err: err}
		return r.err
	}

	c := &capture{stream: stream, stop: make(chan struct{}), done: make(chan struct{})}
	r.cur = c
	r.state = StateRecording
	go r.collect(c)
	return nil
}

func causeOf(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "microphone permission denied"
	case errors.Is(err, ErrNoDevice):
		return "no microphone available"
	default:
		return "could not access the microphone"
	}
}

func (r *Recorder) collect(c *capture) {
	defer close(c.done)
	ch := c.stream.Chunks()
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				r.ended(c)
				return
			}
			c.chunks = append(c.chunks, chunk)
		case <-c.stop:
			c.flush(ch)
			return
		}
	}
}

// flush releases the stream and keeps the chunks it still delivers until the
// channel closes or flushGrace runs out.
func (c *capture) flush(ch <-chan []byte) {
	c.stream.Release()
	timer := time.NewTimer(flushGrace)
	defer timer.Stop()
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return
			}
			c.chunks = append(c.chunks, chunk)
		case <-timer.C:
			return
		}
	}
}

// ended handles a stream that closed on its own. A clean end leaves the
// recorder in Recording until Stop; a failed one moves it to Error.
func (r *Recorder) ended(c *capture) {
	err := c.stream.Err()
	if err == nil {
		return
	}
	r.mu.Lock()
	if r.cur == c {
		r.cur = nil
		r.state = StateError
		r.err = &apperr.DeviceError{Cause: "capture interrupted", Err: err}
	}
	r.mu.Unlock()
	c.stream.Release()
}

// Stop ends the capture and finalizes the payload. Outside Recording it is
// a no-op. The stream is always released.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.state != StateRecording || r.cur == nil {
		r.mu.Unlock()
		return nil
	}
	c := r.cur
	r.cur = nil
	r.mu.Unlock()

	defer c.stream.Release()
	c.halt()
	<-c.done

	data := bytes.Join(c.chunks, nil)
	mime := c.stream.MIMEType()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording || r.cur != nil {
		// reset or restarted meanwhile
		return nil
	}
	if r.maxBytes > 0 && len(data) > r.maxBytes {
		r.state = StateError
		r.err = &apperr.DeviceError{Cause: "recording too large", Err: ErrPayloadTooLarge}
		return r.err
	}
	r.payload = EncodeDataURI(mime, data)
	r.state = StateStopped
	return nil
}

// Reset releases any held stream and returns to Idle.
func (r *Recorder) Reset() {
	r.mu.Lock()
	c := r.cur
	r.cur = nil
	r.state = StateIdle
	r.payload = ""
	r.err = nil
	r.acquiring = false
	r.epoch++
	r.mu.Unlock()

	if c != nil {
		c.halt()
		c.stream.Release()
	}
}

// Captured is closed when the current stream has ended or been stopped.
func (r *Recorder) Captured() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return r.cur.done
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Recorder) Payload() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payload
}

func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{State: r.state, Payload: r.payload, Err: r.err}
}
