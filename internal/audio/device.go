package audio

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// DefaultMIMEType is the container produced by browser recorders.
const DefaultMIMEType = "audio/webm"

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNoDevice         = errors.New("no capture device")
)

// Device hands out exclusive capture streams.
type Device interface {
	Acquire(ctx context.Context) (Stream, error)
}

// Stream is a live capture. Chunks is closed when the stream ends; Err is
// meaningful only after that. Release may be called any number of times.
type Stream interface {
	Chunks() <-chan []byte
	Err() error
	MIMEType() string
	Release()
}

// ReaderDevice captures from an io.Reader such as a request body or a file.
type ReaderDevice struct {
	r         io.Reader
	chunkSize int
	mime      string
}

func NewReaderDevice(r io.Reader, chunkSize int, mime string) *ReaderDevice {
	if chunkSize <= 0 {
		chunkSize = 32 << 10
	}
	if mime == "" {
		mime = DefaultMIMEType
	}
	return &ReaderDevice{r: r, chunkSize: chunkSize, mime: mime}
}

func (d *ReaderDevice) Acquire(ctx context.Context) (Stream, error) {
	if d.r == nil {
		return nil, ErrNoDevice
	}
	s := &readerStream{
		chunks:  make(chan []byte, 16),
		release: make(chan struct{}),
		mime:    d.mime,
	}
	go s.pump(ctx, d.r, d.chunkSize)
	return s, nil
}

type readerStream struct {
	chunks  chan []byte
	release chan struct{}
	once    sync.Once
	mime    string

	mu  sync.Mutex
	err error
}

func (s *readerStream) pump(ctx context.Context, r io.Reader, size int) {
	defer close(s.chunks)
	for {
		select {
		case <-s.release:
			return
		default:
		}
		buf := make([]byte, size)
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case s.chunks <- buf[:n]:
			case <-s.release:
				s.flush(buf[:n])
				return
			case <-ctx.Done():
				s.setErr(ctx.Err())
				return
			}
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			s.setErr(err)
			return
		}
	}
}

// flush hands over the chunk read before Release; the recorder drains for
// flushGrace after releasing.
func (s *readerStream) flush(chunk []byte) {
	timer := time.NewTimer(flushGrace)
	defer timer.Stop()
	select {
	case s.chunks <- chunk:
	case <-timer.C:
	}
}

func (s *readerStream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *readerStream) Chunks() <-chan []byte { return s.chunks }
func (s *readerStream) MIMEType() string      { return s.mime }

func (s *readerStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *readerStream) Release() { s.once.Do(func() { close(s.release) }) }
