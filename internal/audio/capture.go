package audio

import "context"

// Capture records from d until its stream ends and returns the data URI
// payload. A cancelled ctx discards the capture.
func Capture(ctx context.Context, d Device, opts ...Option) (string, error) {
	r := NewRecorder(d, opts...)
	if err := r.Start(ctx); err != nil {
		return "", err
	}
	select {
	case <-r.Captured():
	case <-ctx.Done():
		r.Reset()
		return "", ctx.Err()
	}
	if err := r.Stop(); err != nil {
		return "", err
	}
	if err := r.Err(); err != nil {
		return "", err
	}
	return r.Payload(), nil
}
