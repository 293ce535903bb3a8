// Package media stores recorded audio and checks remote image origins.
package media

import (
	"context"
	"fmt"
	"strings"

	"github.com/d60-Lab/friendlyvoice/config"
	"github.com/d60-Lab/friendlyvoice/internal/apperr"
	"github.com/d60-Lab/friendlyvoice/internal/audio"
)

// Store persists an audio payload and returns the URL clients play it from.
type Store interface {
	Save(ctx context.Context, data []byte, mimeType string) (string, error)
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.MediaConfig) (Store, error) {
	switch cfg.Driver {
	case "", "inline":
		return InlineStore{}, nil
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported media driver %q", cfg.Driver)
	}
}

// SavePayload stores a recorder payload. Plain URLs are passed through.
func SavePayload(ctx context.Context, s Store, payload string) (string, error) {
	if !strings.HasPrefix(payload, "data:") {
		if payload == "" {
			return "", fmt.Errorf("empty audio payload: %w", apperr.ErrInvalidInput)
		}
		return payload, nil
	}
	mimeType, data, err := audio.DecodeDataURI(payload)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, apperr.ErrInvalidInput)
	}
	return s.Save(ctx, data, mimeType)
}

// InlineStore keeps the audio inside the document as a data URI.
type InlineStore struct{}

func (InlineStore) Save(_ context.Context, data []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = audio.DefaultMIMEType
	}
	return audio.EncodeDataURI(mimeType, data), nil
}

func extension(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	switch strings.TrimSpace(base) {
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	case "audio/mp4":
		return ".m4a"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	default:
		return ".bin"
	}
}
