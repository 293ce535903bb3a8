package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/d60-Lab/friendlyvoice/internal/audio"
	"github.com/d60-Lab/friendlyvoice/internal/media"
	"github.com/d60-Lab/friendlyvoice/pkg/logger"
)

var recordMIME string

var recordCmd = &cobra.Command{
	Use:   "record [file]",
	Short: "Capture an audio clip and store it in the media backend",
	Long: `Capture an audio clip from a file, or from stdin when no file or "-" is
given, and store it with the configured media driver. The resulting playback
URL is printed. With the inline driver that URL is a data URI.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		var src io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(filepath.Clean(args[0]))
			if err != nil {
				return fmt.Errorf("open recording: %w", err)
			}
			defer f.Close()
			src = f
		}

		mime := recordMIME
		if mime == "" {
			mime = cfg.Media.MIMEType
		}
		ctx := cmd.Context()
		payload, err := audio.Capture(ctx, audio.NewReaderDevice(src, cfg.Media.ChunkSize, mime),
			audio.WithMaxBytes(cfg.Media.MaxPayloadBytes))
		if err != nil {
			return fmt.Errorf("capture: %w", err)
		}

		store, err := media.New(ctx, cfg.Media)
		if err != nil {
			return err
		}
		mediaURL, err := media.SavePayload(ctx, store, payload)
		if err != nil {
			return fmt.Errorf("store recording: %w", err)
		}
		logger.Info("recording stored", zap.String("driver", cfg.Media.Driver), zap.String("mime", mime))
		fmt.Fprintln(cmd.OutOrStdout(), mediaURL)
		return nil
	},
}

func init() {
	recordCmd.Flags().StringVar(&recordMIME, "mime", "", "MIME type of the clip (defaults to media.mime_type)")
	rootCmd.AddCommand(recordCmd)
}
