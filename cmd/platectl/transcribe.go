package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"plate-order-backend/internal/transcription"
)

var transcribeMime string

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file>",
	Short: "Transcribe an audio file with the configured transcriber",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		tr, err := transcription.New(cfg.Transcription)
		if err != nil {
			return err
		}

		mimeType := transcribeMime
		if mimeType == "" {
			mimeType = mime.TypeByExtension(filepath.Ext(args[0]))
		}
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		res, err := tr.Transcribe(cmd.Context(), transcription.Audio{
			Data:       data,
			MimeType:   mimeType,
			Filename:   filepath.Base(args[0]),
			SampleRate: cfg.Recording.SampleRate,
			Channels:   cfg.Recording.ChannelCount,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Text)
		if res.Confidence != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "confidence: %.2f\n", *res.Confidence)
		}
		return nil
	},
}

func init() {
	transcribeCmd.Flags().StringVar(&transcribeMime, "mime-type", "", "audio MIME type (default is guessed from the extension)")
}
