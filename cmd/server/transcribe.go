package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var transcribeIndent bool

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file>",
	Short: "Transcribe a local audio file",
	Long: `Transcribe a local audio file.

Runs the same pipeline as POST /transcribe and prints the response body to
stdout.

Examples:
  api-ctc transcribe recording.wav
  api-ctc transcribe recording.mp3 --indent`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		p, closePipeline, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		defer closePipeline()

		ctx := log.Logger.With().Str("file", args[0]).Logger().WithContext(cmd.Context())
		resp, err := p.Run(ctx, data)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		if transcribeIndent {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(resp)
	},
}

func init() {
	transcribeCmd.Flags().BoolVar(&transcribeIndent, "indent", false, "indent JSON output")
}
