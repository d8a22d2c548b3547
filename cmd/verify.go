package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/biogate/internal/capture"
	"github.com/kozaktomas/biogate/internal/config"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <account-id>",
	Short: "Run one login attempt from files",
	Long: `Run one login attempt for an account using a camera frame and a voice clip
from disk, then print the per-modality diagnostics.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("frame", "", "Camera frame image")
	verifyCmd.Flags().String("audio", "", "Voice clip (WAV)")
	verifyCmd.Flags().String("transcript", "", "Transcript of the clip when no speech provider is configured")
	verifyCmd.Flags().Float64("face-threshold", 0, "Override the face distance threshold")
	verifyCmd.Flags().Bool("require-speech", false, "Make the spoken phrase part of the login decision")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if t := mustGetFloat64(cmd, "face-threshold"); t > 0 {
		cfg.Face.Threshold = t
	}
	if mustGetBool(cmd, "require-speech") {
		cfg.Speech.Require = true
	}

	ctx := context.Background()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	media := &capture.FileMedia{
		FramePath:   mustGetString(cmd, "frame"),
		AudioPath:   mustGetString(cmd, "audio"),
		Transcript:  mustGetString(cmd, "transcript"),
		Transcriber: b.transcriber,
	}

	attempt, outcome, err := b.service.Run(ctx, args[0], media)
	if err != nil {
		return err
	}

	fmt.Printf("Attempt: %s\n", attempt.ID)
	fmt.Printf("Phrase:  %q\n", outcome.Phrase)
	if outcome.Transcript != "" {
		fmt.Printf("Heard:   %q\n", outcome.Transcript)
	}
	for _, line := range outcome.Diagnostics {
		fmt.Printf("  %s\n", line)
	}
	fmt.Printf("Result:  %s\n", outcome.Status)

	if !outcome.Success {
		return errors.New("login failed")
	}
	return nil
}
