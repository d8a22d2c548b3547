package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/biogate/internal/config"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit <account-id>",
	Short: "Show recent login attempts of an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().Int("limit", 20, "Number of attempts to show")
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	b, err := openBackend(ctx, config.Load())
	if err != nil {
		return err
	}
	defer b.Close()

	if b.audit == nil {
		return errors.New("no audit store configured, set DATABASE_URL or AUDIT_MARIADB_DSN")
	}

	records, err := b.audit.RecentAttempts(ctx, args[0], mustGetInt(cmd, "limit"))
	if err != nil {
		return fmt.Errorf("loading attempts: %w", err)
	}
	if len(records) == 0 {
		fmt.Printf("No attempts recorded for %s\n", args[0])
		return nil
	}

	for _, r := range records {
		fmt.Printf("%s  %-7s  face=%.4f audio=%.4f speech=%t  (%s)\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Status,
			r.FaceDistance, r.AudioScore, r.SpeechMatched, r.Duration().Round(time.Millisecond))
		if len(r.FailureReasons) > 0 {
			fmt.Printf("    %s\n", strings.Join(r.FailureReasons, "; "))
		}
	}
	return nil
}
