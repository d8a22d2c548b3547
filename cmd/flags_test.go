package cmd

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestMustFlag(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Int("limit", 20, "")
	cmd.Flags().Float64("face-threshold", 0, "")
	cmd.Flags().StringSlice("ext", []string{".jpg"}, "")
	if err := cmd.Flags().Parse([]string{"--limit", "5", "--face-threshold", "0.4", "--ext", ".png,.jpeg"}); err != nil {
		t.Fatal(err)
	}

	if got := mustGetInt(cmd, "limit"); got != 5 {
		t.Errorf("limit = %d, want 5", got)
	}
	if got := mustGetFloat64(cmd, "face-threshold"); got != 0.4 {
		t.Errorf("face-threshold = %v, want 0.4", got)
	}
	if got := mustGetStringSlice(cmd, "ext"); len(got) != 2 || got[0] != ".png" {
		t.Errorf("ext = %v, want [.png .jpeg]", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic for a flag read with the wrong type")
		}
	}()
	mustGetBool(cmd, "limit")
}
