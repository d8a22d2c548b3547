package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kozaktomas/biogate/internal/account"
	"github.com/kozaktomas/biogate/internal/config"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage enrolled accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled accounts",
	Args:  cobra.NoArgs,
	RunE:  runAccountsList,
}

var accountsEnrollCmd = &cobra.Command{
	Use:   "enroll <directory>",
	Short: "Enroll every picture in a directory as an account",
	Long: `Enroll every picture in a directory as an account.
The file name without extension becomes the display name and its slug the
account ID. Reference descriptors are extracted right away so that a picture
without a face is reported now instead of at login time.`,
	Args: cobra.ExactArgs(1),
	RunE: runAccountsEnroll,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsEnrollCmd)

	accountsEnrollCmd.Flags().StringSlice("ext", []string{".jpg", ".jpeg", ".png"}, "Picture file extensions to enroll")
	accountsEnrollCmd.Flags().Bool("skip-extract", false, "Only copy pictures, do not extract descriptors")
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	store := account.NewFileStore(cfg.Accounts.Dir)

	accounts, err := store.List(context.Background())
	if err != nil {
		return fmt.Errorf("listing accounts: %w", err)
	}
	if len(accounts) == 0 {
		fmt.Printf("No accounts enrolled in %s\n", store.Dir())
		return nil
	}

	fmt.Printf("%-24s %-32s %s\n", "ID", "NAME", "PICTURE")
	for _, acc := range accounts {
		fmt.Printf("%-24s %-32s %s\n", acc.ID, acc.Name, acc.Picture)
	}
	return nil
}

// enrollCandidate is a picture found in the enrollment directory.
type enrollCandidate struct {
	path string
	acc  account.Account
}

// findPictures lists the pictures in dir with one of the given extensions.
func findPictures(dir string, exts []string) ([]enrollCandidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var out []enrollCandidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !slices.Contains(exts, ext) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		id := account.Slugify(name)
		if id == "" {
			continue
		}
		out = append(out, enrollCandidate{
			path: filepath.Join(dir, e.Name()),
			acc:  account.Account{ID: id, Name: name, Picture: id + ext},
		})
	}
	return out, nil
}

func runAccountsEnroll(cmd *cobra.Command, args []string) error {
	exts := mustGetStringSlice(cmd, "ext")
	for i := range exts {
		exts[i] = strings.ToLower(exts[i])
		if !strings.HasPrefix(exts[i], ".") {
			exts[i] = "." + exts[i]
		}
	}
	skipExtract := mustGetBool(cmd, "skip-extract")

	candidates, err := findPictures(args[0], exts)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		fmt.Printf("No pictures found in %s\n", args[0])
		return nil
	}

	ctx := context.Background()
	cfg := config.Load()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	bar := progressbar.NewOptions(len(candidates),
		progressbar.OptionSetDescription("Enrolling accounts"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("pictures"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var failures []string
	for _, c := range candidates {
		if err := enrollOne(ctx, b, c, skipExtract); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(c.path), err))
		}
		bar.Add(1)
	}
	fmt.Println()

	fmt.Printf("Enrolled %d of %d pictures into %s\n", len(candidates)-len(failures), len(candidates), b.accounts.Dir())
	for _, f := range failures {
		fmt.Printf("  failed: %s\n", f)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d pictures could not be enrolled", len(failures))
	}
	return nil
}

func enrollOne(ctx context.Context, b *backend, c enrollCandidate, skipExtract bool) error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}
	_, lookupErr := b.accounts.Get(ctx, c.acc.ID)
	replacing := lookupErr == nil
	if err := b.accounts.Enroll(ctx, c.acc, data); err != nil {
		return err
	}
	if replacing {
		if err := b.service.Forget(ctx, c.acc.ID); err != nil {
			return err
		}
	}
	if skipExtract {
		return nil
	}
	return b.service.Enroll(ctx, c.acc.ID)
}
