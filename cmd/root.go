package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "biogate",
	Short: "Biometric login with face, voice and a spoken phrase",
	Long: `biogate authenticates an enrolled account by matching a live camera frame
against the account's reference picture, scoring a recorded voice clip with an
external audio-authentication service and confirming a spoken phrase.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
