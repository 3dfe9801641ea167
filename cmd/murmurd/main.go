package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/murmurchat/murmur/internal/app"
	"github.com/murmurchat/murmur/internal/paths"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var (
	profileFlag string
	baseURLFlag string
)

var rootCmd = &cobra.Command{
	Use:           "murmurd",
	Short:         "murmur conversation daemon",
	Long:          "murmurd keeps a profile's conversation state synchronized with the murmur server.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Missing .env is fine, env vars are optional overrides.
		_ = godotenv.Load()

		profile := paths.Resolve(profileFlag, os.Getenv("MURMUR_PROFILE"))
		if err := paths.ValidateName(profile); err != nil {
			return err
		}

		fx.New(
			app.Module(app.Params{
				Profile: profile,
				BaseURL: baseURLFlag,
			}),
		).Run()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "profile name (overrides config default)")
	rootCmd.PersistentFlags().StringVar(&baseURLFlag, "base-url", "", "server base URL (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
