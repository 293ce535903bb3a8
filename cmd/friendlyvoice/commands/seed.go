package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/d60-Lab/friendlyvoice/internal/seed"
	"github.com/d60-Lab/friendlyvoice/pkg/logger"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo users, voces, messages and ecosystems",
	Long: `Load the demo fixtures into the database. Without --file the embedded
fixtures are used. Running seed again rewrites the documents and leaves
existing credentials untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		fixtures, err := loadFixtures(seedFile)
		if err != nil {
			return err
		}
		st, err := openStorage(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := seed.Apply(cmd.Context(), fixtures, st.docs, st.creds, cfg.Auth.BcryptCost, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d voces, %d messages, %d ecosystems\n",
			res.Users, res.Voces, res.Messages, res.Ecosystems)
		return nil
	},
}

func loadFixtures(path string) (*seed.Fixtures, error) {
	if path == "" {
		return seed.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return seed.Parse(data)
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML fixtures file (defaults to the embedded demo data)")
	rootCmd.AddCommand(seedCmd)
}
