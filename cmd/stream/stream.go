package stream

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scaqms/aqms-go/internal/analysis"
	"github.com/scaqms/aqms-go/internal/conf"
)

// Command creates the command that feeds synthetic sensor readings into the
// store at the configured target rate.
func Command(settings *conf.Settings) *cobra.Command {
	var seed int64

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Feed synthetic sensor readings into the store",
		Long:  "Generate synthetic readings with a seeded random walk per station and ingest them in micro-batches at the target rate.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.StreamFeed(settings, seed)
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 1, "Seed for the synthetic reading generator")

	if err := setupFlags(cmd, settings); err != nil {
		panic(err)
	}

	return cmd
}

// setupFlags configures flags specific to the stream command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().IntVar(&settings.Ingest.TargetRate, "rate", viper.GetInt("ingest.targetrate"), "Target readings per minute")
	cmd.Flags().IntVar(&settings.Ingest.BatchSize, "batchsize", viper.GetInt("ingest.batchsize"), "Readings per micro-batch")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
