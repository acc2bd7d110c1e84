package realtime

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scaqms/aqms-go/internal/analysis"
	"github.com/scaqms/aqms-go/internal/conf"
)

// Command creates the command that runs the detection and classification
// cycles against the configured store.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Run outlier detection and classification in realtime mode",
		Long:  "Start the periodic outlier detection and online classification cycles over incoming sensor readings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.RealtimeAnalysis(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		panic(err)
	}

	return cmd
}

// setupFlags configures flags specific to the realtime command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().DurationVar(&settings.Detector.Interval, "detector-interval", viper.GetDuration("detector.interval"), "Cadence of the outlier detection cycle")
	cmd.Flags().DurationVar(&settings.Classifier.Interval, "classifier-interval", viper.GetDuration("classifier.interval"), "Cadence of the classification cycle")
	cmd.Flags().BoolVar(&settings.Metrics.Enabled, "metrics", viper.GetBool("metrics.enabled"), "Enable Prometheus metrics endpoint")
	cmd.Flags().StringVar(&settings.Metrics.Listen, "listen", viper.GetString("metrics.listen"), "Listen address and port of the metrics endpoint")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
