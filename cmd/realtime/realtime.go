// Package realtime implements the realtime analysis command.
package realtime

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/voicebot-go/internal/analysis"
	"github.com/tphakala/voicebot-go/internal/conf"
)

// Command creates a new command for realtime keyword spotting.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Spot keywords in realtime captured audio",
		Long:  "Continuously capture audio, classify each buffer for go/stop keywords and drive the actuation lines.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.RealtimeAnalysis(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	return cmd
}

// setupFlags configures flags specific to the realtime command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Realtime.Audio.Source, "source", viper.GetString("realtime.audio.source"), "Audio capture source (\"sysdefault\", \"USB Audio\", \":0,0\", etc.)")
	cmd.Flags().StringVar(&settings.Realtime.Actuator.Type, "actuator", viper.GetString("realtime.actuator.type"), "Actuation output type (\"gpio\" or \"console\")")
	cmd.Flags().IntVar(&settings.Realtime.Actuator.GoPin, "gopin", viper.GetInt("realtime.actuator.gopin"), "GPIO number of the go line")
	cmd.Flags().IntVar(&settings.Realtime.Actuator.StopPin, "stoppin", viper.GetInt("realtime.actuator.stoppin"), "GPIO number of the stop line")
	cmd.Flags().BoolVar(&settings.Realtime.Telemetry.Enabled, "telemetry", viper.GetBool("realtime.telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Realtime.Telemetry.Listen, "listen", viper.GetString("realtime.telemetry.listen"), "Listen address and port of telemetry endpoint")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
