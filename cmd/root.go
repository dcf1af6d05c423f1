// Package cmd assembles the command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/voicebot-go/cmd/devices"
	"github.com/tphakala/voicebot-go/cmd/file"
	"github.com/tphakala/voicebot-go/cmd/realtime"
	"github.com/tphakala/voicebot-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "voicebot",
		Short: "VoiceBot-Go CLI",
		Long:  "Realtime go/stop keyword spotting driving a robot motion control line pair.",
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(
		realtime.Command(settings),
		file.Command(settings),
		devices.Command(settings),
	)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Keyword.ModelPath, "model", viper.GetString("keyword.modelpath"), "Path to the TensorFlow Lite model file")
	rootCmd.PersistentFlags().StringVar(&settings.Keyword.LabelPath, "labels", viper.GetString("keyword.labelpath"), "Path to the model label file")
	rootCmd.PersistentFlags().IntVar(&settings.Keyword.Threads, "threads", viper.GetInt("keyword.threads"), "Number of CPU threads for inference, 0 to use all")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
