// Package file implements the file analysis command.
package file

import (
	"github.com/spf13/cobra"
	"github.com/tphakala/voicebot-go/internal/analysis"
	"github.com/tphakala/voicebot-go/internal/conf"
)

// Command creates a new file command for offline WAV analysis.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "file [input.wav]",
		Short: "Analyze an audio file",
		Long:  "Classify a 16 kHz mono WAV file frame by frame and print the decision for each frame.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings.Input.Path = args[0]
			return analysis.FileAnalysis(settings)
		},
	}
}
