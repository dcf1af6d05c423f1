// Package devices implements the capture device listing command.
package devices

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tphakala/voicebot-go/internal/conf"
	"github.com/tphakala/voicebot-go/internal/myaudio"
)

// Command creates a new command that lists available capture devices.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available audio capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := myaudio.ListAudioSources()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Println("No capture devices found")
				return nil
			}
			fmt.Println("Available capture sources:")
			for _, device := range devices {
				fmt.Printf("  %d: %s, %s\n", device.Index, device.Name, device.ID)
			}
			return nil
		},
	}
}
