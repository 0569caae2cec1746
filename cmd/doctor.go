package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gryag-bot/gryag/internal/config"
	"github.com/gryag-bot/gryag/internal/store"
)

// doctorCmd checks that the bot can start: config parses, the database
// opens, and the custom prompt file (when configured) is readable.
func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and storage health",
		Run: func(cmd *cobra.Command, args []string) {
			failed := false
			check := func(name string, err error) {
				if err != nil {
					failed = true
					fmt.Printf("✗ %s: %v\n", name, err)
					return
				}
				fmt.Printf("✓ %s\n", name)
			}

			cfg, err := config.Load()
			check("config", err)
			if cfg == nil {
				os.Exit(1)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			st, err := store.Open(cfg.DatabasePath)
			check("database", err)
			if st != nil {
				_, listErr := st.ListChatIDs(ctx)
				check("database query", listErr)
				st.Close()
			}

			if cfg.SystemPromptFile != "" {
				_, statErr := os.Stat(cfg.SystemPromptFile)
				if os.IsNotExist(statErr) {
					fmt.Printf("✓ prompt file %s not found, built-in default will be used\n", cfg.SystemPromptFile)
				} else {
					check("prompt file", statErr)
				}
			}

			if failed {
				os.Exit(1)
			}
		},
	}
}
