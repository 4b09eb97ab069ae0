package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxform/voxform/pkg/core/types"
	voxform "github.com/voxform/voxform/sdk"
)

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Realtime voice session",
	Long: `Start a realtime voice session: the microphone streams to the model,
the model talks back through the speaker, and extracted fields land in the
record panel as you speak.

Press Ctrl-C to stop. With --archive-dsn set, the encounter is archived on
exit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resolveSettings()
		if err != nil {
			return err
		}
		client, err := voxform.NewClient(s.options...)
		if err != nil {
			return err
		}

		cfg := voxform.ConfigFor(s.mode)
		record := cfg.NewRecord()
		transcript := types.NewTranscript(cfg.Greeting)
		bridge := voxform.NewBridge(client, record, transcript)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := bridge.Start(ctx, cfg); err != nil {
			return err
		}
		fmt.Println(renderTurn(types.Turn{Role: types.RoleAssistant, Text: cfg.Greeting}))
		fmt.Println("Listening. Press Ctrl-C to stop.")

		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		lastPanel := ""
	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case <-ticker.C:
				if bridge.State() == voxform.StateIdle {
					if err := bridge.Err(); err != nil {
						fmt.Fprintln(os.Stderr, "Session ended:", err)
					}
					break loop
				}
				if panel := renderRecord(panelTitle(cfg.Mode), record); panel != lastPanel {
					fmt.Println(panel)
					lastPanel = panel
				}
			}
		}

		bridge.Stop()
		fmt.Println(renderRecord(panelTitle(cfg.Mode), record))

		if s.archiveDSN != "" {
			id, err := saveEncounter(cmd.Context(), s, cfg, record, transcript)
			if err != nil {
				return err
			}
			fmt.Println("Archived encounter", id)
		}
		return nil
	},
}
