package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voxform/voxform/pkg/archive"
	"github.com/voxform/voxform/pkg/core/types"
	voxform "github.com/voxform/voxform/sdk"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Turn-based text session",
	Long: `Start a typed session. Everything you enter is sent to the model; any
fields it extracts appear in the record panel.

Commands inside the session:
  /mode <intake|sales>  switch mode (resets the record and transcript)
  /reset                blank the record and restart the conversation
  /save                 archive the encounter (requires --archive-dsn)
  /quit                 exit`,
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
		return runChat(cmd.Context(), client, s)
	},
}

func runChat(ctx context.Context, client *voxform.Client, s settings) error {
	cfg := voxform.ConfigFor(s.mode)
	record := cfg.NewRecord()
	transcript := types.NewTranscript(cfg.Greeting)

	session, err := client.Chat.NewSession(ctx, cfg, record, transcript)
	if err != nil {
		return err
	}

	fmt.Println(renderTurn(types.Turn{Role: types.RoleAssistant, Text: cfg.Greeting}))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, cmdErr := handleChatCommand(ctx, client, s, line, &cfg, &record, &transcript, &session)
			if cmdErr != nil {
				fmt.Fprintln(os.Stderr, "Error:", cmdErr)
			}
			if done {
				return nil
			}
			continue
		}

		reply, err := session.Send(ctx, line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			continue
		}
		fmt.Println(renderTurn(types.Turn{Role: types.RoleAssistant, Text: reply}))
		fmt.Println(renderRecord(panelTitle(cfg.Mode), record))
	}
}

func handleChatCommand(ctx context.Context, client *voxform.Client, s settings, line string, cfg *voxform.ModeConfig, record **types.Record, transcript **types.Transcript, session **voxform.ChatSession) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/mode":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: /mode <intake|sales>")
		}
		mode, err := voxform.ParseMode(fields[1])
		if err != nil {
			return false, err
		}
		// Mode switch never carries record values or transcript turns over.
		*cfg = voxform.ConfigFor(mode)
		*record = cfg.NewRecord()
		*transcript = types.NewTranscript(cfg.Greeting)
		next, err := client.Chat.NewSession(ctx, *cfg, *record, *transcript)
		if err != nil {
			return false, err
		}
		*session = next
		fmt.Println(renderTurn(types.Turn{Role: types.RoleAssistant, Text: cfg.Greeting}))
		return false, nil

	case "/reset":
		(*record).Reset()
		(*transcript).Reset(cfg.Greeting)
		next, err := client.Chat.NewSession(ctx, *cfg, *record, *transcript)
		if err != nil {
			return false, err
		}
		*session = next
		fmt.Println(renderTurn(types.Turn{Role: types.RoleAssistant, Text: cfg.Greeting}))
		return false, nil

	case "/save":
		id, err := saveEncounter(ctx, s, *cfg, *record, *transcript)
		if err != nil {
			return false, err
		}
		fmt.Println("Archived encounter", id)
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
}

func saveEncounter(ctx context.Context, s settings, cfg voxform.ModeConfig, record *types.Record, transcript *types.Transcript) (string, error) {
	if s.archiveDSN == "" {
		return "", fmt.Errorf("no archive configured (set --archive-dsn)")
	}
	store, err := archive.Open(ctx, s.archiveDSN)
	if err != nil {
		return "", err
	}
	defer store.Close()

	id, err := store.Save(ctx, string(cfg.Mode), record, transcript)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func panelTitle(mode voxform.Mode) string {
	if mode == voxform.ModeSales {
		return "Sales Visit"
	}
	return "Patient Intake"
}
