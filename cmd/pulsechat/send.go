package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"pulsechat-backend/internal/dispatch"
	"pulsechat-backend/internal/transcript"
)

var (
	sendMessage  string
	sendRelayURL string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Chat with a running relay from the terminal",
	Long: `Send a single message with -m, or start an interactive chat that keeps
history for the duration of the process.

Examples:
  pulsechat send -m "Hello"
  pulsechat send --relay https://example.com/functions/v1/grok-chat`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendMessage, "message", "m", "", "Send a single message")
	sendCmd.Flags().StringVar(&sendRelayURL, "relay", "", "Relay URL (defaults to RELAY_URL or the local server)")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, _ []string) error {
	url := sendRelayURL
	if url == "" {
		url = cfg.SelfRelayURL()
	}
	d := dispatch.New(nil, transcript.New("cli", nil), dispatch.NewHTTPRelayClient(url, cfg.RelayTimeout))
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if sendMessage != "" {
		ex, err := d.Send(ctx, sendMessage)
		if err != nil && ex.AI == "" {
			return err
		}
		fmt.Println(ex.AI)
		return err
	}

	fmt.Println("pulsechat interactive mode (type 'exit' or Ctrl+D to quit)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			return nil
		}
		ex, err := d.Send(ctx, line)
		if errors.Is(err, dispatch.ErrEmptyMessage) {
			continue
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			if ex.AI == "" {
				continue
			}
		}
		fmt.Println(ex.AI)
	}
}
