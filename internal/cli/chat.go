package cli

import (
	"bufio"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwizi/permit-tracker/internal/adminclient"
	"github.com/dwizi/permit-tracker/internal/config"
)

func newChatCommand(logger *slog.Logger) *cobra.Command {
	_ = logger
	var (
		userID     string
		message    string
		timeoutSec int
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the permit tracker over the local API",
		Long:  "Interactive session against /api/v1/chat. Replies arrive as the bot would send them to a chat platform.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client, err := adminclient.New(cfg)
			if err != nil {
				return err
			}
			client = client.WithTimeout(boundedTimeout(timeoutSec))

			text := strings.TrimSpace(message)
			if text == "" && len(args) > 0 {
				text = strings.TrimSpace(strings.Join(args, " "))
			}
			userID = strings.TrimSpace(userID)
			if userID == "" {
				userID = "cli"
			}

			if text != "" {
				return sendChat(cmd, client, userID, text, timeoutSec)
			}
			cmd.Printf("Connected to %s as api:%s. Type /exit to quit.\n", cfg.AdminAPIURL, userID)
			return runInteractiveChat(cmd, client, userID, timeoutSec)
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "cli", "user id for this chat session, namespaced as api:<id>")
	cmd.Flags().StringVarP(&message, "message", "m", "", "single message to send (non-interactive mode)")
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 60, "request timeout in seconds")
	return cmd
}

type chatClient interface {
	Chat(ctx context.Context, input adminclient.ChatRequest) (adminclient.ChatResponse, error)
}

func sendChat(cmd *cobra.Command, client chatClient, userID, text string, timeoutSec int) error {
	ctx, cancel := context.WithTimeout(context.Background(), boundedTimeout(timeoutSec))
	defer cancel()
	response, err := client.Chat(ctx, adminclient.ChatRequest{UserID: userID, Text: text})
	if err != nil {
		return err
	}
	printReplies(cmd, response.Replies)
	return nil
}

func runInteractiveChat(cmd *cobra.Command, client chatClient, userID string, timeoutSec int) error {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		cmd.Print("you> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/exit" || text == "/quit" {
			return nil
		}
		if err := sendChat(cmd, client, userID, text, timeoutSec); err != nil {
			cmd.PrintErrf("chat request failed: %v\n", err)
		}
	}

	return scanner.Err()
}

func printReplies(cmd *cobra.Command, replies []string) {
	if len(replies) == 0 {
		cmd.Println("bot> (no reply)")
		return
	}
	for _, reply := range replies {
		lines := strings.Split(strings.TrimSpace(reply), "\n")
		for index, line := range lines {
			line = strings.TrimRight(line, "\r")
			if index == 0 {
				cmd.Printf("bot> %s\n", line)
				continue
			}
			cmd.Printf("     %s\n", line)
		}
	}
}

func boundedTimeout(input int) time.Duration {
	if input < 1 {
		input = 60
	}
	if input > 600 {
		input = 600
	}
	return time.Duration(input) * time.Second
}
