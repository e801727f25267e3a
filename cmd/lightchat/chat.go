package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/seggan/lightchat/internal/config"
	"github.com/seggan/lightchat/sechat"
)

var (
	userStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	timeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Italic(true)
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <room-id>",
		Short: "Join a room and chat from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid room id %q", args[0])
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			client, err := newClient(cfg, store)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := login(ctx, client, cfg); err != nil {
				return err
			}
			return runChat(ctx, client, roomID, cmd)
		},
	}
}

func runChat(ctx context.Context, client *sechat.Client, roomID int64, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	room, err := client.JoinRoom(ctx, roomID)
	if err != nil {
		return err
	}
	defer func() {
		leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Close(leaveCtx)
	}()

	history, err := room.Messages(ctx)
	if err != nil {
		return err
	}
	for _, msg := range history {
		printMessage(out, msg)
	}

	// Live events come through a handler; posted messages also land in
	// the room buffer via its own first handler.
	room.RegisterHandler(func(ctx context.Context, ev sechat.ChatEvent) error {
		if ev.Kind != sechat.KindPosted {
			return nil
		}
		msg, err := sechat.MessageFromEvent(ev)
		if err != nil {
			return err
		}
		printMessage(out, msg)
		return nil
	})

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			if _, err := room.Send(ctx, line); err != nil {
				if sechat.IsRateLimited(err) {
					fmt.Fprintln(out, infoStyle.Render("rate limited, wait a few seconds and retry"))
					continue
				}
				return err
			}
		}
	}
}

func printMessage(out io.Writer, msg sechat.Message) {
	stamp := time.Unix(msg.Timestamp, 0).Format("15:04")
	fmt.Fprintf(out, "%s %s %s\n",
		timeStyle.Render(stamp),
		userStyle.Render(msg.Username+":"),
		msg.Content)
}
