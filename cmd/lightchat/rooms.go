package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/seggan/lightchat/internal/config"
	"github.com/seggan/lightchat/sechat"
)

var (
	roomIDStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Width(8)
	roomNameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
)

func newRoomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List joinable rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			sdk := sechat.DefaultConfig()
			sdk.SiteURL = cfg.SiteURL
			sdk.ChatURL = cfg.ChatURL
			client, err := sechat.NewClient(sdk)
			if err != nil {
				return err
			}
			client.SetLogger(sechat.NewSlogLogger(newLogger()))

			rooms, err := client.ListRooms(cmd.Context())
			if err != nil {
				return err
			}
			for _, room := range rooms {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n",
					roomIDStyle.Render(fmt.Sprintf("%d", room.ID)),
					roomNameStyle.Render(room.Name))
			}
			return nil
		},
	}
}
