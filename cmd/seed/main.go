package main

import (
	"context"
	"fmt"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"liaptui/internal/app"
	"liaptui/internal/config"
	"liaptui/internal/log"
)

var (
	configFile string
	hostName   string
	humans     []string
	bots       int
	start      bool
)

var rootCmd = &cobra.Command{
	Use:   "liaptui-seed",
	Short: "Create a demo room and print session tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		log.InitLog("liaptui-seed", cfg.Log.Level)

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		created, err := a.Rooms.CreateRoom(ctx, hostName, 0)
		if err != nil {
			return err
		}
		fmt.Printf("room %s\n", created.RoomID)
		fmt.Printf("  %-12s seat %d token %s\n", created.PlayerName, created.Seat, created.Token)

		for _, name := range humans {
			joined, err := a.Rooms.JoinRoom(ctx, created.RoomID, name, false)
			if err != nil {
				return fmt.Errorf("join %s: %w", name, err)
			}
			fmt.Printf("  %-12s seat %d token %s\n", joined.PlayerName, joined.Seat, joined.Token)
		}
		for i := 1; i <= bots; i++ {
			joined, err := a.Rooms.JoinRoom(ctx, created.RoomID, fmt.Sprintf("Bot %d", i), true)
			if err != nil {
				return fmt.Errorf("join bot %d: %w", i, err)
			}
			fmt.Printf("  %-12s seat %d (bot)\n", joined.PlayerName, joined.Seat)
		}

		if start {
			game, err := a.Rooms.StartGame(ctx, created.RoomID)
			if err != nil {
				return err
			}
			fmt.Printf("game started, %s to play\n", game.CurrentPlayer)
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "path to a YAML config file")
	rootCmd.Flags().StringVar(&hostName, "host", "Host", "host player name")
	rootCmd.Flags().StringSliceVar(&humans, "player", nil, "additional human players")
	rootCmd.Flags().IntVar(&bots, "bots", 3, "number of bot seats to fill")
	rootCmd.Flags().BoolVar(&start, "start", false, "start the game after seating")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("seed failed: %v", err)
		os.Exit(1)
	}
}
