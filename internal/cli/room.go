package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"classroom-quiz-service/internal/config"
	"classroom-quiz-service/internal/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewRoomCmd groups operator commands that act on rooms in the configured store.
func NewRoomCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Create, end and inspect rooms",
	}
	cmd.AddCommand(newRoomCreateCmd(configPath))
	cmd.AddCommand(newRoomEndCmd(configPath))
	cmd.AddCommand(newRoomLeaderboardCmd(configPath))
	return cmd
}

func newRoomCreateCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a room from a YAML definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := loadRoomSpec(file)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), *configPath, func(rt *runtime) error {
				room, err := rt.service.CreateRoom(cmd.Context(), spec)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"roomId":    room.ID,
					"roomCode":  room.Code,
					"hostToken": room.HostToken,
				})
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the room YAML definition")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newRoomEndCmd(configPath *string) *cobra.Command {
	var (
		hostToken string
		force     bool
	)
	cmd := &cobra.Command{
		Use:   "end ROOM_ID",
		Short: "End an active room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), *configPath, func(rt *runtime) error {
				room, err := rt.service.End(cmd.Context(), args[0], hostToken, force)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), room)
			})
		},
	}
	cmd.Flags().StringVar(&hostToken, "host-token", "", "host token returned when the room was created")
	cmd.Flags().BoolVar(&force, "force", false, "end even if participants have unanswered questions")
	_ = cmd.MarkFlagRequired("host-token")
	return cmd
}

func newRoomLeaderboardCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard ROOM_ID",
		Short: "Print the current leaderboard of a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), *configPath, func(rt *runtime) error {
				lb, err := rt.service.Leaderboard(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), lb)
			})
		},
	}
}

// withRuntime runs fn against the durable store. Room commands are pointless
// against the in-memory store, which lives only as long as this process.
func withRuntime(ctx context.Context, configPath string, fn func(*runtime) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("room commands require postgres.url")
	}
	rt, err := newRuntime(ctx, cfg, cfg.Log.Logger())
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func loadRoomSpec(path string) (domain.RoomSpec, error) {
	var spec domain.RoomSpec
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, err
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("parse %s: %w", path, err)
	}
	return spec, spec.Validate()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
