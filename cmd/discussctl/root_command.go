package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-discuss/internal/bootstrap"
	"github.com/noah-isme/gema-discuss/internal/config"
	"github.com/noah-isme/gema-discuss/internal/database"
	"github.com/noah-isme/gema-discuss/internal/dto"
	"github.com/noah-isme/gema-discuss/internal/models"
	"github.com/noah-isme/gema-discuss/internal/repository"
)

type rootOptions struct {
	verbose bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "discussctl",
		Short:         "operate the discuss command outside the chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log service activity to stderr")

	rootCmd.AddCommand(
		newMigrateCommand(opts),
		newDiscussCommand(opts),
		newAssociationsCommand(opts),
		newActivityCommand(opts),
	)
	return rootCmd
}

func (o *rootOptions) logger() zerolog.Logger {
	if !o.verbose {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.Connect(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			logger := opts.logger()
			logger.Info().Msg("schema migrated")
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

type discussOptions struct {
	user   string
	room   string
	thread string
}

func newDiscussCommand(opts *rootOptions) *cobra.Command {
	discuss := &discussOptions{}

	cmd := &cobra.Command{
		Use:   "discuss [#room] [name...]",
		Short: "run /discuss as a user, from a thread or from a room",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), opts, func(container *bootstrap.Container) error {
				userID, err := resolveUserID(cmd.Context(), container.Users, discuss.user)
				if err != nil {
					return err
				}

				roomID, err := resolveRoomID(cmd.Context(), container.Rooms, discuss.room)
				if err != nil {
					return err
				}

				response, err := container.Commands.Discuss(cmd.Context(), userID, dto.DiscussCommandRequest{
					RoomID:    roomID,
					ThreadID:  discuss.thread,
					Arguments: args,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), response)
			})
		},
	}

	cmd.Flags().StringVar(&discuss.user, "user", "", "invoking user id or username")
	cmd.Flags().StringVar(&discuss.room, "room", "", "room the command is typed in, by id or name")
	cmd.Flags().StringVar(&discuss.thread, "thread", "", "thread root message id, when invoked from a thread")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}

func newAssociationsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "associations",
		Short: "inspect thread to discussion associations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <thread-id>",
		Short: "print the discussion recorded for a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), opts, func(container *bootstrap.Container) error {
				association, err := container.Lookup.Lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), association)
			})
		},
	})

	return cmd
}

type activityOptions struct {
	user    string
	outcome string
	thread  string
	limit   int
}

func newActivityCommand(opts *rootOptions) *cobra.Command {
	activity := &activityOptions{}

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "list recent /discuss invocations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(cmd.Context(), opts, func(container *bootstrap.Container) error {
				req := dto.ActivityListRequest{
					Page:     1,
					PageSize: activity.limit,
					Action:   "discuss",
					Outcome:  activity.outcome,
					ThreadID: activity.thread,
				}
				if activity.user != "" {
					userID, err := resolveUserID(cmd.Context(), container.Users, activity.user)
					if err != nil {
						return err
					}
					req.ActorID = userID
				}

				response, err := container.Activity.List(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), response)
			})
		},
	}

	cmd.Flags().StringVar(&activity.user, "user", "", "only invocations by this user id or username")
	cmd.Flags().StringVar(&activity.outcome, "outcome", "", "only invocations with this outcome")
	cmd.Flags().StringVar(&activity.thread, "thread", "", "only invocations from this thread")
	cmd.Flags().IntVar(&activity.limit, "limit", 20, "maximum number of entries")
	return cmd
}

func withContainer(ctx context.Context, opts *rootOptions, run func(*bootstrap.Container) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, redisClient, natsConn, err := bootstrap.Connect(cfg)
	if err != nil {
		return err
	}

	container, err := bootstrap.Build(ctx, cfg, db, redisClient, natsConn, opts.logger())
	if err != nil {
		return err
	}
	defer container.Close()

	return run(container)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
}

func resolveUserID(ctx context.Context, users userFinder, ref string) (string, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "@")
	if ref == "" {
		return "", fmt.Errorf("user is required")
	}

	if user, err := users.FindByID(ctx, ref); err == nil {
		return user.ID, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	user, err := users.FindByUsername(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("user %q not found", ref)
		}
		return "", err
	}
	return user.ID, nil
}

type roomFinder interface {
	FindByID(ctx context.Context, id string) (models.Room, error)
	FindByName(ctx context.Context, name string) (models.Room, error)
}

func resolveRoomID(ctx context.Context, rooms roomFinder, ref string) (string, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "#")
	if ref == "" {
		return "", fmt.Errorf("room is required")
	}

	if room, err := rooms.FindByID(ctx, ref); err == nil {
		return room.ID, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	room, err := rooms.FindByName(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("room %q not found", ref)
		}
		return "", err
	}
	return room.ID, nil
}

func printJSON(w io.Writer, value interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
