// Package main is the boardsync command line client.
//
// Its job is the usual main-package job: read configuration, build the
// dependency graph (storage, API client, caches, trackers), dispatch one
// command, and flush pending sync timers before exit. All actual logic
// lives in the internal packages.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nahin/boardsync/internal/activity"
	"github.com/nahin/boardsync/internal/api"
	"github.com/nahin/boardsync/internal/apperror"
	"github.com/nahin/boardsync/internal/auth"
	"github.com/nahin/boardsync/internal/catalog"
	"github.com/nahin/boardsync/internal/config"
	"github.com/nahin/boardsync/internal/debounce"
	"github.com/nahin/boardsync/internal/model"
	"github.com/nahin/boardsync/internal/prefs"
	"github.com/nahin/boardsync/internal/service"
	"github.com/nahin/boardsync/internal/storage/sqlite"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "boardsync:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	if len(args) == 0 {
		usage()
		return errors.New("missing command")
	}

	// The data directory may not exist on first run.
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	tokens := auth.NewTokenStore(store, logger)
	client := api.New(cfg.APIBaseURL, cfg.HTTPTimeout, tokens)
	cache := prefs.NewCache(store, logger)
	snap := catalog.NewSnapshot(store, client, cache, logger)

	sched := debounce.NewScheduler(logger)
	defer sched.Stop()

	// An unconfigured API base means offline mode: local state still works,
	// nothing is synced or tracked remotely. Interface fields must stay nil
	// in that case rather than holding a nil *api.Client.
	var sender activity.Sender
	var syncer service.StateSyncer
	if client.Configured() {
		sender = client
		syncer = client
	}

	tracker, err := activity.NewTracker(store, tokens, sender, snap, sched, logger, activity.Options{
		ActionDelay:   cfg.ActivitySyncDelay,
		SearchDelay:   cfg.SearchSyncDelay,
		SendTimeout:   cfg.HTTPTimeout,
		LegacyActions: cfg.LegacyActions,
	})
	if err != nil {
		return fmt.Errorf("init tracker: %w", err)
	}

	games := service.NewGameService(tokens, cache, snap, syncer, tracker, sched, logger, service.Options{
		SyncDelay:   cfg.StateSyncDelay,
		SyncTimeout: cfg.HTTPTimeout,
	})

	ctx := context.Background()
	err = dispatch(ctx, args, games, snap, tokens, tracker)

	// A one-shot process would otherwise exit before any debounced work
	// fires. Flush runs every pending timer's callback now.
	sched.FlushAll()
	return err
}

func dispatch(ctx context.Context, args []string, games *service.GameService, snap *catalog.Snapshot, tokens *auth.TokenStore, tracker *activity.Tracker) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		if len(rest) != 1 {
			return errors.New("usage: boardsync login <jwt>")
		}
		if err := tokens.SetToken(ctx, rest[0]); err != nil {
			return err
		}
		ident := tokens.Identity(ctx)
		if ident == nil {
			return errors.New("token stored but not decodable; check it is a valid JWT")
		}
		fmt.Println("logged in as", ident.UserID)
		return nil

	case "logout":
		if err := games.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil

	case "refresh":
		list, err := snap.RefreshAll(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("cached %d games\n", len(list))
		return nil

	case "games":
		return printGames(snap.Games(ctx))

	case "search":
		if len(rest) != 1 {
			return errors.New("usage: boardsync search <query>")
		}
		return printGames(games.Search(ctx, rest[0]))

	case "favorites":
		if len(rest) == 1 && rest[0] == "--remote" {
			ident := tokens.Identity(ctx)
			if ident == nil {
				return errors.New("not logged in; run boardsync login <jwt> first")
			}
			list, err := snap.ReconcileFavorites(ctx, ident.UserID)
			if err != nil {
				return err
			}
			return printGames(list)
		}
		list, err := games.Favorites(ctx)
		if err != nil {
			return err
		}
		return printGames(list)

	case "fav":
		return toggle(rest, "fav", func(id model.GameID) (model.PreferenceRecord, error) {
			// The CLI has no favorites view, so failures keep the local value.
			return games.ToggleFavorite(ctx, id, service.KeepLocalOnFailure)
		})

	case "like":
		return toggle(rest, "like", func(id model.GameID) (model.PreferenceRecord, error) {
			return games.ToggleLike(ctx, id)
		})

	case "rate":
		if len(rest) != 2 {
			return errors.New("usage: boardsync rate <gameId> <rating>")
		}
		rating, err := strconv.ParseFloat(rest[1], 64)
		if err != nil {
			return fmt.Errorf("parse rating: %w", err)
		}
		rec, err := games.SetRating(ctx, model.GameID(rest[0]), rating)
		if err != nil {
			return err
		}
		fmt.Printf("rated %s: %.1f\n", rest[0], rec.UserRating)
		return nil

	case "view":
		if len(rest) < 1 || len(rest) > 2 {
			return errors.New("usage: boardsync view <gameId> [seconds]")
		}
		seconds := 0
		if len(rest) == 2 {
			var err error
			if seconds, err = strconv.Atoi(rest[1]); err != nil {
				return fmt.Errorf("parse seconds: %w", err)
			}
		}
		session := tracker.StartView(model.GameID(rest[0]))
		time.Sleep(time.Duration(seconds) * time.Second)
		session.Stop(activity.EngagementState{})
		fmt.Printf("viewed %s for %ds\n", rest[0], seconds)
		return nil

	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func toggle(rest []string, name string, fn func(model.GameID) (model.PreferenceRecord, error)) error {
	if len(rest) != 1 {
		return fmt.Errorf("usage: boardsync %s <gameId>", name)
	}
	rec, err := fn(model.GameID(rest[0]))
	if err != nil {
		if errors.Is(err, apperror.ErrAuthRequired) {
			return errors.New("not logged in; run boardsync login <jwt> first")
		}
		return err
	}
	fmt.Printf("%s: favorite=%t liked=%t rating=%.1f\n",
		rest[0], rec.IsFavorite, rec.IsLiked, rec.UserRating)
	return nil
}

func printGames(list []model.Game) error {
	if len(list) == 0 {
		fmt.Println("no games cached; run boardsync refresh")
		return nil
	}
	for _, g := range list {
		fmt.Printf("%-8s %s\n", g.ID, g.Name)
	}
	return nil
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: boardsync <command> [args]

commands:
  login <jwt>          store an access token
  logout               clear the token and this user's cached preferences
  refresh              fetch the full catalog from the backend
  games                list the cached catalog
  search <query>       filter cached games by name
  favorites [--remote] list favorites; --remote reconciles with the backend first
  fav <gameId>         toggle favorite
  like <gameId>        toggle like
  rate <gameId> <r>    set a 0-5 half-star rating
  view <gameId> [sec]  record a view session`)
}
