// Command creator-sync keeps creator live status and channel profiles in
// sync with Twitch and YouTube. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Starts the background sync job checking every eligible creator at a
//     fixed interval, with quota budgeting and cooldowns for YouTube.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, and
//     /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/wcarena/creator-sync/config"
	"github.com/wcarena/creator-sync/db"
	"github.com/wcarena/creator-sync/profile"
	"github.com/wcarena/creator-sync/quota"
	"github.com/wcarena/creator-sync/resolver"
	"github.com/wcarena/creator-sync/retry"
	"github.com/wcarena/creator-sync/server"
	"github.com/wcarena/creator-sync/status"
	"github.com/wcarena/creator-sync/syncer"
	"github.com/wcarena/creator-sync/telemetry"
	"github.com/wcarena/creator-sync/twitchapi"
	"github.com/wcarena/creator-sync/youtubeapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production
	// relies on real env).
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Initialize OpenTelemetry tracing (optional; requires
	// OTEL_EXPORTER_OTLP_ENDPOINT).
	shutdown, err := telemetry.InitTracing("creator-sync", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Versioned migrations first, embedded SQL as the fallback for
	// deployments without a schema_migrations table.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, falling back to embedded SQL",
			slog.Any("err", err), slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db", slog.Any("err", err))
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := db.NewStore(database)
	clock := clockwork.NewRealClock()
	budget := quota.NewBudget(cfg.QuotaDailyCap, clock)
	cooldowns := quota.NewCooldownTracker(cfg.CooldownWindow, clock, store)

	// Provider clients. Missing credentials leave the client nil; checks for
	// that platform degrade to not-live instead of failing.
	var helix *twitchapi.HelixClient
	if cfg.TwitchUsable() {
		tokens := &twitchapi.TokenSource{
			ClientID:     cfg.TwitchClientID,
			ClientSecret: cfg.TwitchClientSecret,
			StaticToken:  cfg.TwitchAppToken,
		}
		helix = &twitchapi.HelixClient{TokenSource: tokens, ClientID: cfg.TwitchClientID}

		// Best-effort early token fetch so auth problems surface at boot.
		tctx, cancel := context.WithTimeout(ctx, 8*time.Second)
		if tok, err := tokens.Get(tctx); err != nil {
			slog.Warn("twitch app token fetch failed", slog.Any("err", err))
		} else if len(tok) > 6 {
			slog.Info("twitch app token acquired", slog.String("tail", "***"+tok[len(tok)-6:]))
		}
		cancel()
	} else {
		// A static token alone is unusable: Helix rejects requests without a
		// Client-Id header.
		slog.Info("twitch checks disabled (need TWITCH_CLIENT_ID plus a secret or app token)")
	}

	var youtube *youtubeapi.Client
	if cfg.YouTubeConfigured() {
		youtube, err = youtubeapi.New(ctx, cfg.YTAPIKey)
		if err != nil {
			slog.Error("youtube client init failed", slog.Any("err", err))
			os.Exit(1)
		}
	} else {
		slog.Info("youtube checks disabled (missing YT_API_KEY)")
	}

	var search resolver.SearchClient
	if youtube != nil {
		search = youtube
	}
	res := resolver.New(search, budget)
	pol := retry.Default()

	checker := &status.Checker{
		Twitch:    nilIfUnsetTwitch(helix),
		YouTube:   nilIfUnsetYouTube(youtube),
		Budget:    budget,
		Cooldowns: cooldowns,
		Resolver:  res,
		Retry:     pol,
	}
	fetcher := &profile.Fetcher{
		Cache:            store,
		Clock:            clock,
		TTL:              cfg.ProfileTTL,
		Twitch:           nilIfUnsetTwitchProfile(helix),
		YouTube:          nilIfUnsetYouTubeProfile(youtube),
		Budget:           budget,
		Cooldowns:        cooldowns,
		Resolver:         res,
		Retry:            pol,
		DefaultAvatarURL: cfg.DefaultAvatarURL,
		DefaultBannerURL: cfg.DefaultBannerURL,
	}
	scheduler := &syncer.Scheduler{
		Store:        store,
		Checker:      checker,
		Profiles:     fetcher,
		Budget:       budget,
		Interval:     cfg.SyncInterval,
		CreatorDelay: cfg.CreatorDelay,
	}
	go scheduler.Start(ctx)

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1).
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	srv := &server.Server{
		DB:           database,
		Scheduler:    scheduler,
		Budget:       budget,
		Cooldowns:    cooldowns,
		TwitchReady:  helix != nil,
		YouTubeReady: youtube != nil,
	}
	go func() {
		if err := server.Start(ctx, cfg.ListenAddr, srv.NewMux()); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
}

// Typed-nil guards: assigning a nil *HelixClient to an interface field would
// make it non-nil and defeat the checker's credential gating.
func nilIfUnsetTwitch(c *twitchapi.HelixClient) status.TwitchLiveClient {
	if c == nil {
		return nil
	}
	return c
}

func nilIfUnsetYouTube(c *youtubeapi.Client) status.YouTubeLiveClient {
	if c == nil {
		return nil
	}
	return c
}

func nilIfUnsetTwitchProfile(c *twitchapi.HelixClient) profile.TwitchProfileClient {
	if c == nil {
		return nil
	}
	return c
}

func nilIfUnsetYouTubeProfile(c *youtubeapi.Client) profile.YouTubeProfileClient {
	if c == nil {
		return nil
	}
	return c
}
