package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/CodeGachi/SyncNapse-sub001/auth"
	"github.com/CodeGachi/SyncNapse-sub001/auth/oauthstate"
	"github.com/CodeGachi/SyncNapse-sub001/cleanup"
	"github.com/CodeGachi/SyncNapse-sub001/identity"
	"github.com/CodeGachi/SyncNapse-sub001/internal/cache"
	"github.com/CodeGachi/SyncNapse-sub001/internal/config"
	"github.com/CodeGachi/SyncNapse-sub001/internal/storage/postgres"
	"github.com/CodeGachi/SyncNapse-sub001/server"
	"github.com/CodeGachi/SyncNapse-sub001/token"
	"github.com/CodeGachi/SyncNapse-sub001/token/blacklist"
	"github.com/CodeGachi/SyncNapse-sub001/token/refresh"
)

// oauthProviderNames are the providers registered at startup when their
// credentials are present in the environment.
var oauthProviderNames = []string{"google", "github"}

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()

	c := config.New()
	if err := config.Validate(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	displayAppname(c.GetAppName())

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", "authd").Logger()

	ctx := context.Background()

	store, err := postgres.Open(c.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("postgres.Open: %w", err)
	}
	defer store.Close()
	if err := store.RunMigrations(ctx); err != nil {
		return fmt.Errorf("store.RunMigrations: %w", err)
	}

	issuer := token.NewIssuer(
		token.NewHMACSigner(c.GetJWTSecret()),
		c.GetIssuer(),
		token.WithAccessTokenExpiry(c.GetAccessTokenExpiry()),
	)

	refreshManager := refresh.NewManager(store.RefreshTokens(),
		refresh.WithExpiry(c.GetRefreshTokenExpiry()),
		refresh.WithLogger(logger),
	)
	blacklistService := blacklist.NewService(store.Blacklist(), issuer, blacklist.WithLogger(logger))
	stateService := oauthstate.NewService(store.OAuthStates(),
		oauthstate.WithTTL(c.GetOAuthStateTTL()),
		oauthstate.WithLogger(logger),
	)

	identityClient := identity.NewClient(identity.WithLogger(logger))
	registerProviders(ctx, c, identityClient, logger)

	statusCache := cache.New(
		cache.WithDefaultTTL(c.GetCacheDefaultTTL()),
		cache.WithLogger(logger),
	)
	statusCache.Start(time.Minute)
	defer statusCache.Stop()

	authService, err := auth.NewService(auth.Deps{
		Users:     store.Users(),
		Issuer:    issuer,
		Refresh:   refreshManager,
		Blacklist: blacklistService,
		States:    stateService,
		Provider:  identityClient,
		Cache:     statusCache,
	},
		auth.WithStatusCacheTTL(c.GetCacheDefaultTTL()),
		auth.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("auth.NewService: %w", err)
	}

	cleanupJob := cleanup.NewJob([]cleanup.Task{
		{Name: "refresh_tokens", Run: refreshManager.CleanupExpired},
		{Name: "oauth_states", Run: stateService.CleanupExpired},
		{Name: "token_blacklist", Run: blacklistService.CleanupExpired},
	},
		cleanup.WithInterval(c.GetCleanupInterval()),
		cleanup.WithLogger(logger),
	)
	cleanupJob.Start(ctx)
	defer cleanupJob.Stop()

	handler, err := server.New(c, authService, issuer, server.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

// registerProviders wires every configured upstream provider. A provider
// without credentials is skipped rather than fatal so deployments can
// enable providers one at a time.
func registerProviders(ctx context.Context, c config.Config, client *identity.Client, logger zerolog.Logger) {
	for _, name := range oauthProviderNames {
		spec := c.GetOAuthProvider(name)
		if spec.ClientID == "" {
			logger.Info().Str("provider", name).Msg("oauth provider not configured, skipping")
			continue
		}
		if err := client.Register(ctx, spec); err != nil {
			logger.Error().Err(err).Str("provider", name).Msg("failed to register oauth provider")
			continue
		}
		logger.Info().Str("provider", name).Msg("oauth provider registered")
	}
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
