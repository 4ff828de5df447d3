package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Finding-a-partner/finding-a-partner/auth"
	"github.com/Finding-a-partner/finding-a-partner/gateway"
	"github.com/Finding-a-partner/finding-a-partner/infrastructure/httpapi"
	"github.com/Finding-a-partner/finding-a-partner/infrastructure/ws"
	"github.com/Finding-a-partner/finding-a-partner/internal"
	"github.com/Finding-a-partner/finding-a-partner/moderation"
	"github.com/Finding-a-partner/finding-a-partner/observability"
	"github.com/Finding-a-partner/finding-a-partner/repositories"
	"github.com/Finding-a-partner/finding-a-partner/runtime"
	"github.com/Finding-a-partner/finding-a-partner/services"
	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so that every defer (database close,
// worker shutdown) executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := internal.GetLoggerFromString(config.LogLevel)

	replacement, err := characterRune(config.ModerationCharReplacement)
	if err != nil {
		return err
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories
	chatRepository, err := repositories.NewChatRepository(db, log)
	if err != nil {
		return err
	}
	defer func() { _ = chatRepository.Close() }()
	messageRepository, err := repositories.NewMessageRepository(db, log)
	if err != nil {
		return err
	}
	defer func() { _ = messageRepository.Close() }()
	userRepository, err := repositories.NewUserRepository(db)
	if err != nil {
		return err
	}
	defer func() { _ = userRepository.Close() }()

	// 4. Services
	moderator, err := moderation.NewModerator(censoredWords(config.CensoredWords), replacement)
	if err != nil {
		return fmt.Errorf("moderation dictionary: %w", err)
	}
	tokens := auth.NewTokens(config.JWTSecret, config.AuthTokenDuration)
	chats := services.NewChatService(chatRepository, log)
	registry := runtime.NewRegistry()
	broker := runtime.NewBroker(log, registry, chats,
		config.FanoutQueueSize, config.ConnectionBufferSize)
	messages := services.NewMessageService(messageRepository, chats, broker,
		moderator, config.HistoryPageLimit, log)
	authService := services.NewAuthService(userRepository, tokens)

	// 5. Context, Signals & Supervision
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := runtime.NewSupervisor(log)
	sup.Add(broker, observability.NewMonitor(log, broker, config.MetricInterval))
	sup.Run(ctx)

	// 6. HTTP & Websocket surface
	gw := gateway.NewGateway(log, authService, messages, broker)
	live := ws.NewHandler(log, gw, ws.DefaultConfig())
	api := httpapi.NewServer(log, authService, chats, messages, tokens, live)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: api.Router()}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

func censoredWords(raw string) []string {
	var words []string
	for _, word := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(word); trimmed != "" {
			words = append(words, trimmed)
		}
	}
	return words
}

func characterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
