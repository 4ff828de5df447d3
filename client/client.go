package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Finding-a-partner/finding-a-partner/domain"
	"github.com/Finding-a-partner/finding-a-partner/infrastructure/ws"
	"github.com/Finding-a-partner/finding-a-partner/internal"
	"github.com/Finding-a-partner/finding-a-partner/projection"
	"github.com/Netflix/go-env"
	"github.com/gorilla/websocket"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:8080"`
	Token         string `env:"CHAT_TOKEN,required=true"`
	ChatID        int64  `env:"CHAT_ID,required=true"`
	LogLevel      string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the websocket client lifecycle: configuration loading,
// the live subscription and the stdin send loop.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := internal.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the live connection. The token travels as a query
	// parameter, the same way a browser client would send it.
	endpoint := url.URL{
		Scheme:   "ws",
		Host:     config.ServerAddress,
		Path:     "/ws",
		RawQuery: url.Values{"token": {config.Token}}.Encode(),
	}
	socket, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = socket.Close()
	}()

	// 4. Subscribe to the configured chat.
	subscribe := ws.ClientFrame{Type: ws.FrameSubscribe, ChatID: config.ChatID}
	if err := socket.WriteJSON(subscribe); err != nil {
		return exitRuntime, fmt.Errorf("subscribe failed: %w", err)
	}

	log.Info("Connected! Listening chat (Ctrl+C to quit)...",
		"address", config.ServerAddress, "chat_id", config.ChatID)

	// 5. Reception loop. The timeline deduplicates and orders whatever
	// the server pushes.
	timeline := projection.NewTimeline(domain.ChatID(config.ChatID))
	readErr := make(chan error, 1)
	go func() {
		for {
			var frame ws.ServerFrame
			if err := socket.ReadJSON(&frame); err != nil {
				readErr <- err
				return
			}
			switch frame.Type {
			case ws.FrameMessage:
				timeline.Consume(frame.Message.ToMessage())
				fmt.Printf("[chat %d] user %d: %s\n",
					frame.Message.ChatID, frame.Message.SenderID, frame.Message.Content)
			case ws.FrameAck:
				timeline.Consume(frame.Message.ToMessage())
			case ws.FrameError:
				fmt.Printf("[server error] %s\n", frame.Error)
			}
		}
	}()

	// 6. Send loop: one stdin line, one message.
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Disconnecting...")
			return exitOK, nil
		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("connection lost: %w", err)
		case line, open := <-lines:
			if !open {
				return exitOK, nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			frame := ws.ClientFrame{Type: ws.FrameSend, ChatID: config.ChatID, Content: line}
			if err := socket.WriteJSON(frame); err != nil {
				return exitRuntime, fmt.Errorf("send failed: %w", err)
			}
		}
	}
}
