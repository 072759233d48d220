// Package main is a terminal chat client. It speaks the raw text frame
// protocol of the /ws/chat endpoint: each line typed becomes one user
// message, each inbound frame is printed as one assistant reply.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/capitalize-ai/chat-session-engine/internal/config"
	"github.com/capitalize-ai/chat-session-engine/internal/model"
	"github.com/capitalize-ai/chat-session-engine/internal/session"
	"github.com/capitalize-ai/chat-session-engine/internal/store"
	"github.com/capitalize-ai/chat-session-engine/internal/transport"
	"github.com/capitalize-ai/chat-session-engine/pkg/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The client allocates the conversation id; the server creates the
	// conversation on first contact.
	st := store.New()
	convID := st.CreateConversation("New Chat")

	header := http.Header{}
	if cfg.AuthToken != "" {
		header.Set("Authorization", "Bearer "+cfg.AuthToken)
	}

	conn := transport.New(transport.Config{
		Endpoint:         cfg.ChatEndpoint + "/" + convID,
		Header:           header,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}, log)

	reconnector := session.NewReconnector(conn, session.ReconnectPolicy{
		MaxAttempts:     cfg.ReconnectMaxAttempts,
		InitialInterval: cfg.ReconnectInitialInterval,
		MaxInterval:     cfg.ReconnectMaxInterval,
	}, log)

	ctrl := session.New(session.Config{
		ResponseTimeout: cfg.ResponseTimeout,
		OnAssistantMessage: func(msg model.Message) {
			fmt.Printf("\nassistant> %s\n> ", msg.Content)
		},
		OnStateChange: func(state transport.State) {
			fmt.Printf("\n[%s]\n> ", state)
			reconnector.Observe(state)
		},
	}, st, conn, session.AuthorizerFunc(func(ctx context.Context) (bool, error) {
		return cfg.AuthToken != "", nil
	}), log)

	if err := ctrl.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start session: %v\n", err)
		os.Exit(1)
	}
	defer ctrl.Close()

	go ctrl.Run(ctx)
	go reconnector.Run(ctx)

	fmt.Printf("connecting to %s (conversation %s)\n", cfg.ChatEndpoint, convID)
	fmt.Print("> ")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nbye")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				fmt.Print("> ")
				continue
			}
			if err := ctrl.SubmitUserText(text); err != nil {
				fmt.Printf("error: %v\n", err)
			}
			fmt.Print("> ")
		}
	}
}
