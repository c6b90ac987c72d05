// Command textcall talks to the front desk over text from the terminal,
// using the same actions and backends as a voice call.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/room4-2/auralis/app"
	"github.com/room4-2/auralis/config"
	"github.com/room4-2/auralis/frontdesk"
	"github.com/room4-2/auralis/functions"
	"github.com/room4-2/auralis/gemini"
	"github.com/room4-2/auralis/logging"
	"github.com/room4-2/auralis/session"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// keep the terminal readable: only warnings unless LOG_LEVEL says otherwise
	level := cfg.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	logger, err := logging.New(false, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		logger.Fatal("failed to create gemini client", zap.Error(err))
	}

	backend := app.Open(ctx, cfg, logger)
	defer backend.Close(ctx)

	state := session.NewState("textcall")
	desk := frontdesk.NewDesk(state, backend.Store, backend.Searcher(client), logger)
	chat := gemini.NewChat(client.Models, cfg.ChatModel, session.SystemPrompt(time.Now()),
		functions.Tools(), functions.NewHandler(desk, logger), logger)

	fmt.Printf("Agent: %s\n", session.Greeting)

	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !in.Scan() {
			break
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		turnCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		reply, err := chat.Send(turnCtx, line)
		cancel()
		if err != nil {
			if errors.Is(err, gemini.ErrTooManyToolRounds) {
				fmt.Println("Agent: (no reply after several lookups, please rephrase)")
				continue
			}
			logger.Error("chat failed", zap.Error(err))
			continue
		}
		fmt.Printf("Agent: %s\n", reply)

		if c, ok := state.Customer(); ok && c.Identified {
			logger.Debug("caller identified", zap.String("name", c.Name))
		}
	}
}
