// Command seed loads the demo customers into the booking backend and embeds
// the dealership policies into the knowledge index.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/room4-2/auralis/app"
	"github.com/room4-2/auralis/booking"
	"github.com/room4-2/auralis/config"
	"github.com/room4-2/auralis/gemini"
	"github.com/room4-2/auralis/knowledge"
	"github.com/room4-2/auralis/logging"
)

var demoCustomers = []booking.Customer{
	{
		Name:        "Christina Yang",
		Phone:       "9876543213",
		Email:       "christina@grey-sloan.com",
		Vehicle:     "Rolls-Royce Ghost",
		VehicleNo:   "KA-01-EQ-9999",
		LastService: "2025-01-15",
		VIP:         true,
	},
	{
		Name:        "Meredith Grey",
		Phone:       "9876543210",
		Email:       "meredith@grey-sloan.com",
		Vehicle:     "Rolls-Royce Phantom",
		VehicleNo:   "DL-02-AB-0001",
		LastService: "2024-11-20",
		VIP:         true,
	},
	{
		Name:        "Derek Sheperd",
		Phone:       "9876543211",
		Email:       "derek@grey-sloan.com",
		Vehicle:     "Rolls-Royce Spectre",
		VehicleNo:   "DL-02-AB-0002",
		LastService: "2024-11-20",
		VIP:         true,
	},
	{
		Name:        "Mark Sloan",
		Phone:       "9876543212",
		Email:       "mark@grey-sloan.com",
		Vehicle:     "Rolls-Royce Cullinan",
		VehicleNo:   "DL-02-AB-0002",
		LastService: "2024-11-20",
		VIP:         true,
	},
}

func main() {
	skipCustomers := flag.Bool("skip-customers", false, "don't seed customers")
	skipPolicies := flag.Bool("skip-policies", false, "don't seed policy snippets")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	backend := app.Open(ctx, cfg, logger)
	defer backend.Close(context.Background())

	if !*skipCustomers {
		if backend.Customers == nil {
			logger.Fatal("no booking backend reachable", zap.String("backend", cfg.Store.Backend))
		}
		for _, c := range demoCustomers {
			if err := backend.Customers.UpsertCustomer(ctx, c); err != nil {
				logger.Fatal("failed to seed customer", zap.String("phone", c.Phone), zap.Error(err))
			}
		}
		logger.Info("customers seeded", zap.Int("count", len(demoCustomers)), zap.String("backend", cfg.Store.Backend))
	}

	if !*skipPolicies {
		idx := backend.KnowledgeIndex()
		if idx == nil {
			logger.Fatal("knowledge index needs MONGO_URI")
		}
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			logger.Fatal("failed to create gemini client", zap.Error(err))
		}
		n, err := knowledge.Seed(ctx, knowledge.NewGeminiEmbedder(client, cfg.Knowledge.EmbeddingModel), idx, knowledge.DefaultPolicies)
		if err != nil {
			logger.Fatal("failed to seed policies", zap.Int("written", n), zap.Error(err))
		}
		logger.Info("policies seeded", zap.Int("count", n),
			zap.String("collection", cfg.Knowledge.Collection),
			zap.String("index", cfg.Knowledge.IndexName))
	}
}
