// Package app wires the configured backends into the booking store, the
// knowledge searcher and the per-call tool handlers.
package app

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/room4-2/auralis/booking"
	"github.com/room4-2/auralis/config"
	"github.com/room4-2/auralis/database"
	"github.com/room4-2/auralis/frontdesk"
	"github.com/room4-2/auralis/functions"
	"github.com/room4-2/auralis/knowledge"
	"github.com/room4-2/auralis/session"
)

// CustomerWriter seeds customer records.
type CustomerWriter interface {
	UpsertCustomer(ctx context.Context, c booking.Customer) error
}

// Backend holds the open connections behind the booking store.
type Backend struct {
	Store *booking.Store
	// Customers is nil when no backend is reachable.
	Customers CustomerWriter
	// Mongo is set whenever MONGO_URI connects, including for the DynamoDB
	// backend where it only hosts the knowledge index.
	Mongo *mongo.Client

	cfg    *config.Config
	logger *zap.Logger
}

// Open connects the configured backend. Connection failures are logged and
// leave the store disconnected so calls still run.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) *Backend {
	b := &Backend{cfg: cfg, logger: logger}

	if cfg.Store.MongoURI != "" {
		client, err := database.ConnectMongo(ctx, cfg.Store.MongoURI)
		if err != nil {
			logger.Warn("mongo unavailable", zap.Error(err))
		} else {
			b.Mongo = client
		}
	}

	var repo booking.Repository
	switch cfg.Store.Backend {
	case config.BackendDynamo:
		repo = b.openDynamo(ctx)
	default:
		repo = b.openMongo(ctx)
	}

	store := booking.NewStore(repo, cfg.Store.DailyCapacity, logger.Named("booking"))
	if repo != nil && cfg.Store.ApprovalQueueURL != "" {
		if n := b.openNotifier(ctx); n != nil {
			store.WithNotifier(n)
		}
	}
	if !store.Connected() {
		logger.Warn("booking store disconnected, bookings will report DB_DISCONNECTED",
			zap.String("backend", cfg.Store.Backend))
	}
	b.Store = store
	return b
}

func (b *Backend) openMongo(ctx context.Context) booking.Repository {
	if b.Mongo == nil {
		return nil
	}
	repo := booking.NewMongoRepository(b.Mongo, b.cfg.Store.MongoDatabase)
	if err := repo.EnsureIndexes(ctx); err != nil {
		b.logger.Warn("failed to ensure booking indexes", zap.Error(err))
	}
	b.Customers = repo
	b.logger.Info("booking store on mongo", zap.String("database", b.cfg.Store.MongoDatabase))
	return repo
}

func (b *Backend) openDynamo(ctx context.Context) booking.Repository {
	clients, err := database.NewAWSClients(ctx, b.cfg.Store.AWSRegion, b.cfg.Store.DynamoEndpoint)
	if err != nil {
		b.logger.Warn("aws unavailable", zap.Error(err))
		return nil
	}
	repo := booking.NewDynamoRepository(clients.DynamoDB, booking.DynamoTables{
		Bookings:  b.cfg.Store.BookingsTable,
		Pending:   b.cfg.Store.PendingTable,
		Customers: b.cfg.Store.CustomersTable,
	})
	if err := repo.Ping(ctx); err != nil {
		b.logger.Warn("dynamodb unavailable", zap.Error(err))
		return nil
	}
	b.Customers = repo
	b.logger.Info("booking store on dynamodb", zap.String("region", b.cfg.Store.AWSRegion))
	return repo
}

func (b *Backend) openNotifier(ctx context.Context) booking.Notifier {
	clients, err := database.NewAWSClients(ctx, b.cfg.Store.AWSRegion, b.cfg.Store.DynamoEndpoint)
	if err != nil {
		b.logger.Warn("approval queue disabled", zap.Error(err))
		return nil
	}
	b.logger.Info("approval notifications on sqs", zap.String("queue", b.cfg.Store.ApprovalQueueURL))
	return booking.NewSQSNotifier(clients.SQS, b.cfg.Store.ApprovalQueueURL)
}

// KnowledgeIndex returns the vector index, or nil without Mongo.
func (b *Backend) KnowledgeIndex() *knowledge.MongoIndex {
	if b.Mongo == nil {
		return nil
	}
	coll := b.Mongo.Database(b.cfg.Store.MongoDatabase).Collection(b.cfg.Knowledge.Collection)
	return knowledge.NewMongoIndex(coll, b.cfg.Knowledge.IndexName)
}

// Searcher returns the policy searcher. Without Mongo it stays
// uninitialised and answers NotInitialized.
func (b *Backend) Searcher(client *genai.Client) *knowledge.Searcher {
	logger := b.logger.Named("knowledge")
	idx := b.KnowledgeIndex()
	if idx == nil || client == nil {
		logger.Warn("knowledge base not initialised")
		return knowledge.NewSearcher(nil, nil, logger)
	}
	return knowledge.NewSearcher(knowledge.NewGeminiEmbedder(client, b.cfg.Knowledge.EmbeddingModel), idx, logger)
}

// Close disconnects Mongo.
func (b *Backend) Close(ctx context.Context) {
	if b.Mongo != nil {
		if err := b.Mongo.Disconnect(ctx); err != nil {
			b.logger.Warn("mongo disconnect failed", zap.Error(err))
		}
	}
}

// ToolHandlers builds a fresh front desk for every call.
func ToolHandlers(store *booking.Store, policies *knowledge.Searcher) session.HandlerFactory {
	return func(state *session.State, logger *zap.Logger) session.ToolHandler {
		desk := frontdesk.NewDesk(state, store, policies, logger)
		return functions.NewHandler(desk, logger)
	}
}
