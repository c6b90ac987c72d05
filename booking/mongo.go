package booking

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names in the dealership database.
const (
	CollectionCustomers = "customers"
	CollectionBookings  = "bookings"
	CollectionPending   = "pending_requests"
)

const mongoOpTimeout = 5 * time.Second

// MongoRepository stores bookings in MongoDB. Confirmed bookings use the
// phone_date key as _id, so the primary index enforces uniqueness.
type MongoRepository struct {
	client    *mongo.Client
	customers *mongo.Collection
	bookings  *mongo.Collection
	pending   *mongo.Collection
}

// NewMongoRepository binds the repository to database dbName.
func NewMongoRepository(client *mongo.Client, dbName string) *MongoRepository {
	db := client.Database(dbName)
	return &MongoRepository{
		client:    client,
		customers: db.Collection(CollectionCustomers),
		bookings:  db.Collection(CollectionBookings),
		pending:   db.Collection(CollectionPending),
	}
}

// EnsureIndexes creates the lookup indexes used by the call path.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	if _, err := r.bookings.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: 1}},
		Options: options.Index().SetName("date_1"),
	}); err != nil {
		return fmt.Errorf("create bookings date index: %w", err)
	}

	if _, err := r.customers.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "phone", Value: 1}},
		Options: options.Index().SetName("phone_1").SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create customers phone index: %w", err)
	}
	return nil
}

func (r *MongoRepository) CountConfirmed(ctx context.Context, date string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	n, err := r.bookings.CountDocuments(ctx, bson.M{"date": date})
	if err != nil {
		return 0, fmt.Errorf("count bookings: %w", err)
	}
	return int(n), nil
}

func (r *MongoRepository) InsertConfirmed(ctx context.Context, b ConfirmedBooking) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	if _, err := r.bookings.InsertOne(ctx, b); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrBookingExists
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *MongoRepository) InsertPending(ctx context.Context, req BookingRequest) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	if _, err := r.pending.InsertOne(ctx, req); err != nil {
		return fmt.Errorf("insert pending request: %w", err)
	}
	return nil
}

// FindCustomer matches the identifier against phone exactly or against the
// full name, case-insensitively.
func (r *MongoRepository) FindCustomer(ctx context.Context, identifier string) (*Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	filter := bson.M{
		"$or": bson.A{
			bson.M{"phone": identifier},
			bson.M{"name": primitive.Regex{
				Pattern: "^" + regexp.QuoteMeta(identifier) + "$",
				Options: "i",
			}},
		},
	}

	var c Customer
	if err := r.customers.FindOne(ctx, filter).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find customer: %w", err)
	}
	return &c, nil
}

// UpsertCustomer writes a customer keyed on phone.
func (r *MongoRepository) UpsertCustomer(ctx context.Context, c Customer) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	_, err := r.customers.ReplaceOne(ctx, bson.M{"phone": c.Phone}, c, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert customer %s: %w", c.Phone, err)
	}
	return nil
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()
	return r.client.Ping(ctx, readpref.Primary())
}
