package booking

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const mongoTestDB = "auralis"

func newMongoMock(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func countResponse(n int32) bson.D {
	return mtest.CreateCursorResponse(0, mongoTestDB+"."+CollectionBookings, mtest.FirstBatch, bson.D{{Key: "n", Value: n}})
}

func duplicateKeyResponse() bson.D {
	return mtest.CreateWriteErrorsResponse(mtest.WriteError{
		Index:   0,
		Code:    11000,
		Message: "E11000 duplicate key error collection: auralis.bookings index: _id_",
	})
}

func TestMongoInsertConfirmed(t *testing.T) {
	mt := newMongoMock(t)

	mt.Run("inserted", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, mongoTestDB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		b := ConfirmedBooking{ID: BookingKey("9876543210", "2025-04-01"), Phone: "9876543210", Date: "2025-04-01", CreatedAt: time.Now()}
		if err := repo.InsertConfirmed(context.Background(), b); err != nil {
			mt.Fatalf("InsertConfirmed error: %v", err)
		}
	})

	mt.Run("duplicate key", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, mongoTestDB)
		mt.AddMockResponses(duplicateKeyResponse())

		b := ConfirmedBooking{ID: BookingKey("9876543210", "2025-04-01"), Phone: "9876543210", Date: "2025-04-01"}
		if err := repo.InsertConfirmed(context.Background(), b); !errors.Is(err, ErrBookingExists) {
			mt.Fatalf("expected ErrBookingExists, got %v", err)
		}
	})

	mt.Run("other write error", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, mongoTestDB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11600,
			Message: "interrupted at shutdown",
			Name:    "InterruptedAtShutdown",
		}))

		err := repo.InsertConfirmed(context.Background(), ConfirmedBooking{ID: "x_2025-04-01"})
		if err == nil || errors.Is(err, ErrBookingExists) {
			mt.Fatalf("expected a plain write error, got %v", err)
		}
	})
}

func TestMongoStoreDuplicateIsBookingExists(t *testing.T) {
	mt := newMongoMock(t)

	mt.Run("through store", func(mt *mtest.T) {
		s := NewStore(NewMongoRepository(mt.Client, mongoTestDB), DefaultCapacity, nil)
		mt.AddMockResponses(countResponse(1), duplicateKeyResponse())

		if _, err := s.CreateConfirmedBooking(context.Background(), "9876543210", "2025-04-01"); !errors.Is(err, ErrBookingExists) {
			mt.Fatalf("expected ErrBookingExists, got %v", err)
		}
	})

	mt.Run("full date", func(mt *mtest.T) {
		s := NewStore(NewMongoRepository(mt.Client, mongoTestDB), DefaultCapacity, nil)
		mt.AddMockResponses(countResponse(2))

		if _, err := s.CreateConfirmedBooking(context.Background(), "9876543212", "2025-04-01"); !errors.Is(err, ErrFullyBooked) {
			mt.Fatalf("expected ErrFullyBooked, got %v", err)
		}
	})
}

func TestMongoCountConfirmed(t *testing.T) {
	mt := newMongoMock(t)

	mt.Run("count", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, mongoTestDB)
		mt.AddMockResponses(countResponse(2))

		n, err := repo.CountConfirmed(context.Background(), "2025-04-01")
		if err != nil {
			mt.Fatalf("CountConfirmed error: %v", err)
		}
		if n != 2 {
			mt.Fatalf("count = %d, want 2", n)
		}
	})
}

func TestMongoFindCustomer(t *testing.T) {
	mt := newMongoMock(t)
	ns := mongoTestDB + "." + CollectionCustomers

	mt.Run("found", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, mongoTestDB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "name", Value: "Meredith Grey"},
			{Key: "phone", Value: "9876543210"},
			{Key: "vehicle", Value: "Rolls-Royce Phantom"},
			{Key: "vip_status", Value: true},
		}))

		c, err := repo.FindCustomer(context.Background(), "meredith grey")
		if err != nil {
			mt.Fatalf("FindCustomer error: %v", err)
		}
		if c.Phone != "9876543210" || c.Vehicle != "Rolls-Royce Phantom" || !c.VIP {
			mt.Fatalf("unexpected customer %+v", c)
		}
	})

	mt.Run("empty cursor", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, mongoTestDB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		if _, err := repo.FindCustomer(context.Background(), "Owen Hunt"); !errors.Is(err, ErrNotFound) {
			mt.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	mt.Run("name is matched literally", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, mongoTestDB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, _ = repo.FindCustomer(context.Background(), "a.b")

		started := mt.GetStartedEvent()
		if started == nil || started.CommandName != "find" {
			mt.Fatalf("expected a find command, got %+v", started)
		}
		clauses, err := started.Command.Lookup("filter", "$or").Array().Values()
		if err != nil || len(clauses) != 2 {
			mt.Fatalf("unexpected $or clauses: %v, %v", clauses, err)
		}
		if phone := clauses[0].Document().Lookup("phone").StringValue(); phone != "a.b" {
			mt.Fatalf("phone clause = %q", phone)
		}

		pattern, opts := clauses[1].Document().Lookup("name").Regex()
		if opts != "i" {
			mt.Fatalf("expected case-insensitive regex, got options %q", opts)
		}
		re := regexp.MustCompile("(?i)" + pattern)
		if !re.MatchString("A.B") {
			mt.Fatalf("pattern %q should match the identifier itself", pattern)
		}
		if re.MatchString("axb") || re.MatchString("xa.bx") {
			mt.Fatalf("pattern %q treats the identifier as a regex", pattern)
		}
	})
}
