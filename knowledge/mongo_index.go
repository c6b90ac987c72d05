package knowledge

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	vectorPath          = "embedding"
	vectorNumCandidates = 50
	indexOpTimeout      = 5 * time.Second
)

// Snippet is a stored policy text and its embedding.
type Snippet struct {
	ID        string    `bson:"_id"`
	Text      string    `bson:"text"`
	Embedding []float32 `bson:"embedding"`
}

// MongoIndex queries an Atlas Vector Search index over a snippet collection.
type MongoIndex struct {
	collection *mongo.Collection
	indexName  string
}

// NewMongoIndex returns an index over collection using the named vector index.
func NewMongoIndex(collection *mongo.Collection, indexName string) *MongoIndex {
	return &MongoIndex{collection: collection, indexName: indexName}
}

func (i *MongoIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	ctx, cancel := context.WithTimeout(ctx, indexOpTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: i.indexName},
			{Key: "path", Value: vectorPath},
			{Key: "queryVector", Value: vector},
			{Key: "numCandidates", Value: vectorNumCandidates},
			{Key: "limit", Value: topK},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "text", Value: 1},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}

	cursor, err := i.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID    string  `bson:"_id"`
		Text  string  `bson:"text"`
		Score float64 `bson:"score"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode vector search results: %w", err)
	}

	matches := make([]Match, 0, len(rows))
	for _, r := range rows {
		matches = append(matches, Match{ID: r.ID, Text: r.Text, Score: r.Score})
	}
	return matches, nil
}

// Upsert stores a snippet, replacing any with the same id.
func (i *MongoIndex) Upsert(ctx context.Context, s Snippet) error {
	ctx, cancel := context.WithTimeout(ctx, indexOpTimeout)
	defer cancel()

	_, err := i.collection.ReplaceOne(ctx, bson.M{"_id": s.ID}, s, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert snippet %s: %w", s.ID, err)
	}
	return nil
}
