package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/spacebobble/internal/config"
	"github.com/annel0/spacebobble/internal/scores"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps one document per (mode, name) in the leaderboard collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	ctxTimeout time.Duration
}

type leaderboardDoc struct {
	Mode  string `bson:"mode"`
	Name  string `bson:"name"`
	Score int    `bson:"score"`
}

// NewMongoStore establishes connection and ensures indexes.
func NewMongoStore(cfg config.MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "bobble"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	// ping
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	store := &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection("leaderboard"),
		ctxTimeout: 5 * time.Second,
	}
	if err := store.ensureIndexes(); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return store, nil
}

func (m *MongoStore) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "mode", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("mode_name_unique"),
	}
	_, err := m.collection.Indexes().CreateOne(ctx, idx)
	return err
}

// Load implements LeaderboardStore.
func (m *MongoStore) Load(ctx context.Context, mode Mode) (scores.Leaderboard, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	cur, err := m.collection.Find(ctx, bson.M{"mode": string(mode)})
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	defer cur.Close(ctx)

	board := scores.Leaderboard{}
	for cur.Next(ctx) {
		var doc leaderboardDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		board.Put(doc.Name, doc.Score)
	}
	return board, cur.Err()
}

// Save implements LeaderboardStore.
func (m *MongoStore) Save(ctx context.Context, mode Mode, board scores.Leaderboard) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	if _, err := m.collection.DeleteMany(ctx, bson.M{"mode": string(mode)}); err != nil {
		return fmt.Errorf("mongo delete: %w", err)
	}
	if len(board) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(board))
	for _, e := range board.Entries() {
		docs = append(docs, leaderboardDoc{Mode: string(mode), Name: e.Name, Score: e.Score})
	}
	_, err := m.collection.InsertMany(ctx, docs)
	return err
}

// Put implements LeaderboardStore.
func (m *MongoStore) Put(ctx context.Context, mode Mode, name string, score int) error {
	if err := validate(mode, name); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	filter := bson.M{"mode": string(mode), "name": name}
	// $max оставляет лучший счёт имени, при upsert просто записывает score
	update := bson.M{"$max": bson.M{"score": score}}
	_, err := m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// Reset implements LeaderboardStore.
func (m *MongoStore) Reset(ctx context.Context, mode Mode) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	_, err := m.collection.DeleteMany(ctx, bson.M{"mode": string(mode)})
	return err
}

// Close disconnects the client.
func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
