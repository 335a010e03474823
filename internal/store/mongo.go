// Package store provides the MongoDB-backed Store used in production.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection    = "users"
	roomsCollection    = "rooms"
	messagesCollection = "messages"
)

// MongoConfig holds the connection settings for the Mongo store.
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	OpTimeout      time.Duration
}

func (c MongoConfig) withDefaults() MongoConfig {
	if c.URI == "" {
		c.URI = "mongodb://localhost:27017"
	}
	if c.Database == "" {
		c.Database = "scrawl"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = 5 * time.Second
	}
	return c
}

// Mongo implements Store on top of a MongoDB database.
type Mongo struct {
	client    *mongo.Client
	users     *mongo.Collection
	rooms     *mongo.Collection
	messages  *mongo.Collection
	opTimeout time.Duration
}

type roomDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Slug      string             `bson:"slug"`
	AdminID   string             `bson:"admin_id"`
	CreatedAt time.Time          `bson:"created_at"`
}

type messageDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	RoomID    string             `bson:"room_id"`
	UserID    string             `bson:"user_id"`
	Body      string             `bson:"body"`
	CreatedAt time.Time          `bson:"created_at"`
}

// NewMongo connects to MongoDB, verifies the connection with a ping, and
// ensures the unique indexes that back slug and email uniqueness. Room
// create races are resolved by the unique slug index, not by the caller.
func NewMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	cfg = cfg.withDefaults()

	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	m := &Mongo{
		client:    client,
		users:     db.Collection(usersCollection),
		rooms:     db.Collection(roomsCollection),
		messages:  db.Collection(messagesCollection),
		opTimeout: cfg.OpTimeout,
	}

	if err := m.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := m.users.Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	roomIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := m.rooms.Indexes().CreateMany(ctx, roomIndexes); err != nil {
		return fmt.Errorf("create room indexes: %w", err)
	}

	messageIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}
	if _, err := m.messages.Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return fmt.Errorf("create message indexes: %w", err)
	}

	return nil
}

// CreateUser inserts a new user with a generated UUID. A duplicate email
// maps to ErrUserExists.
func (m *Mongo) CreateUser(ctx context.Context, email, name, passwordHash string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	if _, err := m.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

// FindUserByEmail returns the user with the given email or ErrNotFound.
func (m *Mongo) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	var user User
	err := m.users.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// FindRoomBySlug returns the room with the given slug or ErrNotFound.
func (m *Mongo) FindRoomBySlug(ctx context.Context, slug string) (*Room, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	var doc roomDocument
	err := m.rooms.FindOne(ctx, bson.M{"slug": slug}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find room: %w", err)
	}

	return doc.toRoom(), nil
}

// CreateRoom inserts a room owned by adminID. When two writers race on the
// same slug the unique index rejects the loser, surfaced as ErrRoomExists.
func (m *Mongo) CreateRoom(ctx context.Context, slug, adminID string) (*Room, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	doc := roomDocument{
		Slug:      slug,
		AdminID:   adminID,
		CreatedAt: time.Now().UTC(),
	}

	result, err := m.rooms.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrRoomExists
		}
		return nil, fmt.Errorf("insert room: %w", err)
	}

	doc.ID = result.InsertedID.(primitive.ObjectID)
	return doc.toRoom(), nil
}

// AppendMessage inserts an immutable message record for the room.
func (m *Mongo) AppendMessage(ctx context.Context, roomID, userID, body string) (*Message, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	doc := messageDocument{
		RoomID:    roomID,
		UserID:    userID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	result, err := m.messages.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	doc.ID = result.InsertedID.(primitive.ObjectID)
	return doc.toMessage(), nil
}

// ListRecentMessages returns up to limit messages for the room, newest first.
func (m *Mongo) ListRecentMessages(ctx context.Context, roomID string, limit int64) ([]Message, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cursor, err := m.messages.Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []Message
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		messages = append(messages, *doc.toMessage())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect from mongodb: %w", err)
	}
	return nil
}

func (d *roomDocument) toRoom() *Room {
	return &Room{
		ID:        d.ID.Hex(),
		Slug:      d.Slug,
		AdminID:   d.AdminID,
		CreatedAt: d.CreatedAt,
	}
}

func (d *messageDocument) toMessage() *Message {
	return &Message{
		ID:        d.ID.Hex(),
		RoomID:    d.RoomID,
		UserID:    d.UserID,
		Body:      d.Body,
		CreatedAt: d.CreatedAt,
	}
}
