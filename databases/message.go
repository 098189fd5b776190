package databases

// go generate: mockery --name MessageDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/placachat/placa-chat-api/models"
)

const messageCollectionName = "messages"

// threadPageSize caps how many messages the thread detail view returns.
const threadPageSize = 200

// MessageDatabase contains the methods to use with the message database.
// Messages are append-only; there is no update or delete in normal flow.
type MessageDatabase interface {
	InsertOne(ctx context.Context, message models.Message) (InsertOneResultHelper, error)
	FindByThread(ctx context.Context, threadID string) ([]models.Message, error)
}

type messageDatabase struct {
	db DatabaseHelper
}

// NewMessageDatabase initializes a new instance of message database with the provided db connection
func NewMessageDatabase(db DatabaseHelper) MessageDatabase {
	return &messageDatabase{
		db: db,
	}
}

func (m *messageDatabase) InsertOne(ctx context.Context, message models.Message) (InsertOneResultHelper, error) {
	return m.db.Collection(messageCollectionName).InsertOne(ctx, message)
}

// FindByThread returns the thread's messages ascending by creation time,
// which is the display order.
func (m *messageDatabase) FindByThread(ctx context.Context, threadID string) ([]models.Message, error) {
	var messages []models.Message
	limit := int64(threadPageSize)
	sort := bson.M{"createdAt": 1}
	cur, err := m.db.Collection(messageCollectionName).Find(ctx, bson.M{"threadId": threadID}, &options.FindOptions{Sort: sort, Limit: &limit})
	if err != nil {
		return nil, err
	}
	if err := cur.Decode(&messages); err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}
