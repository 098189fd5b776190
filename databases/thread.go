package databases

// go generate: mockery --name ThreadDatabase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/placachat/placa-chat-api/models"
)

const threadCollectionName = "threads"

// identityPairScanLimit caps how many candidate threads the identity-pair
// resolver scans for the owner participant.
const identityPairScanLimit = 20

// ThreadDatabase contains the methods to use with the thread database.
//
// Both resolve methods are idempotent with respect to the unordered
// participant pair: repeated calls return the same thread. The plate-pair
// variant is race-free because the thread ID is derived from the pair and
// doubles as the lock; the identity-pair variant is search-then-create and
// can, under simultaneous first contact from both sides, create a duplicate
// thread. That duplicate is harmless (both threads keep working) and
// accepted rather than papered over with a false exclusivity claim.
type ThreadDatabase interface {
	FindByID(ctx context.Context, threadID string) (*models.Thread, error)
	// FindByParticipant returns every thread the user takes part in,
	// newest activity first. Plate may be empty; when set it also matches
	// plate-pair threads addressed to that plate.
	FindByParticipant(ctx context.Context, userID, plate string) ([]models.Thread, error)
	ResolvePlatePair(ctx context.Context, plateA, plateB string) (*models.Thread, error)
	ResolveIdentityPair(ctx context.Context, plate, senderID, ownerID string) (*models.Thread, bool, error)
	TouchLastMessage(ctx context.Context, threadID, lastFrom, lastText string) error
}

type threadDatabase struct {
	db DatabaseHelper
}

// NewThreadDatabase initializes a new instance of thread database with the provided db connection
func NewThreadDatabase(db DatabaseHelper) ThreadDatabase {
	return &threadDatabase{
		db: db,
	}
}

// PlatePairID derives the deterministic thread ID for two plates: the
// lexicographically smaller plate first, joined with "__". Both orderings
// of the same pair land on the same document.
func PlatePairID(plateA, plateB string) string {
	if plateB < plateA {
		plateA, plateB = plateB, plateA
	}
	return plateA + "__" + plateB
}

func (t *threadDatabase) FindByID(ctx context.Context, threadID string) (*models.Thread, error) {
	thread := &models.Thread{}
	err := t.db.Collection(threadCollectionName).FindOne(ctx, bson.M{"_id": threadID}).Decode(thread)
	if err != nil {
		return nil, err
	}
	return thread, nil
}

func (t *threadDatabase) FindByParticipant(ctx context.Context, userID, plate string) ([]models.Thread, error) {
	var threads []models.Thread
	or := []bson.M{{"participants": userID}}
	if plate != "" {
		or = append(or, bson.M{"participantPlates": plate})
	}
	sort := bson.M{"lastMessageAt": -1}
	cur, err := t.db.Collection(threadCollectionName).Find(ctx, bson.M{"$or": or}, &options.FindOptions{Sort: sort})
	if err != nil {
		return nil, err
	}
	if err := cur.Decode(&threads); err != nil {
		return nil, err
	}
	return threads, nil
}

// ResolvePlatePair finds or creates the canonical thread between two plates.
// A single upsert with $setOnInsert does the create-if-absent atomically;
// concurrent first contacts race on the same _id and the loser's write is a
// benign no-op.
func (t *threadDatabase) ResolvePlatePair(ctx context.Context, plateA, plateB string) (*models.Thread, error) {
	threadID := PlatePairID(plateA, plateB)
	now := primitive.NewDateTimeFromTime(time.Now())

	upsert := true
	_, err := t.db.Collection(threadCollectionName).UpdateOne(ctx,
		bson.M{"_id": threadID},
		bson.M{
			"$setOnInsert": bson.M{
				"participantPlates": []string{min(plateA, plateB), max(plateA, plateB)},
				"status":            models.ThreadStatusOpen,
				"createdAt":         now,
			},
			"$set": bson.M{"lastMessageAt": now},
		},
		&options.UpdateOptions{Upsert: &upsert},
	)
	if err != nil {
		return nil, err
	}
	return t.FindByID(ctx, threadID)
}

// ResolveIdentityPair finds the thread about plate between sender and owner,
// or creates one. The bool result reports whether a new thread was created.
func (t *threadDatabase) ResolveIdentityPair(ctx context.Context, plate, senderID, ownerID string) (*models.Thread, bool, error) {
	limit := int64(identityPairScanLimit)
	cur, err := t.db.Collection(threadCollectionName).Find(ctx,
		bson.M{"plate": plate, "participants": senderID},
		&options.FindOptions{Limit: &limit},
	)
	if err != nil {
		return nil, false, err
	}
	var candidates []models.Thread
	if err := cur.Decode(&candidates); err != nil {
		return nil, false, err
	}
	for i := range candidates {
		if candidates[i].HasParticipant(ownerID) {
			return &candidates[i], false, nil
		}
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	thread := models.Thread{
		ID:            uuid.New().String(),
		Plate:         plate,
		Participants:  []string{senderID, ownerID},
		Status:        models.ThreadStatusOpen,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	if _, err := t.db.Collection(threadCollectionName).InsertOne(ctx, thread); err != nil {
		return nil, false, err
	}
	return &thread, true, nil
}

// TouchLastMessage bumps the thread summary after a message write. This is
// a separate write from the message insert; if it fails the preview goes
// stale but the message itself is already durable.
func (t *threadDatabase) TouchLastMessage(ctx context.Context, threadID, lastFrom, lastText string) error {
	_, err := t.db.Collection(threadCollectionName).UpdateOne(ctx,
		bson.M{"_id": threadID},
		bson.M{"$set": bson.M{
			"lastMessageAt": primitive.NewDateTimeFromTime(time.Now()),
			"lastFrom":      lastFrom,
			"lastText":      lastText,
		}},
	)
	return err
}
