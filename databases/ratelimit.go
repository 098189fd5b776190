package databases

// go generate: mockery --name RateLimitDatabase

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/placachat/placa-chat-api/models"
)

const rateLimitCollectionName = "ratelimits"

// ErrRateLimited signals that the actor has exhausted the fixed window for
// this key. It is a normal, user-facing rejection, not a fault.
type ErrRateLimited struct {
	Key     string
	ResetAt time.Time
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limit exhausted for %s", e.Key)
}

// RetryAfter returns how long the actor has to wait, floored at zero.
func (e *ErrRateLimited) RetryAfter(now time.Time) time.Duration {
	d := e.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// RateLimitDatabase contains the methods to use with the rate limit database
type RateLimitDatabase interface {
	// CheckAndConsume atomically consumes one unit of the fixed window
	// identified by key. It returns nil when the action is allowed and
	// *ErrRateLimited when the window is exhausted.
	CheckAndConsume(ctx context.Context, key string, limit int, window time.Duration) error
	// DeleteExpired removes counters whose window has already passed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type rateLimitDatabase struct {
	db DatabaseHelper
}

// NewRateLimitDatabase initializes a new instance of rate limit database with the provided db connection
func NewRateLimitDatabase(db DatabaseHelper) RateLimitDatabase {
	return &rateLimitDatabase{
		db: db,
	}
}

// CheckAndConsume runs the whole read-reset-increment-check cycle as one
// FindOneAndUpdate with an aggregation-pipeline update, so concurrent
// sends from the same actor serialize on the counter document and no
// increment is ever lost:
//
//   - expired or missing window: count becomes 1 and a fresh resetAt is set
//   - live window: count becomes min(count+1, limit+1)
//
// The clamp at limit+1 means exhausted attempts neither inflate the counter
// nor extend the window, matching abort-without-write semantics as far as
// any later call can observe.
func (r *rateLimitDatabase) CheckAndConsume(ctx context.Context, key string, limit int, window time.Duration) error {
	now := time.Now()
	nowDT := primitive.NewDateTimeFromTime(now)
	resetDT := primitive.NewDateTimeFromTime(now.Add(window))

	expired := bson.M{"$lte": bson.A{"$resetAt", nowDT}}
	update := bson.A{
		bson.M{"$set": bson.M{
			"count": bson.M{"$cond": bson.A{
				expired,
				1,
				bson.M{"$min": bson.A{bson.M{"$add": bson.A{"$count", 1}}, limit + 1}},
			}},
			"resetAt": bson.M{"$cond": bson.A{expired, resetDT, "$resetAt"}},
		}},
	}

	upsert := true
	after := options.After
	counter := models.RateCounter{}
	err := r.db.Collection(rateLimitCollectionName).
		FindOneAndUpdate(ctx, bson.M{"_id": key}, update, &options.FindOneAndUpdateOptions{
			Upsert:         &upsert,
			ReturnDocument: &after,
		}).
		Decode(&counter)
	if err != nil {
		return err
	}

	if counter.Count > limit {
		return &ErrRateLimited{Key: key, ResetAt: counter.ResetAt.Time()}
	}
	return nil
}

func (r *rateLimitDatabase) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.db.Collection(rateLimitCollectionName).DeleteMany(ctx,
		bson.M{"resetAt": bson.M{"$lte": primitive.NewDateTimeFromTime(now)}})
}
