package databases_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/placachat/placa-chat-api/databases"
	"github.com/placachat/placa-chat-api/databases/mocks"
	"github.com/placachat/placa-chat-api/models"
)

func rateLimitDB(t *testing.T, count int, resetAt time.Time) databases.RateLimitDatabase {
	t.Helper()

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	single := &mocks.SingleResultHelper{}

	single.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		counter := args.Get(0).(*models.RateCounter)
		counter.Count = count
		counter.ResetAt = primitive.NewDateTimeFromTime(resetAt)
	})
	conn.On("FindOneAndUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(single)
	db.On("Collection", "ratelimits").Return(conn)

	return databases.NewRateLimitDatabase(db)
}

func TestRateLimit_CheckAndConsumeAllowed(t *testing.T) {
	rdb := rateLimitDB(t, 1, time.Now().Add(10*time.Second))

	err := rdb.CheckAndConsume(context.Background(), "cooldown:user1", 1, 10*time.Second)
	assert.NoError(t, err)
}

func TestRateLimit_CheckAndConsumeAtLimit(t *testing.T) {
	rdb := rateLimitDB(t, 3, time.Now().Add(24*time.Hour))

	err := rdb.CheckAndConsume(context.Background(), "newThread:user1", 3, 24*time.Hour)
	assert.NoError(t, err)
}

func TestRateLimit_CheckAndConsumeExhausted(t *testing.T) {
	resetAt := time.Now().Add(8 * time.Second)
	rdb := rateLimitDB(t, 2, resetAt)

	err := rdb.CheckAndConsume(context.Background(), "cooldown:user1", 1, 10*time.Second)

	var rl *databases.ErrRateLimited
	assert.ErrorAs(t, err, &rl)
	assert.Equal(t, "cooldown:user1", rl.Key)
	assert.WithinDuration(t, resetAt, rl.ResetAt, time.Second)
	assert.Greater(t, rl.RetryAfter(time.Now()), time.Duration(0))
}

func TestRateLimit_RetryAfterFloorsAtZero(t *testing.T) {
	rl := &databases.ErrRateLimited{Key: "msgDay:user1", ResetAt: time.Now().Add(-time.Minute)}
	assert.Equal(t, time.Duration(0), rl.RetryAfter(time.Now()))
}

func TestRateLimit_DeleteExpired(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}

	conn.On("DeleteMany", mock.Anything, mock.Anything).Return(int64(4), nil)
	db.On("Collection", "ratelimits").Return(conn)

	rdb := databases.NewRateLimitDatabase(db)
	deleted, err := rdb.DeleteExpired(context.Background(), time.Now())
	assert.NoError(t, err)
	assert.Equal(t, int64(4), deleted)
}
