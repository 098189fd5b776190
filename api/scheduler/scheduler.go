package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/placachat/placa-chat-api/databases"
)

// staleUnverifiedAge is how long an unverified account may linger before
// the cleanup job removes it
const staleUnverifiedAge = 7 * 24 * time.Hour

// pendingVerificationTTL is how long an unconfirmed code stays valid
const pendingVerificationTTL = 24 * time.Hour

// Scheduler runs the periodic cleanup jobs
type Scheduler struct {
	cron *cron.Cron
	RDB  databases.RateLimitDatabase
	UDB  databases.UserDatabase
	PTDB databases.PushTokenDatabase
	PVDB databases.PendingVerificationDatabase
}

// NewScheduler creates a new scheduler instance
func NewScheduler(
	rdb databases.RateLimitDatabase,
	udb databases.UserDatabase,
	ptdb databases.PushTokenDatabase,
	pvdb databases.PendingVerificationDatabase,
) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC)),
		RDB:  rdb,
		UDB:  udb,
		PTDB: ptdb,
		PVDB: pvdb,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Expired rate counters are logically zero; drop them hourly so the
	// collection stays bounded by the active-actor count.
	if _, err := s.cron.AddFunc("@hourly", s.purgeExpiredCounters); err != nil {
		zap.S().Errorw("failed to register rate counter purge job", "error", err)
	}

	// Accounts that never confirmed their email, and codes nobody
	// confirmed, are swept daily at 3 AM UTC.
	if _, err := s.cron.AddFunc("0 3 * * *", s.purgeStaleUnverified); err != nil {
		zap.S().Errorw("failed to register stale account purge job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("cleanup scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("cleanup scheduler stopped")
}

func (s *Scheduler) purgeExpiredCounters() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deleted, err := s.RDB.DeleteExpired(ctx, time.Now())
	if err != nil {
		zap.S().Errorw("failed to purge expired rate counters", "error", err)
		return
	}
	zap.S().Infow("purged expired rate counters", "deleted", deleted)
}

func (s *Scheduler) purgeStaleUnverified() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := primitive.NewDateTimeFromTime(time.Now().Add(-staleUnverifiedAge))
	filter := bson.M{
		"emailVerified": false,
		"createdAt":     bson.M{"$lt": cutoff},
	}

	// Collect the IDs first so the users' push tokens go with them.
	stale, err := s.UDB.Find(ctx, filter)
	if err != nil {
		zap.S().Errorw("failed to find stale unverified users", "error", err)
		return
	}
	if len(stale) > 0 {
		ids := make([]string, 0, len(stale))
		for _, u := range stale {
			ids = append(ids, u.ID.Hex())
		}
		if _, err := s.PTDB.DeleteMany(ctx, bson.M{"userId": bson.M{"$in": ids}}); err != nil {
			zap.S().Warnw("failed to delete push tokens of stale users", "error", err)
		}
	}

	deletedUsers, err := s.UDB.DeleteMany(ctx, filter)
	if err != nil {
		zap.S().Errorw("failed to delete stale unverified users", "error", err)
		return
	}

	codeCutoff := primitive.NewDateTimeFromTime(time.Now().Add(-pendingVerificationTTL))
	deletedCodes, err := s.PVDB.DeleteMany(ctx, bson.M{"createdAt": bson.M{"$lt": codeCutoff}})
	if err != nil {
		zap.S().Warnw("failed to delete expired verification codes", "error", err)
	}

	zap.S().Infow("stale account purge complete",
		"usersDeleted", deletedUsers,
		"codesDeleted", deletedCodes,
	)
}
