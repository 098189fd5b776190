package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/placachat/placa-chat-api/api"
	"github.com/placachat/placa-chat-api/config"
	"github.com/placachat/placa-chat-api/databases"
	"github.com/placachat/placa-chat-api/models"
	"github.com/placachat/placa-chat-api/plate"
	"github.com/placachat/placa-chat-api/policy"
)

// Rate limit actions. The counter key is "<action>:<actor>".
const (
	limitActionNewThread = "newThread"
	limitActionMsgDay    = "msgDay"
	limitActionCooldown  = "cooldown"
)

// Chat dispatches mediated messages between a sender and a vehicle owner.
// Every send runs the same pipeline: content policy, rate limits, recipient
// eligibility, thread resolution, message persist, best-effort notify.
type Chat struct {
	TDB    databases.ThreadDatabase
	MDB    databases.MessageDatabase
	VDB    databases.VehicleDatabase
	UDB    databases.UserDatabase
	RDB    databases.RateLimitDatabase
	PTDB   databases.PushTokenDatabase
	Limits config.LimitPolicies
}

type openThreadRequest struct {
	Plate string `json:"plate"`
	Text  string `json:"text"`
}

type sendMessageRequest struct {
	ThreadID string `json:"threadId"`
	Text     string `json:"text"`
}

type plateSendRequest struct {
	FromPlate string `json:"fromPlate"`
	ToPlate   string `json:"toPlate"`
	Text      string `json:"text"`
}

// OpenThreadHandler opens (or finds) the conversation between the caller
// and the owner of the given plate, and delivers the first message
func (c Chat) OpenThreadHandler(w http.ResponseWriter, r *http.Request) {
	senderID := api.UserID(r.Context())

	var req openThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorReason("failed to decode request body", http.StatusBadRequest, models.ReasonInvalidInput, w, err)
		return
	}

	text, ok := c.validateText(w, req.Text)
	if !ok {
		return
	}
	canonical, err := plate.Normalize(req.Plate)
	if err != nil {
		config.ErrorReason("invalid plate", http.StatusBadRequest, models.ReasonInvalidInput, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if !c.checkLimit(ctx, w, limitActionCooldown, senderID, c.Limits.Cooldown) {
		return
	}
	if !c.checkLimit(ctx, w, limitActionNewThread, senderID, c.Limits.NewThread) {
		return
	}

	vehicle, ok := c.eligibleVehicle(ctx, w, canonical)
	if !ok {
		return
	}
	if vehicle.OwnerID == senderID {
		config.ErrorReason("cannot message your own plate", http.StatusPreconditionFailed, models.ReasonPreconditionFailed,
			w, fmt.Errorf("sender %s owns plate %s", senderID, canonical))
		return
	}

	thread, created, err := c.TDB.ResolveIdentityPair(ctx, canonical, senderID, vehicle.OwnerID)
	if err != nil {
		config.ErrorStatus("failed to resolve thread", http.StatusInternalServerError, w, err)
		return
	}
	zap.S().Debugw("thread resolved", "threadId", thread.ID, "created", created)

	msg, ok := c.persistMessage(ctx, w, models.Message{
		ThreadID: thread.ID,
		FromID:   senderID,
		Text:     text,
	})
	if !ok {
		return
	}
	go c.notifyNewMessage(vehicle.OwnerID, msg)

	writeJSON(w, http.StatusCreated, models.SendMessageResponse{ThreadID: thread.ID, MessageID: msg.ID})
}

// SendMessageHandler appends a follow-up message to an existing thread
func (c Chat) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	senderID := api.UserID(r.Context())

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorReason("failed to decode request body", http.StatusBadRequest, models.ReasonInvalidInput, w, err)
		return
	}

	text, ok := c.validateText(w, req.Text)
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if !c.checkLimit(ctx, w, limitActionCooldown, senderID, c.Limits.Cooldown) {
		return
	}
	if !c.checkLimit(ctx, w, limitActionMsgDay, senderID, c.Limits.MessagesPerDay) {
		return
	}

	thread, err := c.TDB.FindByID(ctx, req.ThreadID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorReason("thread not found", http.StatusNotFound, models.ReasonNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get thread", http.StatusInternalServerError, w, err)
		return
	}

	msg := models.Message{ThreadID: thread.ID, Text: text}
	var recipient string

	switch {
	case thread.HasParticipant(senderID):
		msg.FromID = senderID
		recipient = thread.Counterpart(senderID)
	case len(thread.ParticipantPlates) == 2:
		// plate-pair thread: the caller speaks as their claimed plate
		user, uerr := userByHexID(ctx, c.UDB, senderID)
		if uerr != nil || user.MyPlate == "" || !thread.HasPlate(user.MyPlate) {
			config.ErrorReason("not a participant of this thread", http.StatusForbidden, models.ReasonForbidden,
				w, fmt.Errorf("user %s is not part of thread %s", senderID, thread.ID))
			return
		}
		msg.FromPlate = user.MyPlate
		recipient = c.ownerOfCounterpartPlate(ctx, *thread, user.MyPlate)
	default:
		config.ErrorReason("not a participant of this thread", http.StatusForbidden, models.ReasonForbidden,
			w, fmt.Errorf("user %s is not part of thread %s", senderID, thread.ID))
		return
	}

	msg, ok = c.persistMessage(ctx, w, msg)
	if !ok {
		return
	}
	if recipient != "" {
		go c.notifyNewMessage(recipient, msg)
	}

	writeJSON(w, http.StatusCreated, models.SendMessageResponse{ThreadID: thread.ID, MessageID: msg.ID})
}

// PlateSendHandler delivers a message from the caller's claimed plate to
// another plate, resolving the deterministic plate-pair thread
func (c Chat) PlateSendHandler(w http.ResponseWriter, r *http.Request) {
	senderID := api.UserID(r.Context())

	var req plateSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorReason("failed to decode request body", http.StatusBadRequest, models.ReasonInvalidInput, w, err)
		return
	}

	text, ok := c.validateText(w, req.Text)
	if !ok {
		return
	}
	fromPlate, err := plate.Normalize(req.FromPlate)
	if err != nil {
		config.ErrorReason("invalid sender plate", http.StatusBadRequest, models.ReasonInvalidInput, w, err)
		return
	}
	toPlate, err := plate.Normalize(req.ToPlate)
	if err != nil {
		config.ErrorReason("invalid recipient plate", http.StatusBadRequest, models.ReasonInvalidInput, w, err)
		return
	}
	if fromPlate == toPlate {
		config.ErrorReason("cannot message your own plate", http.StatusBadRequest, models.ReasonInvalidInput,
			w, fmt.Errorf("sender and recipient plate are both %s", fromPlate))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	// Ownership is authorization, so it is checked before any limit token
	// is spent.
	own, err := c.VDB.FindByPlate(ctx, fromPlate)
	if err != nil || own.OwnerID != senderID {
		config.ErrorReason("sender does not own this plate", http.StatusForbidden, models.ReasonForbidden,
			w, fmt.Errorf("user %s does not own plate %s", senderID, fromPlate))
		return
	}

	if !c.checkLimit(ctx, w, limitActionCooldown, senderID, c.Limits.Cooldown) {
		return
	}
	if !c.checkLimit(ctx, w, limitActionMsgDay, senderID, c.Limits.MessagesPerDay) {
		return
	}

	recipientVehicle, ok := c.eligibleVehicle(ctx, w, toPlate)
	if !ok {
		return
	}

	thread, err := c.TDB.ResolvePlatePair(ctx, fromPlate, toPlate)
	if err != nil {
		config.ErrorStatus("failed to resolve thread", http.StatusInternalServerError, w, err)
		return
	}

	msg, ok := c.persistMessage(ctx, w, models.Message{
		ThreadID:  thread.ID,
		FromPlate: fromPlate,
		Text:      text,
	})
	if !ok {
		return
	}
	if recipientVehicle.OwnerID != "" {
		go c.notifyNewMessage(recipientVehicle.OwnerID, msg)
	}

	writeJSON(w, http.StatusCreated, models.SendMessageResponse{ThreadID: thread.ID, MessageID: msg.ID})
}

// ListThreadsHandler returns the caller's threads, newest activity first
func (c Chat) ListThreadsHandler(w http.ResponseWriter, r *http.Request) {
	senderID := api.UserID(r.Context())

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	myPlate := ""
	if user, err := userByHexID(ctx, c.UDB, senderID); err == nil {
		myPlate = user.MyPlate
	}

	threads, err := c.TDB.FindByParticipant(ctx, senderID, myPlate)
	if err != nil {
		config.ErrorStatus("failed to get threads", http.StatusInternalServerError, w, err)
		return
	}
	if threads == nil {
		threads = []models.Thread{}
	}
	writeJSON(w, http.StatusOK, threads)
}

// ThreadDetailHandler returns a thread plus its messages in display order.
// Only the two participants may read it.
func (c Chat) ThreadDetailHandler(w http.ResponseWriter, r *http.Request) {
	senderID := api.UserID(r.Context())
	threadID := mux.Vars(r)["thread_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	thread, err := c.TDB.FindByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorReason("thread not found", http.StatusNotFound, models.ReasonNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get thread", http.StatusInternalServerError, w, err)
		return
	}

	allowed := thread.HasParticipant(senderID)
	if !allowed && len(thread.ParticipantPlates) == 2 {
		if user, uerr := userByHexID(ctx, c.UDB, senderID); uerr == nil && user.MyPlate != "" {
			allowed = thread.HasPlate(user.MyPlate)
		}
	}
	if !allowed {
		config.ErrorReason("not a participant of this thread", http.StatusForbidden, models.ReasonForbidden,
			w, fmt.Errorf("user %s is not part of thread %s", senderID, threadID))
		return
	}

	messages, err := c.MDB.FindByThread(ctx, thread.ID)
	if err != nil {
		config.ErrorStatus("failed to get messages", http.StatusInternalServerError, w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ThreadWithMessages{Thread: *thread, Messages: messages})
}

// validateText runs the content policy and writes the rejection when the
// text fails. Empty and oversized bodies are malformed input; smuggled
// links and phone numbers violate the mediation policy.
func (c Chat) validateText(w http.ResponseWriter, text string) (string, bool) {
	clean, err := policy.Validate(text)
	if err == nil {
		return clean, true
	}
	switch {
	case errors.Is(err, policy.ErrEmpty), errors.Is(err, policy.ErrTooLong):
		config.ErrorReason("invalid message text", http.StatusBadRequest, models.ReasonInvalidInput, w, err)
	default:
		config.ErrorReason("message text violates content policy", http.StatusPreconditionFailed, models.ReasonPolicyViolation, w, err)
	}
	return "", false
}

// checkLimit consumes one unit of the actor's window and writes the 429
// (with a Retry-After hint) when exhausted
func (c Chat) checkLimit(ctx context.Context, w http.ResponseWriter, action, actor string, p config.LimitPolicy) bool {
	err := c.RDB.CheckAndConsume(ctx, action+":"+actor, p.Limit, p.Window)
	if err == nil {
		return true
	}
	var rl *databases.ErrRateLimited
	if errors.As(err, &rl) {
		retryAfter := int(rl.RetryAfter(time.Now())/time.Second) + 1
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		config.ErrorReason("rate limit exceeded", http.StatusTooManyRequests, models.ReasonRateLimited, w, err)
		return false
	}
	config.ErrorStatus("failed to check rate limit", http.StatusInternalServerError, w, err)
	return false
}

// eligibleVehicle loads the recipient vehicle and enforces the contact
// preconditions: the plate must be registered, opted in, and claimed
func (c Chat) eligibleVehicle(ctx context.Context, w http.ResponseWriter, canonical string) (*models.Vehicle, bool) {
	vehicle, err := c.VDB.FindByPlate(ctx, canonical)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorReason("no vehicle registered for this plate", http.StatusNotFound, models.ReasonNotFound, w, err)
			return nil, false
		}
		config.ErrorStatus("failed to get vehicle", http.StatusInternalServerError, w, err)
		return nil, false
	}
	if !vehicle.OptIn {
		config.ErrorReason("vehicle owner has not opted in", http.StatusPreconditionFailed, models.ReasonPreconditionFailed,
			w, fmt.Errorf("plate %s is not opted in", canonical))
		return nil, false
	}
	if vehicle.OwnerID == "" {
		config.ErrorReason("plate has not been claimed", http.StatusPreconditionFailed, models.ReasonPreconditionFailed,
			w, fmt.Errorf("plate %s has no owner", canonical))
		return nil, false
	}
	return vehicle, true
}

func (c Chat) persistMessage(ctx context.Context, w http.ResponseWriter, msg models.Message) (models.Message, bool) {
	msg.ID = uuid.New().String()
	msg.CreatedAt = primitive.NewDateTimeFromTime(time.Now())

	if _, err := c.MDB.InsertOne(ctx, msg); err != nil {
		config.ErrorStatus("failed to persist message", http.StatusInternalServerError, w, err)
		return msg, false
	}

	from := msg.FromID
	if from == "" {
		from = msg.FromPlate
	}
	if err := c.TDB.TouchLastMessage(ctx, msg.ThreadID, from, msg.Text); err != nil {
		// the message is durable; a stale preview is not worth failing the send
		zap.S().Warnw("failed to update thread preview", "threadId", msg.ThreadID, "error", err)
	}
	return msg, true
}

// ownerOfCounterpartPlate resolves the user to notify on a plate-pair
// thread. Empty when the other plate is unclaimed.
func (c Chat) ownerOfCounterpartPlate(ctx context.Context, thread models.Thread, myPlate string) string {
	for _, p := range thread.ParticipantPlates {
		if p == myPlate {
			continue
		}
		vehicle, err := c.VDB.FindByPlate(ctx, p)
		if err != nil {
			return ""
		}
		return vehicle.OwnerID
	}
	return ""
}

// notifyNewMessage fans the event out to the recipient's websocket session
// and Expo push tokens. Best effort: failures are logged and never surface
// on the send path.
func (c Chat) notifyNewMessage(userID string, msg models.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.S().Errorw("panic in notifyNewMessage", "userId", userID, "panic", rec)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), api.QueryTimeout)
	defer cancel()

	from := msg.FromID
	if from == "" {
		from = msg.FromPlate
	}
	payload := map[string]interface{}{
		"threadId":  msg.ThreadID,
		"messageId": msg.ID,
		"fromId":    from,
		"preview":   msg.Text,
	}

	sendNewMessageToUser(userID, payload)

	tokens, err := c.PTDB.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		zap.S().Warnw("failed to load push tokens", "userId", userID, "error", err)
		return
	}
	var expoTokens []string
	for _, t := range tokens {
		expoTokens = append(expoTokens, t.Token)
	}
	if err := SendExpoPushNotifications(expoTokens, "Nova mensagem", msg.Text, payload); err != nil {
		zap.S().Warnw("failed to send push notifications", "userId", userID, "error", err)
	}
}
