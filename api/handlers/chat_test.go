package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/placachat/placa-chat-api/api"
	"github.com/placachat/placa-chat-api/api/handlers"
	"github.com/placachat/placa-chat-api/config"
	"github.com/placachat/placa-chat-api/databases"
	"github.com/placachat/placa-chat-api/databases/mocks"
	"github.com/placachat/placa-chat-api/models"
)

const testSenderID = "507f1f77bcf86cd799439011"

func testLimits() config.LimitPolicies {
	return config.LimitPolicies{
		NewThread:      config.LimitPolicy{Limit: 3, Window: 24 * time.Hour},
		MessagesPerDay: config.LimitPolicy{Limit: 10, Window: 24 * time.Hour},
		Cooldown:       config.LimitPolicy{Limit: 1, Window: 10 * time.Second},
	}
}

func newChat(db databases.DatabaseHelper) handlers.Chat {
	return handlers.Chat{
		TDB:    databases.NewThreadDatabase(db),
		MDB:    databases.NewMessageDatabase(db),
		VDB:    databases.NewVehicleDatabase(db),
		UDB:    databases.NewUserDatabase(db),
		RDB:    databases.NewRateLimitDatabase(db),
		PTDB:   databases.NewPushTokenDatabase(db),
		Limits: testLimits(),
	}
}

func authedRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(method, target, bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	return req.WithContext(api.WithUserID(req.Context(), testSenderID))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.MessageError {
	t.Helper()
	var resp models.ErrorMessageResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rr.Body.String(), err)
	}
	return resp.Response
}

// rateLimitConn returns a collection mock whose FindOneAndUpdate reports
// the given counter state for every key.
func rateLimitConn(count int, resetAt time.Time) *mocks.CollectionHelper {
	conn := &mocks.CollectionHelper{}
	single := &mocks.SingleResultHelper{}
	single.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		counter := args.Get(0).(*models.RateCounter)
		counter.Count = count
		counter.ResetAt = primitive.NewDateTimeFromTime(resetAt)
	})
	conn.On("FindOneAndUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(single)
	return conn
}

func vehicleConn(vehicle models.Vehicle) *mocks.CollectionHelper {
	conn := &mocks.CollectionHelper{}
	single := &mocks.SingleResultHelper{}
	single.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		v := args.Get(0).(*models.Vehicle)
		*v = vehicle
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(single)
	return conn
}

func emptyPushTokenConn() *mocks.CollectionHelper {
	conn := &mocks.CollectionHelper{}
	cursor := &mocks.CursorHelper{}
	cursor.On("Decode", mock.Anything).Return(nil)
	conn.On("Find", mock.Anything, mock.Anything).Return(cursor, nil)
	return conn
}

func TestChat_OpenThreadHandlerHappyPath(t *testing.T) {
	db := &mocks.DatabaseHelper{}

	threadCursor := &mocks.CursorHelper{}
	threadCursor.On("Decode", mock.Anything).Return(nil)
	threadConn := &mocks.CollectionHelper{}
	threadConn.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(threadCursor, nil)
	threadConn.On("InsertOne", mock.Anything, mock.Anything).Return(nil, nil)
	threadConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	messageConn := &mocks.CollectionHelper{}
	messageConn.On("InsertOne", mock.Anything, mock.Anything).Return(nil, nil)

	db.On("Collection", "ratelimits").Return(rateLimitConn(1, time.Now().Add(10*time.Second)))
	db.On("Collection", "vehicles").Return(vehicleConn(models.Vehicle{Plate: "BRA2E19", OptIn: true, OwnerID: "owner1"}))
	db.On("Collection", "threads").Return(threadConn)
	db.On("Collection", "messages").Return(messageConn)
	db.On("Collection", "pushtokens").Return(emptyPushTokenConn())

	c := newChat(db)
	req := authedRequest(t, "POST", "/api/v1/chat/threads",
		map[string]string{"plate": "bra 2e19", "text": "Oi, seu carro está bloqueando a garagem"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.OpenThreadHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	var resp models.SendMessageResponse
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ThreadID)
	assert.NotEmpty(t, resp.MessageID)
}

func TestChat_OpenThreadHandlerRejectsLinkBeforeAnyWrite(t *testing.T) {
	// no collections are registered: a single db call would panic the test
	db := &mocks.DatabaseHelper{}

	c := newChat(db)
	req := authedRequest(t, "POST", "/api/v1/chat/threads",
		map[string]string{"plate": "BRA2E19", "text": "me chama em www.golpe.com"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.OpenThreadHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusPreconditionFailed, rr.Code)
	assert.Equal(t, models.ReasonPolicyViolation, decodeError(t, rr).Reason)
}

func TestChat_OpenThreadHandlerRejectsPhoneNumber(t *testing.T) {
	db := &mocks.DatabaseHelper{}

	c := newChat(db)
	req := authedRequest(t, "POST", "/api/v1/chat/threads",
		map[string]string{"plate": "BRA2E19", "text": "liga pra mim (11) 99999-8888"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.OpenThreadHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusPreconditionFailed, rr.Code)
	assert.Equal(t, models.ReasonPolicyViolation, decodeError(t, rr).Reason)
}

func TestChat_OpenThreadHandlerInvalidPlate(t *testing.T) {
	db := &mocks.DatabaseHelper{}

	c := newChat(db)
	req := authedRequest(t, "POST", "/api/v1/chat/threads",
		map[string]string{"plate": "NOPE", "text": "mensagem inocente"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.OpenThreadHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, models.ReasonInvalidInput, decodeError(t, rr).Reason)
}

func TestChat_OpenThreadHandlerRateLimited(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	// cooldown limit is 1; a count of 2 means the window is exhausted.
	// No other collection is registered, proving no write happens after
	// the throttle.
	db.On("Collection", "ratelimits").Return(rateLimitConn(2, time.Now().Add(8*time.Second)))

	c := newChat(db)
	req := authedRequest(t, "POST", "/api/v1/chat/threads",
		map[string]string{"plate": "BRA2E19", "text": "mensagem inocente"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.OpenThreadHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, models.ReasonRateLimited, decodeError(t, rr).Reason)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestChat_OpenThreadHandlerVehicleNotOptedIn(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	db.On("Collection", "ratelimits").Return(rateLimitConn(1, time.Now().Add(10*time.Second)))
	db.On("Collection", "vehicles").Return(vehicleConn(models.Vehicle{Plate: "BRA2E19", OptIn: false, OwnerID: "owner1"}))

	c := newChat(db)
	req := authedRequest(t, "POST", "/api/v1/chat/threads",
		map[string]string{"plate": "BRA2E19", "text": "mensagem inocente"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.OpenThreadHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusPreconditionFailed, rr.Code)
	assert.Equal(t, models.ReasonPreconditionFailed, decodeError(t, rr).Reason)
}

func TestChat_OpenThreadHandlerSelfContact(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	db.On("Collection", "ratelimits").Return(rateLimitConn(1, time.Now().Add(10*time.Second)))
	db.On("Collection", "vehicles").Return(vehicleConn(models.Vehicle{Plate: "BRA2E19", OptIn: true, OwnerID: testSenderID}))

	c := newChat(db)
	req := authedRequest(t, "POST", "/api/v1/chat/threads",
		map[string]string{"plate": "BRA2E19", "text": "mensagem inocente"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.OpenThreadHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusPreconditionFailed, rr.Code)
	assert.Equal(t, models.ReasonPreconditionFailed, decodeError(t, rr).Reason)
}

func TestChat_SendMessageHandlerHappyPath(t *testing.T) {
	db := &mocks.DatabaseHelper{}

	threadSingle := &mocks.SingleResultHelper{}
	threadSingle.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		thread := args.Get(0).(*models.Thread)
		thread.ID = "thread-1"
		thread.Plate = "BRA2E19"
		thread.Participants = []string{testSenderID, "owner1"}
		thread.Status = models.ThreadStatusOpen
	})
	threadConn := &mocks.CollectionHelper{}
	threadConn.On("FindOne", mock.Anything, mock.Anything).Return(threadSingle)
	threadConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	messageConn := &mocks.CollectionHelper{}
	messageConn.On("InsertOne", mock.Anything, mock.Anything).Return(nil, nil)

	db.On("Collection", "ratelimits").Return(rateLimitConn(1, time.Now().Add(10*time.Second)))
	db.On("Collection", "threads").Return(threadConn)
	db.On("Collection", "messages").Return(messageConn)
	db.On("Collection", "pushtokens").Return(emptyPushTokenConn())

	c := newChat(db)
	req := authedRequest(t, "POST", "/api/v1/chat/messages",
		map[string]string{"threadId": "thread-1", "text": "já estou descendo"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.SendMessageHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	var resp models.SendMessageResponse
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "thread-1", resp.ThreadID)
	assert.NotEmpty(t, resp.MessageID)
}

func TestChat_SendMessageHandlerForbiddenForOutsider(t *testing.T) {
	db := &mocks.DatabaseHelper{}

	threadSingle := &mocks.SingleResultHelper{}
	threadSingle.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		thread := args.Get(0).(*models.Thread)
		thread.ID = "thread-1"
		thread.Participants = []string{"someone", "else"}
	})
	threadConn := &mocks.CollectionHelper{}
	threadConn.On("FindOne", mock.Anything, mock.Anything).Return(threadSingle)

	db.On("Collection", "ratelimits").Return(rateLimitConn(1, time.Now().Add(10*time.Second)))
	db.On("Collection", "threads").Return(threadConn)

	c := newChat(db)
	req := authedRequest(t, "POST", "/api/v1/chat/messages",
		map[string]string{"threadId": "thread-1", "text": "oi"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.SendMessageHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, models.ReasonForbidden, decodeError(t, rr).Reason)
}

func TestChat_ThreadDetailHandlerForbidden(t *testing.T) {
	db := &mocks.DatabaseHelper{}

	threadSingle := &mocks.SingleResultHelper{}
	threadSingle.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		thread := args.Get(0).(*models.Thread)
		thread.ID = "thread-1"
		thread.Participants = []string{"someone", "else"}
	})
	threadConn := &mocks.CollectionHelper{}
	threadConn.On("FindOne", mock.Anything, mock.Anything).Return(threadSingle)
	db.On("Collection", "threads").Return(threadConn)

	c := newChat(db)
	req := authedRequest(t, "GET", "/api/v1/chat/threads/thread-1", nil)
	req = mux.SetURLVars(req, map[string]string{"thread_id": "thread-1"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.ThreadDetailHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestChat_ThreadDetailHandlerHappyPath(t *testing.T) {
	db := &mocks.DatabaseHelper{}

	threadSingle := &mocks.SingleResultHelper{}
	threadSingle.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		thread := args.Get(0).(*models.Thread)
		thread.ID = "thread-1"
		thread.Participants = []string{testSenderID, "owner1"}
	})
	threadConn := &mocks.CollectionHelper{}
	threadConn.On("FindOne", mock.Anything, mock.Anything).Return(threadSingle)

	messageCursor := &mocks.CursorHelper{}
	messageCursor.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		messages := args.Get(0).(*[]models.Message)
		*messages = []models.Message{
			{ID: "m1", ThreadID: "thread-1", FromID: testSenderID, Text: "oi"},
			{ID: "m2", ThreadID: "thread-1", FromID: "owner1", Text: "olá"},
		}
	})
	messageConn := &mocks.CollectionHelper{}
	messageConn.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(messageCursor, nil)

	db.On("Collection", "threads").Return(threadConn)
	db.On("Collection", "messages").Return(messageConn)

	c := newChat(db)
	req := authedRequest(t, "GET", "/api/v1/chat/threads/thread-1", nil)
	req = mux.SetURLVars(req, map[string]string{"thread_id": "thread-1"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.ThreadDetailHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp models.ThreadWithMessages
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "thread-1", resp.Thread.ID)
	assert.Len(t, resp.Messages, 2)
}

func TestChat_PlateSendHandlerHappyPath(t *testing.T) {
	db := &mocks.DatabaseHelper{}

	// first lookup: sender's plate, owned by the caller; second lookup:
	// recipient plate, opted in
	vehicles := map[string]models.Vehicle{
		"BRA2E19": {Plate: "BRA2E19", OptIn: true, OwnerID: testSenderID},
		"XYZ9876": {Plate: "XYZ9876", OptIn: true, OwnerID: "owner2"},
	}
	var lookedUp string
	vehicleSingle := &mocks.SingleResultHelper{}
	vehicleSingle.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		v := args.Get(0).(*models.Vehicle)
		*v = vehicles[lookedUp]
	})
	vehicleConn := &mocks.CollectionHelper{}
	// the bson.M filter carries the plate being looked up
	vehicleConn.On("FindOne", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		lookedUp = args.Get(1).(bson.M)["_id"].(string)
	}).Return(vehicleSingle)

	threadSingle := &mocks.SingleResultHelper{}
	threadSingle.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		thread := args.Get(0).(*models.Thread)
		thread.ID = "BRA2E19__XYZ9876"
		thread.ParticipantPlates = []string{"BRA2E19", "XYZ9876"}
	})
	threadConn := &mocks.CollectionHelper{}
	threadConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	threadConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	threadConn.On("FindOne", mock.Anything, mock.Anything).Return(threadSingle)

	messageConn := &mocks.CollectionHelper{}
	messageConn.On("InsertOne", mock.Anything, mock.Anything).Return(nil, nil)

	db.On("Collection", "ratelimits").Return(rateLimitConn(1, time.Now().Add(10*time.Second)))
	db.On("Collection", "vehicles").Return(vehicleConn)
	db.On("Collection", "threads").Return(threadConn)
	db.On("Collection", "messages").Return(messageConn)
	db.On("Collection", "pushtokens").Return(emptyPushTokenConn())

	c := newChat(db)
	req := authedRequest(t, "POST", "/api/v1/chat/plate-send",
		map[string]string{"fromPlate": "BRA2E19", "toPlate": "XYZ9876", "text": "seus faróis ficaram acesos"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.PlateSendHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	var resp models.SendMessageResponse
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "BRA2E19__XYZ9876", resp.ThreadID)
}

func TestChat_PlateSendHandlerSamePlate(t *testing.T) {
	db := &mocks.DatabaseHelper{}

	c := newChat(db)
	req := authedRequest(t, "POST", "/api/v1/chat/plate-send",
		map[string]string{"fromPlate": "BRA2E19", "toPlate": "bra-2e19", "text": "oi"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.PlateSendHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, models.ReasonInvalidInput, decodeError(t, rr).Reason)
}
