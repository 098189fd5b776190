package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/placachat/placa-chat-api/api/handlers"
	"github.com/placachat/placa-chat-api/databases"
	"github.com/placachat/placa-chat-api/databases/mocks"
	"github.com/placachat/placa-chat-api/models"
)

func userConn(user models.User) *mocks.CollectionHelper {
	conn := &mocks.CollectionHelper{}
	single := &mocks.SingleResultHelper{}
	single.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		u := args.Get(0).(*models.User)
		*u = user
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(single)
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	return conn
}

func TestVehicle_ClaimHandlerNewPlate(t *testing.T) {
	db := &mocks.DatabaseHelper{}

	vehicleSingle := &mocks.SingleResultHelper{}
	vehicleSingle.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	vehicleConn := &mocks.CollectionHelper{}
	vehicleConn.On("FindOne", mock.Anything, mock.Anything).Return(vehicleSingle)
	var update bson.M
	vehicleConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			update = args.Get(2).(bson.M)
		}).Return(nil, nil)

	db.On("Collection", "vehicles").Return(vehicleConn)
	db.On("Collection", "users").Return(userConn(models.User{}))

	v := handlers.Vehicle{DB: databases.NewVehicleDatabase(db), UDB: databases.NewUserDatabase(db)}
	req := authedRequest(t, "POST", "/api/v1/vehicles/claim",
		map[string]interface{}{"plate": "bra-2e19", "model": "Gol", "year": 2019, "phone": "+55 (11) 99999-8888"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(v.ClaimHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "BRA2E19", resp["plate"])
	assert.Equal(t, true, resp["optIn"])

	set := update["$set"].(bson.M)
	assert.Equal(t, testSenderID, set["ownerId"])
	assert.Equal(t, "5511999998888", set["ownerPhone"])
	assert.Equal(t, true, set["optIn"])
}

func TestVehicle_ClaimHandlerWithoutPhoneDoesNotOptIn(t *testing.T) {
	db := &mocks.DatabaseHelper{}

	vehicleSingle := &mocks.SingleResultHelper{}
	vehicleSingle.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	vehicleConn := &mocks.CollectionHelper{}
	vehicleConn.On("FindOne", mock.Anything, mock.Anything).Return(vehicleSingle)
	vehicleConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	db.On("Collection", "vehicles").Return(vehicleConn)
	db.On("Collection", "users").Return(userConn(models.User{}))

	v := handlers.Vehicle{DB: databases.NewVehicleDatabase(db), UDB: databases.NewUserDatabase(db)}
	req := authedRequest(t, "POST", "/api/v1/vehicles/claim",
		map[string]interface{}{"plate": "BRA2E19"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(v.ClaimHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["optIn"])
}

func TestVehicle_ClaimHandlerPlateOwnedByAnotherUser(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	db.On("Collection", "vehicles").Return(vehicleConn(models.Vehicle{Plate: "BRA2E19", OwnerID: "someone-else"}))

	v := handlers.Vehicle{DB: databases.NewVehicleDatabase(db)}
	req := authedRequest(t, "POST", "/api/v1/vehicles/claim",
		map[string]interface{}{"plate": "BRA2E19", "phone": "11999998888"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(v.ClaimHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusPreconditionFailed, rr.Code)
	assert.Equal(t, models.ReasonPreconditionFailed, decodeError(t, rr).Reason)
}

func TestVehicle_MineHandlerNoClaimedPlate(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	db.On("Collection", "users").Return(userConn(models.User{}))

	v := handlers.Vehicle{UDB: databases.NewUserDatabase(db)}
	req := authedRequest(t, "GET", "/api/v1/vehicles/mine", nil)

	rr := httptest.NewRecorder()
	http.HandlerFunc(v.MineHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, models.ReasonNotFound, decodeError(t, rr).Reason)
}

func TestVehicle_AdminUpsertHandlerRequiresOptIn(t *testing.T) {
	v := handlers.Vehicle{}
	req := authedRequest(t, "POST", "/api/v1/admin/vehicles",
		map[string]interface{}{"plate": "BRA2E19", "optIn": false})

	rr := httptest.NewRecorder()
	http.HandlerFunc(v.AdminUpsertHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusPreconditionFailed, rr.Code)
	assert.Equal(t, models.ReasonPreconditionFailed, decodeError(t, rr).Reason)
}

func TestVehicle_AdminUpsertHandlerUpsertsOptedInVehicle(t *testing.T) {
	db := &mocks.DatabaseHelper{}

	vehicleConn := &mocks.CollectionHelper{}
	var update bson.M
	vehicleConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			update = args.Get(2).(bson.M)
		}).Return(nil, nil)
	db.On("Collection", "vehicles").Return(vehicleConn)

	v := handlers.Vehicle{DB: databases.NewVehicleDatabase(db)}
	req := authedRequest(t, "POST", "/api/v1/admin/vehicles",
		map[string]interface{}{"plate": "XYZ9876", "model": "Uno", "year": 2010, "ownerPhone": "11 98888-7777", "optIn": true})

	rr := httptest.NewRecorder()
	http.HandlerFunc(v.AdminUpsertHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	set := update["$set"].(bson.M)
	assert.Equal(t, true, set["optIn"])
	assert.Equal(t, "admin", set["optInMethod"])
	assert.Equal(t, "11988887777", set["ownerPhone"])
}
