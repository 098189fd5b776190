package databases

// go generate: mockery --name VehicleDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/placachat/placa-chat-api/models"
)

const vehicleCollectionName = "vehicles"

// VehicleDatabase contains the methods to use with the vehicle database.
// Vehicles are keyed by canonical plate, so FindByPlate is a direct _id
// lookup and UpsertByPlate can never produce a second document for the
// same plate.
type VehicleDatabase interface {
	FindByPlate(ctx context.Context, plate string) (*models.Vehicle, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Vehicle, error)
	UpsertByPlate(ctx context.Context, plate string, update interface{}) (*mongo.UpdateResult, error)
}

type vehicleDatabase struct {
	db DatabaseHelper
}

// NewVehicleDatabase initializes a new instance of vehicle database with the provided db connection
func NewVehicleDatabase(db DatabaseHelper) VehicleDatabase {
	return &vehicleDatabase{
		db: db,
	}
}

func (c *vehicleDatabase) FindByPlate(ctx context.Context, plate string) (*models.Vehicle, error) {
	vehicle := &models.Vehicle{}
	err := c.db.Collection(vehicleCollectionName).FindOne(ctx, bson.M{"_id": plate}).Decode(vehicle)
	if err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (c *vehicleDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Vehicle, error) {
	var vehicles []models.Vehicle
	cur, err := c.db.Collection(vehicleCollectionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	if err := cur.Decode(&vehicles); err != nil {
		return nil, err
	}
	return vehicles, nil
}

func (c *vehicleDatabase) UpsertByPlate(ctx context.Context, plate string, update interface{}) (*mongo.UpdateResult, error) {
	upsert := true
	return c.db.Collection(vehicleCollectionName).UpdateOne(ctx, bson.M{"_id": plate}, update, &options.UpdateOptions{Upsert: &upsert})
}
