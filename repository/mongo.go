package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"meterdata-etl/config"
	"meterdata-etl/models"
)

type Impl struct {
	Db                 *mongo.Database
	BaselineCollection string
}

var NewRepository = func(db *mongo.Database, baselineCollection string) Repository {
	if baselineCollection == "" {
		baselineCollection = config.GetDefaultBaselineCollection()
	}
	return &Impl{
		Db:                 db,
		BaselineCollection: baselineCollection,
	}
}

type readingDocument struct {
	Id     interface{} `bson:"_id"`
	Period string      `bson:"period"`
	Unit   string      `bson:"unit"`
	Type   string      `bson:"type"`
}

// FindReading looks the reading up by ObjectId when readingId is one, by plain string otherwise
func (i *Impl) FindReading(ctx context.Context, readingId string) (*models.Reading, error) {
	var filter bson.M
	if oid, err := primitive.ObjectIDFromHex(readingId); err == nil {
		filter = bson.M{"_id": oid}
	} else {
		filter = bson.M{"_id": readingId}
	}

	var doc readingDocument
	err := i.Db.Collection(config.GetReadingsCollection()).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("find reading "+readingId, err)
	}

	reading := &models.Reading{Period: doc.Period, Unit: doc.Unit, Type: doc.Type}
	switch id := doc.Id.(type) {
	case primitive.ObjectID:
		reading.Id = id.Hex()
	case string:
		reading.Id = id
	default:
		reading.Id = fmt.Sprint(id)
	}
	return reading, nil
}

// SaveQuarantined stores record under its deterministic id so a re-executed task replaces it
func (i *Impl) SaveQuarantined(ctx context.Context, record models.QuarantinedMeasurement) error {
	_, err := i.Db.Collection(config.GetQuarantineCollection()).ReplaceOne(ctx,
		bson.M{"_id": record.Id},
		record,
		options.Replace().SetUpsert(true))
	if err != nil {
		return storeError("save quarantined measurement", err)
	}
	return nil
}

func (i *Impl) AppendError(ctx context.Context, taskId, message string) error {
	return i.push(ctx, taskId, "errors", message)
}

func (i *Impl) AppendDebug(ctx context.Context, taskId, message string) error {
	return i.push(ctx, taskId, "debug", message)
}

func (i *Impl) push(ctx context.Context, taskId, list, message string) error {
	_, err := i.Db.Collection(config.GetDebugCollection()).UpdateOne(ctx,
		bson.M{"task_id": taskId},
		bson.M{"$push": bson.M{list: message}},
		options.Update().SetUpsert(true))
	if err != nil {
		return storeError("append "+list, err)
	}
	return nil
}

// UpsertBaseline replaces the baseline of (modellingUnitId, companyId) wholesale, creating it when absent
func (i *Impl) UpsertBaseline(ctx context.Context, baseline models.BaselineDocument) error {
	_, err := i.Db.Collection(i.BaselineCollection).ReplaceOne(ctx,
		bson.M{"modellingUnitId": baseline.ModellingUnitId, "companyId": baseline.CompanyId},
		BaselineToBSON(baseline),
		options.Replace().SetUpsert(true))
	if err != nil {
		return storeError("upsert baseline "+baseline.ModellingUnitId, err)
	}
	return nil
}

// BaselineToBSON merges the engine fields with the identity fields. Identity fields win so the
// document always matches the key it is upserted under.
func BaselineToBSON(baseline models.BaselineDocument) bson.M {
	doc := bson.M{}
	for k, v := range baseline.Fields {
		if k == "_id" {
			continue
		}
		doc[k] = v
	}
	doc["companyId"] = baseline.CompanyId
	doc["devices"] = baseline.Devices
	doc["modellingUnitId"] = baseline.ModellingUnitId
	doc["_created"] = baseline.Created
	return doc
}

func (i *Impl) Close(ctx context.Context) error {
	return i.Db.Client().Disconnect(ctx)
}
