package database

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/godror/godror"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"meterdata-etl/config"
)

// InitDB opens a connection to the relational measurement source
func InitDB(dbConnectionString string) (*sql.DB, error) {
	db, err := sql.Open("godror", dbConnectionString)
	if err != nil {
		log.Error(err)
		return nil, err
	}
	db.SetMaxOpenConns(config.GetMaxOpenConnections())
	db.SetMaxIdleConns(config.GetMaxIdleConnections())
	return db, nil
}

// InitDocumentStore connects to the document store and returns the configured database
func InitDocumentStore(ctx context.Context, configuration config.Configuration) (*mongo.Database, error) {
	clientOptions := options.Client().ApplyURI(configuration.DocumentStoreURI())
	if configuration.Database.Username != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   configuration.Database.Username,
			Password:   configuration.Database.Password,
			AuthSource: configuration.Database.DB,
		})
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		log.Error(err)
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		log.Error(err)
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client.Database(configuration.Database.DB), nil
}
