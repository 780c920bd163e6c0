package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Connect dials the cluster behind uri and returns the named database
// handle plus a close func. The ping targets a primary so a half-up
// replica set fails here instead of at the first write.
func Connect(ctx context.Context, uri, name string, timeout time.Duration) (*mongo.Database, func(), error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetAppName("rfptrack")
	client, err := mongo.Connect(dialCtx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(dialCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}
	closeFn := func() { _ = client.Disconnect(context.Background()) }
	return client.Database(name), closeFn, nil
}
