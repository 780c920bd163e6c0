// One-off migration: rename a field across every document of a
// collection. Documents without the source field are left alone, so the
// rename converges on re-run.
package main

import (
	"context"
	"flag"
	"os"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/automatter/rfptrack/internal/config"
	"github.com/automatter/rfptrack/internal/database"
	"github.com/automatter/rfptrack/pkg/logger"
)

func main() {
	collection := flag.String("collection", "", "collection to migrate")
	from := flag.String("from", "", "current field name")
	to := flag.String("to", "", "new field name")
	flag.Parse()

	logger.Init(os.Getenv("LOG_LEVEL"))
	if *collection == "" || *from == "" || *to == "" {
		logger.Fatalf("usage: renamefield -collection <name> -from <field> -to <field>")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	db, closeDB, err := database.Connect(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.Timeout)
	if err != nil {
		logger.Fatalf("connect to MongoDB: %v", err)
	}
	defer closeDB()

	col := db.Collection(*collection)
	res, err := col.UpdateMany(ctx,
		bson.M{*from: bson.M{"$exists": true}},
		bson.M{"$rename": bson.M{*from: *to}},
	)
	if err != nil {
		logger.Fatalf("rename %s -> %s in %s: %v", *from, *to, *collection, err)
	}
	logger.Infof("renamed %s -> %s in %s: %d documents modified", *from, *to, *collection, res.ModifiedCount)
}
