// Full rebuild of the search index: wipe, scan the solicitations
// collection, push every document with its semantic field copies.
// Safe to re-run; the end state only depends on the store.
package main

import (
	"context"
	"os"

	"github.com/automatter/rfptrack/internal/config"
	"github.com/automatter/rfptrack/internal/database"
	"github.com/automatter/rfptrack/internal/search"
	"github.com/automatter/rfptrack/internal/store"
	"github.com/automatter/rfptrack/pkg/logger"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
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

	elastic, err := search.NewElastic(search.Config{Node: cfg.Elastic.Node, APIKey: cfg.Elastic.APIKey})
	if err != nil {
		logger.Fatalf("connect to Elasticsearch: %v", err)
	}

	s := store.NewMongo(db, store.Options{HiddenPrefix: cfg.Fields.HiddenPrefix}, nil)

	if err := elastic.Wipe(ctx, cfg.Elastic.Index); err != nil {
		logger.Fatalf("wipe index %s: %v", cfg.Elastic.Index, err)
	}

	docs, err := s.Get(ctx, "solicitations", store.QueryOptions{Limit: -1, ShowPrivate: true})
	if err != nil {
		logger.Fatalf("scan solicitations: %v", err)
	}

	pushed := 0
	for _, doc := range docs {
		id, _ := doc["id"].(string)
		if id == "" {
			continue
		}
		if err := elastic.Post(ctx, cfg.Elastic.Index, id, search.WithSemanticCopies(doc)); err != nil {
			logger.Fatalf("index %s: %v", id, err)
		}
		pushed++
	}
	logger.Infof("reindex complete: %d documents pushed to %s", pushed, cfg.Elastic.Index)
}
