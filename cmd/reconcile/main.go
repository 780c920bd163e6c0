// Repairs drift between the solicitations collection and its search
// index after a crash between the dual writes: pushes missing or stale
// documents, deletes index orphans.
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

	report, err := search.NewReconciler(s, elastic).Run(ctx, "solicitations", cfg.Elastic.Index)
	if err != nil {
		logger.Fatalf("reconcile: %v", err)
	}
	logger.Infof("reconcile complete: checked=%d pushed=%d deleted=%d", report.Checked, report.Pushed, report.Deleted)
}
