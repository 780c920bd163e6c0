// Removes duplicate solicitations sharing a siteId. The survivor is the
// record carrying scraped documents, or the first seen when none do.
// Deletions are mirrored out of the search index. Converges on re-run.
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

	var mirror search.Mirror = search.NopMirror{}
	if cfg.Elastic.Node != "" {
		elastic, err := search.NewElastic(search.Config{Node: cfg.Elastic.Node, APIKey: cfg.Elastic.APIKey})
		if err != nil {
			logger.Fatalf("connect to Elasticsearch: %v", err)
		}
		mirror = elastic
	}

	s := store.NewMongo(db, store.Options{HiddenPrefix: cfg.Fields.HiddenPrefix}, nil)

	docs, err := s.Get(ctx, "solicitations", store.QueryOptions{Limit: -1, ShowPrivate: true})
	if err != nil {
		logger.Fatalf("scan solicitations: %v", err)
	}

	bySite := map[string][]store.Doc{}
	for _, doc := range docs {
		siteID, _ := doc["siteId"].(string)
		if siteID == "" {
			continue
		}
		bySite[siteID] = append(bySite[siteID], doc)
	}

	removed := 0
	for siteID, group := range bySite {
		if len(group) < 2 {
			continue
		}
		keep := group[0]
		for _, doc := range group {
			if hasDocuments(doc) {
				keep = doc
				break
			}
		}
		keepID, _ := keep["id"].(string)
		for _, doc := range group {
			id, _ := doc["id"].(string)
			if id == "" || id == keepID {
				continue
			}
			if _, err := s.Remove(ctx, "solicitations", id); err != nil {
				logger.Fatalf("remove duplicate %s (siteId=%s): %v", id, siteID, err)
			}
			mirror.Remove(ctx, cfg.Elastic.Index, id)
			removed++
		}
	}
	logger.Infof("dedupe complete: %d duplicates removed across %d sites", removed, len(bySite))
}

func hasDocuments(doc store.Doc) bool {
	docs, ok := doc["documents"].([]interface{})
	return ok && len(docs) > 0
}
