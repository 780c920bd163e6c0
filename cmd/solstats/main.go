// Aggregates scraper success counts from scriptLogs into daily stats
// documents, keyed scrapers/<vendor>/<date>. Upserts by key so re-running
// a window converges instead of double counting.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/automatter/rfptrack/internal/config"
	"github.com/automatter/rfptrack/internal/database"
	"github.com/automatter/rfptrack/internal/store"
	"github.com/automatter/rfptrack/pkg/logger"
)

func main() {
	days := flag.Int("days", 30, "window size in days, counted back from today")
	flag.Parse()

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

	s := store.NewMongo(db, store.Options{HiddenPrefix: cfg.Fields.HiddenPrefix}, nil)

	since := time.Now().UTC().AddDate(0, 0, -*days)
	logs, err := s.Get(ctx, "scriptLogs", store.QueryOptions{Limit: -1, ShowPrivate: true})
	if err != nil {
		logger.Fatalf("scan scriptLogs: %v", err)
	}

	// vendor -> date -> success count
	counts := map[string]map[string]float64{}
	for _, entry := range logs {
		vendor, _ := entry["scriptName"].(string)
		if vendor == "" {
			continue
		}
		created := createdAt(entry)
		if created.IsZero() || created.Before(since) {
			continue
		}
		day := created.Format("2006-01-02")
		if counts[vendor] == nil {
			counts[vendor] = map[string]float64{}
		}
		counts[vendor][day] += successCount(entry)
	}

	written := 0
	for vendor, byDay := range counts {
		for day, n := range byDay {
			key := fmt.Sprintf("scrapers/%s/%s", vendor, day)
			if err := upsertStat(ctx, s, key, day, n); err != nil {
				logger.Fatalf("upsert stat %s: %v", key, err)
			}
			written++
		}
	}
	logger.Infof("solstats complete: %d stat records over the last %d days", written, *days)
}

func upsertStat(ctx context.Context, s store.Store, key, day string, value float64) error {
	doc := store.Doc{
		"key":        key,
		"value":      value,
		"periodType": "day",
		"startDate":  day,
		"endDate":    day,
	}
	existing, err := s.Get(ctx, "stats", store.QueryOptions{
		Filters: map[string]interface{}{"key": key},
		Limit:   1,
	})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		id, _ := existing[0]["id"].(string)
		_, err = s.Patch(ctx, "stats", id, doc)
		return err
	}
	_, err = s.Post(ctx, "stats", doc, nil)
	return err
}

func createdAt(doc store.Doc) time.Time {
	switch v := doc["created"].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func successCount(doc store.Doc) float64 {
	switch v := doc["successCount"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
