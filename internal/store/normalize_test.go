package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNormalizeValue_BSONTypes(t *testing.T) {
	when := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	// bson.M is an alias of primitive.M, so one arm handles both spellings.
	got := normalizeValue(bson.M{
		"when":   primitive.NewDateTimeFromTime(when),
		"status": "new",
	})
	m, ok := got.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, when, m["when"])
	require.Equal(t, "new", m["status"])

	got = normalizeValue(primitive.A{primitive.NewDateTimeFromTime(when), "x"})
	arr, ok := got.([]interface{})
	require.True(t, ok)
	require.Equal(t, when, arr[0])
	require.Equal(t, "x", arr[1])
}
