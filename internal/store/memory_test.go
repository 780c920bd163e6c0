package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/automatter/rfptrack/internal/apperr"
	"github.com/automatter/rfptrack/internal/identity"
)

func testStore() *Memory {
	return NewMemory(Options{HiddenPrefix: "_"}, nil)
}

func testIdentity() *identity.Identity {
	return &identity.Identity{UID: "user-1", Email: "u1@example.com", Type: identity.TypeUser}
}

func TestMemory_PostStampsSystemFields(t *testing.T) {
	s := testStore()
	ctx := context.Background()

	created, err := s.Post(ctx, "solicitations", Doc{
		"title": "Road resurfacing",
		"id":    "attacker-chosen", // must be ignored
	}, testIdentity())
	require.NoError(t, err)

	id, ok := created["id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)
	require.NotEqual(t, "attacker-chosen", id)
	require.Equal(t, "user-1", created["authorId"])
	require.IsType(t, time.Time{}, created["created"])
	require.Equal(t, created["created"], created["updated"])
}

func TestMemory_GetByIDRoundTrip(t *testing.T) {
	s := testStore()
	ctx := context.Background()

	created, err := s.Post(ctx, "solicitations", Doc{"title": "Bridge repair"}, testIdentity())
	require.NoError(t, err)
	id := created["id"].(string)

	got, err := s.GetByID(ctx, "solicitations", id)
	require.NoError(t, err)
	require.Equal(t, "Bridge repair", got["title"])
	require.Equal(t, id, got["id"])
}

func TestMemory_GetByIDNotFound(t *testing.T) {
	s := testStore()
	_, err := s.GetByID(context.Background(), "solicitations", "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemory_GetByKeyConvention(t *testing.T) {
	s := testStore()
	ctx := context.Background()

	_, err := s.Post(ctx, "users", Doc{"key": "uid-42", "email": "a@b.c"}, nil)
	require.NoError(t, err)

	got, err := s.GetByID(ctx, "users", "k_uid-42")
	require.NoError(t, err)
	require.Equal(t, "a@b.c", got["email"])

	_, err = s.GetByID(ctx, "users", "k_other")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemory_PatchMergesAndBumpsUpdated(t *testing.T) {
	s := testStore()
	ctx := context.Background()

	created, err := s.Post(ctx, "solicitations", Doc{"title": "Old", "cnStatus": "new"}, testIdentity())
	require.NoError(t, err)
	id := created["id"].(string)

	updated, err := s.Patch(ctx, "solicitations", id, Doc{"title": "New", "created": "1999-01-01"})
	require.NoError(t, err)
	require.Equal(t, "New", updated["title"])
	require.Equal(t, "new", updated["cnStatus"])
	// created is a system field; a patch cannot rewrite it
	require.Equal(t, created["created"], updated["created"])
	require.NotEqual(t, created["updated"], updated["updated"])
}

func TestMemory_PatchMissing(t *testing.T) {
	s := testStore()
	_, err := s.Patch(context.Background(), "solicitations", "missing", Doc{"title": "x"})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemory_RemoveThenRemoveAgain(t *testing.T) {
	s := testStore()
	ctx := context.Background()

	created, err := s.Post(ctx, "solicitations", Doc{"title": "gone soon"}, nil)
	require.NoError(t, err)
	id := created["id"].(string)

	removed, err := s.Remove(ctx, "solicitations", id)
	require.NoError(t, err)
	require.Equal(t, id, removed)

	_, err = s.Remove(ctx, "solicitations", id)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemory_HiddenFieldsElided(t *testing.T) {
	s := testStore()
	ctx := context.Background()

	created, err := s.Post(ctx, "solicitations", Doc{"title": "t", "_scraperNotes": "internal"}, nil)
	require.NoError(t, err)
	require.NotContains(t, created, "_scraperNotes")

	got, err := s.Get(ctx, "solicitations", QueryOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotContains(t, got[0], "_scraperNotes")

	private, err := s.Get(ctx, "solicitations", QueryOptions{ShowPrivate: true})
	require.NoError(t, err)
	require.Equal(t, "internal", private[0]["_scraperNotes"])
}

func TestMemory_NestedPathScopesByParent(t *testing.T) {
	s := testStore()
	ctx := context.Background()

	_, err := s.Post(ctx, "solicitations/s1/comments", Doc{"text": "first"}, testIdentity())
	require.NoError(t, err)
	_, err = s.Post(ctx, "solicitations/s2/comments", Doc{"text": "other"}, testIdentity())
	require.NoError(t, err)

	got, err := s.Get(ctx, "solicitations/s1/comments", QueryOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "first", got[0]["text"])
	// parentId is bookkeeping, not part of the wire shape
	require.NotContains(t, got[0], "parentId")
}

func TestMemory_NestedEmptyListIsEmptyNotError(t *testing.T) {
	s := testStore()
	got, err := s.Get(context.Background(), "solicitations/nobody/comments", QueryOptions{})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMemory_InvalidPathSegments(t *testing.T) {
	s := testStore()
	_, err := s.Get(context.Background(), "a/b", QueryOptions{})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = s.Get(context.Background(), "a/b/c/d", QueryOptions{})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestMemory_FilterEquality(t *testing.T) {
	s := testStore()
	ctx := context.Background()

	for _, status := range []string{"new", "pursuing", "new"} {
		_, err := s.Post(ctx, "solicitations", Doc{"cnStatus": status}, nil)
		require.NoError(t, err)
	}

	got, err := s.Get(ctx, "solicitations", QueryOptions{
		Filters: map[string]interface{}{"cnStatus": "new"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	n, err := s.Count(ctx, "solicitations", QueryOptions{
		Filters: map[string]interface{}{"cnStatus": "pursuing"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestMemory_FilterArrayMeansAnyOf(t *testing.T) {
	s := testStore()
	ctx := context.Background()

	for _, status := range []string{"new", "pursuing", "awarded"} {
		_, err := s.Post(ctx, "solicitations", Doc{"cnStatus": status}, nil)
		require.NoError(t, err)
	}

	got, err := s.Get(ctx, "solicitations", QueryOptions{
		Filters: map[string]interface{}{"cnStatus": []interface{}{"new", "awarded"}},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestMemory_FilterDateRange(t *testing.T) {
	s := testStore()
	ctx := context.Background()

	_, err := s.Post(ctx, "solicitations", Doc{"publishDate": "2025-02-01"}, nil)
	require.NoError(t, err)
	_, err = s.Post(ctx, "solicitations", Doc{"publishDate": "2025-08-01"}, nil)
	require.NoError(t, err)

	got, err := s.Get(ctx, "solicitations", QueryOptions{
		Filters: map[string]interface{}{"publishDate": ">= 2025-01-01 AND < 2025-06-01"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestMemory_SortAndPagination(t *testing.T) {
	s := testStore()
	ctx := context.Background()

	for _, title := range []string{"b", "a", "c"} {
		_, err := s.Post(ctx, "solicitations", Doc{"title": title}, nil)
		require.NoError(t, err)
	}

	got, err := s.Get(ctx, "solicitations", QueryOptions{Sort: "title"})
	require.NoError(t, err)
	require.Equal(t, "a", got[0]["title"])
	require.Equal(t, "c", got[2]["title"])

	got, err = s.Get(ctx, "solicitations", QueryOptions{Sort: "title desc", Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "c", got[0]["title"])

	got, err = s.Get(ctx, "solicitations", QueryOptions{Sort: "title", Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "c", got[0]["title"])
}

func TestMemory_LastIDCursor(t *testing.T) {
	s := testStore()
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		doc, err := s.Post(ctx, "solicitations", Doc{"title": title}, nil)
		require.NoError(t, err)
		ids = append(ids, doc["id"].(string))
	}

	got, err := s.Get(ctx, "solicitations", QueryOptions{LastID: ids[0], Limit: 5})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, ids[1], got[0]["id"])
}

func TestMemory_GeoRoundTrip(t *testing.T) {
	s := testStore()
	ctx := context.Background()

	created, err := s.Post(ctx, "solicitations", Doc{
		"location": map[string]interface{}{"lat": 40.7, "lng": -74.0},
	}, nil)
	require.NoError(t, err)

	loc, ok := created["location"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, 40.7, loc["lat"])
	require.Equal(t, -74.0, loc["lng"])
}

func TestMemory_DateStringCoercion(t *testing.T) {
	s := testStore()
	ctx := context.Background()

	created, err := s.Post(ctx, "solicitations", Doc{"closingDate": "2025-09-01T12:00:00Z"}, nil)
	require.NoError(t, err)

	closing, ok := created["closingDate"].(time.Time)
	require.True(t, ok)
	require.Equal(t, time.September, closing.Month())
}

type rejectValidator struct{}

func (rejectValidator) Validate(collection string, doc Doc) error {
	if collection == "stats" {
		return apperr.Wrap(apperr.ErrValidation, "missing required fields")
	}
	return nil
}

func TestMemory_ValidatorBlocksWrite(t *testing.T) {
	s := NewMemory(Options{HiddenPrefix: "_"}, rejectValidator{})
	ctx := context.Background()

	_, err := s.Post(ctx, "stats", Doc{"value": 1}, nil)
	require.True(t, errors.Is(err, apperr.ErrValidation))

	n, err := s.Count(ctx, "stats", QueryOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}
