package store

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseQuery_Basics(t *testing.T) {
	values, err := url.ParseQuery("filters.cnStatus=new&sort=created desc&page=2&limit=50&lastId=abc&showPrivate=true&parentDbPath=solicitations/s1")
	require.NoError(t, err)

	q := ParseQuery(values)
	require.Equal(t, "new", q.Filters["cnStatus"])
	require.Equal(t, "created desc", q.Sort)
	require.Equal(t, 2, q.Page)
	require.Equal(t, 50, q.Limit)
	require.Equal(t, "abc", q.LastID)
	require.True(t, q.ShowPrivate)
	require.Equal(t, "solicitations/s1", q.ParentDBPath)
}

func TestParseQuery_Scalars(t *testing.T) {
	values, err := url.ParseQuery("filters.active=true&filters.archived=false&filters.score=7&filters.title=road work")
	require.NoError(t, err)

	q := ParseQuery(values)
	require.Equal(t, true, q.Filters["active"])
	require.Equal(t, false, q.Filters["archived"])
	require.Equal(t, 7, q.Filters["score"])
	require.Equal(t, "road work", q.Filters["title"])
}

func TestParseQuery_BracketArrays(t *testing.T) {
	values, err := url.ParseQuery("filters.cnStatus[]=new&filters.cnStatus[]=pursuing")
	require.NoError(t, err)

	q := ParseQuery(values)
	require.Equal(t, []interface{}{"new", "pursuing"}, q.Filters["cnStatus"])
}

func TestParseQuery_RepeatedKeyBecomesArray(t *testing.T) {
	values, err := url.ParseQuery("filters.cnType=erp&filters.cnType=staffing")
	require.NoError(t, err)

	q := ParseQuery(values)
	require.Equal(t, []interface{}{"erp", "staffing"}, q.Filters["cnType"])
}

func TestParseQuery_LimitZeroMeansUnlimited(t *testing.T) {
	values, err := url.ParseQuery("limit=0")
	require.NoError(t, err)

	q := ParseQuery(values)
	require.Equal(t, -1, q.Limit)
}

func TestFilterConds_PlainEquality(t *testing.T) {
	conds := filterConds("new")
	require.Len(t, conds, 1)
	require.Equal(t, "eq", conds[0].op)
	require.Equal(t, "new", conds[0].value)
}

func TestFilterConds_RangeExpression(t *testing.T) {
	conds := filterConds(">= 2025-01-01 AND < 2025-06-01")
	require.Len(t, conds, 2)
	require.Equal(t, "gte", conds[0].op)
	require.Equal(t, "lt", conds[1].op)

	from, ok := conds[0].value.(time.Time)
	require.True(t, ok)
	require.Equal(t, 2025, from.Year())
}

func TestFilterConds_NumericRange(t *testing.T) {
	conds := filterConds("> 5")
	require.Len(t, conds, 1)
	require.Equal(t, "gt", conds[0].op)
	require.Equal(t, 5.0, conds[0].value)
}
