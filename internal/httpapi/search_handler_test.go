package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsgate/internal/config"
	"tsgate/internal/filter"
	"tsgate/internal/storemodel"
)

func newTestContext(t *testing.T, rawQuery string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	req := httptest.NewRequest("GET", "/events?"+rawQuery, nil)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	return c
}

func TestParseSearchRequest_Defaults(t *testing.T) {
	c := newTestContext(t, "startTimestamp=1700000000000")
	req, err := parseSearchRequest(c, config.SearchConfig{})
	require.NoError(t, err)

	assert.Equal(t, storemodel.DirectionAfter, req.Direction)
	require.NotNil(t, req.StartTimestamp)
	assert.Empty(t, req.Streams)
	assert.False(t, req.KeepOpen)
	assert.False(t, req.MetadataOnly)
}

func TestParseSearchRequest_PreviousDirection(t *testing.T) {
	c := newTestContext(t, "startTimestamp=1700000000000&searchDirection=previous")
	req, err := parseSearchRequest(c, config.SearchConfig{})
	require.NoError(t, err)
	assert.Equal(t, storemodel.DirectionBefore, req.Direction)
}

func TestParseSearchRequest_InvalidDirection(t *testing.T) {
	c := newTestContext(t, "startTimestamp=1700000000000&searchDirection=sideways")
	_, err := parseSearchRequest(c, config.SearchConfig{})
	assert.Error(t, err)
}

func TestParseSearchRequest_MissingStartAndResume(t *testing.T) {
	c := newTestContext(t, "searchDirection=next")
	_, err := parseSearchRequest(c, config.SearchConfig{})
	assert.Error(t, err)
}

func TestParseSearchRequest_Streams(t *testing.T) {
	c := newTestContext(t, "startTimestamp=1700000000000&stream=alpha&stream=beta:SECOND")
	req, err := parseSearchRequest(c, config.SearchConfig{})
	require.NoError(t, err)
	require.Len(t, req.Streams, 2)
	assert.Equal(t, storemodel.StreamKey{Name: "alpha", Direction: storemodel.StreamFirst}, req.Streams[0])
	assert.Equal(t, storemodel.StreamKey{Name: "beta", Direction: storemodel.StreamSecond}, req.Streams[1])
}

func TestParseSearchRequest_ParentEventBatched(t *testing.T) {
	c := newTestContext(t, "startTimestamp=1700000000000&parentEvent=batch-1:event-9")
	req, err := parseSearchRequest(c, config.SearchConfig{})
	require.NoError(t, err)
	assert.True(t, req.ParentEvent.IsBatched())
	assert.Equal(t, "batch-1", req.ParentEvent.BatchId)
	assert.Equal(t, storemodel.EventId("event-9"), req.ParentEvent.EventId)
}

func TestParseSearchRequest_ParentEventBare(t *testing.T) {
	c := newTestContext(t, "startTimestamp=1700000000000&parentEvent=event-9")
	req, err := parseSearchRequest(c, config.SearchConfig{})
	require.NoError(t, err)
	assert.False(t, req.ParentEvent.IsBatched())
	assert.Equal(t, storemodel.EventId("event-9"), req.ParentEvent.EventId)
}

func TestParseSearchRequest_Filters(t *testing.T) {
	c := newTestContext(t, "startTimestamp=1700000000000&eventText-values=foo&eventText-values=bar&eventText-negative=true")
	req, err := parseSearchRequest(c, config.SearchConfig{})
	require.NoError(t, err)

	f, ok := req.Filters[string(filter.KindEventText)]
	require.True(t, ok)
	assert.True(t, f.Negative)
	assert.False(t, f.Conjunct)
	assert.Equal(t, []string{"foo", "bar"}, f.Values)
}

func TestParseSearchRequest_UnknownFilterIgnored(t *testing.T) {
	c := newTestContext(t, "startTimestamp=1700000000000&notAFilter-values=x")
	req, err := parseSearchRequest(c, config.SearchConfig{})
	require.NoError(t, err)
	assert.Empty(t, req.Filters)
}

func TestParseSearchRequest_DefaultsFromConfig(t *testing.T) {
	c := newTestContext(t, "startTimestamp=1700000000000")
	req, err := parseSearchRequest(c, config.SearchConfig{
		DefaultResultCountLimit: 50,
		DefaultLimitForParent:   5,
		DefaultLookupLimitDays:  7,
	})
	require.NoError(t, err)
	require.NotNil(t, req.Limit)
	assert.Equal(t, 50, *req.Limit)
	require.NotNil(t, req.LimitForParent)
	assert.Equal(t, 5, *req.LimitForParent)
	require.NotNil(t, req.LookupLimitDays)
	assert.Equal(t, 7, *req.LookupLimitDays)
}

// TestParseSearchRequest_ResultCountLimitPopulatesLimit pins resultCountLimit,
// the single wire parameter spec.md section 6 names, to the one field
// eventsearch.Engine.Search and search.Service.SearchMessages both read:
// SearchRequest no longer carries a second, separately-populated
// ResultCountLimit field that the /events path alone consumed.
func TestParseSearchRequest_ResultCountLimitPopulatesLimit(t *testing.T) {
	c := newTestContext(t, "startTimestamp=1700000000000&resultCountLimit=5")
	req, err := parseSearchRequest(c, config.SearchConfig{DefaultResultCountLimit: 50})
	require.NoError(t, err)
	require.NotNil(t, req.Limit)
	assert.Equal(t, 5, *req.Limit)
}

func TestParseSearchRequest_FilterPresetName(t *testing.T) {
	c := newTestContext(t, "startTimestamp=1700000000000&filterPreset=incidents-only")
	req, err := parseSearchRequest(c, config.SearchConfig{})
	require.NoError(t, err)
	assert.Equal(t, "incidents-only", req.FilterPresetName)
}
