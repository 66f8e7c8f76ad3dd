package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tsgate/internal/config"
	"tsgate/internal/filter"
	"tsgate/internal/logger"
	"tsgate/internal/search"
	"tsgate/internal/sse"
	"tsgate/internal/store"
	"tsgate/internal/storemodel"
	apperrors "tsgate/pkg/errors"
)

// SearchHandler adapts the two SSE search endpoints spec.md section 8
// describes onto search.Service, translating the wire query parameters
// into a storemodel.SearchRequest and the response into an sse.Writer.
type SearchHandler struct {
	service *search.Service
	cfg     config.SearchConfig
	log     logger.Logger
}

func NewSearchHandler(service *search.Service, cfg config.SearchConfig, log logger.Logger) *SearchHandler {
	return &SearchHandler{service: service, cfg: cfg, log: log}
}

// knownFilterKinds is the closed set of filter names a {name}-negative,
// {name}-conjunct, {name}-values query parameter triple may address.
var knownFilterKinds = []filter.Kind{
	filter.KindEventText,
	filter.KindAttachedMessageId,
	filter.KindAttachedEventId,
	filter.KindMessageType,
	filter.KindMessageBodyText,
	filter.KindMessageBodyBinary,
	filter.KindParentEvent,
	filter.KindAttachedEventIds,
}

func (h *SearchHandler) SearchEvents(c *gin.Context) {
	req, err := parseSearchRequest(c, h.cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	writer := h.newWriter(c)
	ctx := store.WithSSEMode(c.Request.Context())
	if err := h.service.SearchEvents(ctx, req, writer); err != nil {
		h.log.WarnwCtx(c.Request.Context(), "search events terminated with error", "error", err)
	}
}

func (h *SearchHandler) SearchMessages(c *gin.Context) {
	req, err := parseSearchRequest(c, h.cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	writer := h.newWriter(c)
	ctx := store.WithSSEMode(c.Request.Context())
	if err := h.service.SearchMessages(ctx, req, writer); err != nil {
		h.log.WarnwCtx(c.Request.Context(), "search messages terminated with error", "error", err)
	}
}

// newWriter sets the text/event-stream headers before handing the
// response writer to sse.Writer; once the first frame is flushed the
// status code can no longer change, so errors from here on are reported
// as error/close frames rather than HTTP status codes.
func (h *SearchHandler) newWriter(c *gin.Context) *sse.Writer {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	keepAlive := time.Duration(h.cfg.KeepAliveTimeoutMs) * time.Millisecond
	return sse.NewWriter(c.Writer, keepAlive, h.log)
}

// parseSearchRequest builds a storemodel.SearchRequest from the wire query
// parameters spec.md section 8 names: startTimestamp, endTimestamp,
// resumeFromId, repeatable stream, searchDirection, resultCountLimit,
// keepOpen, metadataOnly, attachedMessages, limitForParent,
// lookupLimitDays, parentEvent, per-filter {name}-negative/-conjunct/
// -values, plus the added filterPreset parameter.
func parseSearchRequest(c *gin.Context, cfg config.SearchConfig) (storemodel.SearchRequest, error) {
	req := storemodel.SearchRequest{
		FilterPresetName: c.Query("filterPreset"),
	}

	switch c.DefaultQuery("searchDirection", "next") {
	case "next":
		req.Direction = storemodel.DirectionAfter
	case "previous":
		req.Direction = storemodel.DirectionBefore
	default:
		return req, apperrors.ErrInvalidRequest.WithDetail("message", "searchDirection must be next or previous")
	}

	if v := c.Query("startTimestamp"); v != "" {
		ts, err := parseTimestamp(v)
		if err != nil {
			return req, apperrors.ErrInvalidRequest.WithDetail("message", "invalid startTimestamp").WithCause(err)
		}
		req.StartTimestamp = &ts
	}
	if v := c.Query("endTimestamp"); v != "" {
		ts, err := parseTimestamp(v)
		if err != nil {
			return req, apperrors.ErrInvalidRequest.WithDetail("message", "invalid endTimestamp").WithCause(err)
		}
		req.EndTimestamp = &ts
	}

	req.ResumeFromId = c.Query("resumeFromId")

	for _, s := range c.QueryArray("stream") {
		req.Streams = append(req.Streams, parseStreamKey(s))
	}

	if v := c.Query("parentEvent"); v != "" {
		req.ParentEvent = parseProviderEventId(v)
	}

	var err error
	req.Limit, err = parseOptionalInt(c.Query("resultCountLimit"))
	if err != nil {
		return req, apperrors.ErrInvalidRequest.WithDetail("message", "invalid resultCountLimit").WithCause(err)
	}
	if req.Limit == nil && cfg.DefaultResultCountLimit > 0 {
		limit := cfg.DefaultResultCountLimit
		req.Limit = &limit
	}

	req.LimitForParent, err = parseOptionalInt(c.Query("limitForParent"))
	if err != nil {
		return req, apperrors.ErrInvalidRequest.WithDetail("message", "invalid limitForParent").WithCause(err)
	}
	if req.LimitForParent == nil && cfg.DefaultLimitForParent > 0 {
		limit := cfg.DefaultLimitForParent
		req.LimitForParent = &limit
	}

	req.LookupLimitDays, err = parseOptionalInt(c.Query("lookupLimitDays"))
	if err != nil {
		return req, apperrors.ErrInvalidRequest.WithDetail("message", "invalid lookupLimitDays").WithCause(err)
	}
	if req.LookupLimitDays == nil && cfg.DefaultLookupLimitDays > 0 {
		days := cfg.DefaultLookupLimitDays
		req.LookupLimitDays = &days
	}

	req.KeepOpen = parseBool(c.Query("keepOpen"))
	req.MetadataOnly = parseBool(c.Query("metadataOnly"))
	req.AttachedMessages = parseBool(c.Query("attachedMessages"))

	req.Filters = parseFilterParams(c)

	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

func parseTimestamp(v string) (time.Time, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339Nano, v)
}

func parseOptionalInt(v string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

// parseStreamKey accepts "name" (defaulting to the FIRST side) or
// "name:FIRST"/"name:SECOND", mirroring storemodel.StreamKey.String().
func parseStreamKey(v string) storemodel.StreamKey {
	name, dir, found := strings.Cut(v, ":")
	if !found {
		return storemodel.StreamKey{Name: name, Direction: storemodel.StreamFirst}
	}
	return storemodel.StreamKey{Name: name, Direction: storemodel.StreamSubDirection(dir)}
}

// parseProviderEventId accepts "batchId:eventId" for a batched event or a
// bare eventId for a non-batched one; spec.md leaves the wire shape of
// parentEvent undefined beyond the ProviderEventId{BatchId, EventId} pair.
func parseProviderEventId(v string) storemodel.ProviderEventId {
	batchId, eventId, found := strings.Cut(v, ":")
	if !found {
		return storemodel.ProviderEventId{EventId: storemodel.EventId(v)}
	}
	return storemodel.ProviderEventId{BatchId: batchId, EventId: storemodel.EventId(eventId)}
}

// parseFilterParams scans the closed set of filter kinds for their
// {name}-negative/{name}-conjunct/{name}-values query parameter triple.
// A filter kind with no -values present is treated as not requested.
func parseFilterParams(c *gin.Context) map[string]storemodel.FilterParam {
	filters := make(map[string]storemodel.FilterParam)
	for _, kind := range knownFilterKinds {
		name := string(kind)
		values := c.QueryArray(name + "-values")
		if len(values) == 0 {
			continue
		}
		filters[name] = storemodel.FilterParam{
			Negative: parseBool(c.Query(name + "-negative")),
			Conjunct: parseBool(c.Query(name + "-conjunct")),
			Values:   values,
		}
	}
	return filters
}
