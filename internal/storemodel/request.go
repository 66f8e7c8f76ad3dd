package storemodel

import (
	"time"

	apperrors "tsgate/pkg/errors"
)

// FilterParam is one named predicate parameter as received over the wire:
// {name}-negative, {name}-conjunct, {name}-values.
type FilterParam struct {
	Negative bool
	Conjunct bool
	Values   []string
}

// SearchRequest is the validated input to SearchEvents/SearchMessages.
type SearchRequest struct {
	Direction        Direction
	StartTimestamp   *time.Time
	EndTimestamp     *time.Time
	ResumeFromId     string
	Streams          []StreamKey
	ParentEvent      ProviderEventId
	Filters          map[string]FilterParam
	FilterPresetName string
	Limit            *int
	LimitForParent   *int
	KeepOpen         bool
	MetadataOnly     bool
	AttachedMessages bool
	LookupLimitDays  *int
}

// Validate enforces spec.md section 3: at least one of startTimestamp or
// resumeFromId must be present, and start/end must be direction-consistent.
func (r SearchRequest) Validate() error {
	if !r.Direction.Valid() {
		return apperrors.ErrInvalidRequest.WithDetail("message", "direction must be AFTER or BEFORE")
	}
	if r.StartTimestamp == nil && r.ResumeFromId == "" {
		return apperrors.ErrInvalidRequest.WithDetail("message", "one of startTimestamp or resumeFromId is required")
	}
	if r.StartTimestamp != nil && r.EndTimestamp != nil {
		if r.Direction == DirectionAfter && r.StartTimestamp.After(*r.EndTimestamp) {
			return apperrors.ErrInvalidRequest.WithDetail("message", "AFTER requires startTimestamp <= endTimestamp")
		}
		if r.Direction == DirectionBefore && r.StartTimestamp.Before(*r.EndTimestamp) {
			return apperrors.ErrInvalidRequest.WithDetail("message", "BEFORE requires startTimestamp >= endTimestamp")
		}
	}
	return nil
}

func (r SearchRequest) HasResume() bool {
	return r.ResumeFromId != ""
}
