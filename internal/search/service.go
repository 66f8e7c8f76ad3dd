package search

import (
	"context"

	"github.com/google/uuid"

	"tsgate/internal/codec"
	"tsgate/internal/config"
	"tsgate/internal/eventsearch"
	"tsgate/internal/filter"
	"tsgate/internal/logger"
	"tsgate/internal/messagestream"
	"tsgate/internal/sse"
	"tsgate/internal/store"
)

// AuditRecord is the search-audit payload of SPEC_FULL.md section 3.2,
// kept local to this package so internal/audit can implement AuditRecorder
// without search importing it back.
type AuditRecord struct {
	SearchId          string
	Direction         string
	StreamCount       int
	EmittedCount      int
	ResumeFromId      string
	DurationMs        int64
	TerminalErrorKind string
}

type AuditRecorder interface {
	Record(ctx context.Context, rec AuditRecord)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditRecord) {}

// PresetEvaluator resolves SPEC_FULL.md section 3.1's named filter
// presets, kept local to this package the same way AuditRecorder is so
// search never imports internal/filterpreset back.
type PresetEvaluator interface {
	Evaluate(ctx context.Context, presetName string, results map[filter.Kind]bool) (bool, error)
}

type noopPresetEvaluator struct{}

func (noopPresetEvaluator) Evaluate(context.Context, string, map[filter.Kind]bool) (bool, error) {
	return true, nil
}

// Service is the top-level orchestration of spec.md section 5: it wires
// StoreGateway, EventSearchEngine, MessageStreamInitializer/Extractor,
// CodecBroker/Pipeline, StreamMerger, FilterPipeline, and SseWriter into
// the two public operations, SearchEvents and SearchMessages.
type Service struct {
	gateway       store.StoreGateway
	engine        *eventsearch.Engine
	initializer   *messagestream.Initializer
	codecPipeline *codec.Pipeline
	cfg           config.SearchConfig
	audit         AuditRecorder
	presets       PresetEvaluator
	log           logger.Logger
}

func NewService(
	gateway store.StoreGateway,
	engine *eventsearch.Engine,
	initializer *messagestream.Initializer,
	codecPipeline *codec.Pipeline,
	cfg config.SearchConfig,
	audit AuditRecorder,
	log logger.Logger,
) *Service {
	if audit == nil {
		audit = noopAuditRecorder{}
	}
	return &Service{
		gateway:       gateway,
		engine:        engine,
		initializer:   initializer,
		codecPipeline: codecPipeline,
		cfg:           cfg,
		audit:         audit,
		presets:       noopPresetEvaluator{},
		log:           log,
	}
}

// WithPresetEvaluator wires SPEC_FULL.md section 3.1's named filter
// presets into a Service built by NewService. Optional: without it, a
// request naming a filterPreset is still accepted, it just never narrows
// the result (noopPresetEvaluator always passes).
func (s *Service) WithPresetEvaluator(presets PresetEvaluator) *Service {
	s.presets = presets
	return s
}

// matchesFilters evaluates pipeline's closed-set filters against el, then
// narrows further by presetName if one was requested (SPEC_FULL.md
// section 3.1). The preset only ever narrows: a request without filters
// exposes an empty per-kind result map to the preset, same as before.
func (s *Service) matchesFilters(ctx context.Context, pipeline *filter.Pipeline, el filter.Element, presetName string) (bool, error) {
	results := pipeline.ApplyByKind(el)
	if !filter.AllPass(results) {
		return false, nil
	}
	if presetName == "" {
		return true, nil
	}
	return s.presets.Evaluate(ctx, presetName, results)
}

func newSearchId() string {
	return uuid.NewString()
}

func writeTerminal(ctx context.Context, writer *sse.Writer, err error, log logger.Logger) {
	kind := kindOf(err)
	log.ErrorwCtx(ctx, "search terminated", "error", err, "kind", kind)
	_ = writer.WriteError(kind, err.Error())
	_ = writer.WriteClose()
}
