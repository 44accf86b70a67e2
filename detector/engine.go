package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"apiscope/detector/match"
	"apiscope/detector/models"
)

// Engine runs every registered strategy over a snapshot and assembles
// the final report. One Engine is safe for concurrent Analyze calls;
// the strategies and matching core carry no per-request state.
type Engine struct {
	registry   *Registry
	classifier *Classifier
	core       *match.Core
	logger     *zap.Logger
}

// New builds an engine with the built-in strategies in their fixed
// registration order.
func New(limits Limits, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry: NewRegistry(
			NewRESTDetector(),
			NewWebSocketDetector(),
			NewGRPCDetector(),
			NewGraphQLDetector(),
			NewOpenAPIDetector(),
		),
		classifier: NewClassifier(limits, logger),
		core:       match.NewCore(),
		logger:     logger,
	}
}

// Catalog lists the registered strategies.
func (e *Engine) Catalog() []StrategyInfo {
	return e.registry.Catalog()
}

// Close releases the matching core's cached parse trees.
func (e *Engine) Close() {
	e.core.Close()
}

// Analyze inventories the API surface of a snapshot. Only an unusable
// snapshot is fatal; everything downstream degrades into recorded
// errors. Strategies run concurrently over the shared classified file
// list, and a panicking strategy is confined to one detector error.
func (e *Engine) Analyze(ctx context.Context, snapshot *models.SourceSnapshot, projectName string, source models.SourceDescriptor) *models.AnalysisResult {
	result := &models.AnalysisResult{
		ProjectName: projectName,
		Source:      source.Kind,
		SourceInfo:  source.Info,
		APIs:        []models.APIDefinition{},
		Stats:       models.NewStats(),
		Errors:      []models.AnalysisError{},
		AnalyzedAt:  time.Now().UTC(),
	}

	if snapshot == nil {
		result.Errors = append(result.Errors, models.AnalysisError{
			Category:  models.ErrIngestion,
			Reference: projectName,
			Message:   "no snapshot provided",
		})
		return result
	}

	files, classErrs := e.classifier.Classify(ctx, snapshot)
	result.Errors = append(result.Errors, classErrs...)

	var (
		mu      sync.Mutex
		allDefs []models.APIDefinition
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, strategy := range e.registry.All() {
		strategy := strategy
		g.Go(func() error {
			defs, errs := e.runStrategy(gctx, strategy, files)
			mu.Lock()
			allDefs = append(allDefs, defs...)
			result.Errors = append(result.Errors, errs...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	result.APIs = aggregate(e.registry.Order(), allDefs)
	for i := range result.APIs {
		def := &result.APIs[i]
		def.ID = definitionID(def)
		def.DetectedAt = result.AnalyzedAt
	}
	result.Recount()

	e.logger.Info("analysis complete",
		zap.String("project", projectName),
		zap.Int("files", len(files)),
		zap.Int("apis", len(result.APIs)),
		zap.Int("errors", len(result.Errors)))
	return result
}

// runStrategy isolates one strategy: a panic becomes a single detector
// error and the strategy contributes no definitions.
func (e *Engine) runStrategy(ctx context.Context, strategy Strategy, files []models.ClassifiedFile) (defs []models.APIDefinition, errs []models.AnalysisError) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("strategy panicked",
				zap.String("strategy", string(strategy.ID())),
				zap.Any("panic", r))
			defs = nil
			errs = []models.AnalysisError{{
				Category:  models.ErrDetector,
				Reference: string(strategy.ID()),
				Message:   fmt.Sprintf("strategy panicked: %v", r),
			}}
		}
	}()
	return strategy.Detect(ctx, files, e.core)
}

// definitionID derives a stable id from the definition's identity
// fields, so re-running an analysis over unchanged sources yields
// identical ids.
func definitionID(def *models.APIDefinition) string {
	key := fmt.Sprintf("%s|%s|%d|%s", def.Type, def.SourceFile, def.SourceLine, def.Name)
	return fmt.Sprintf("%016x", xxh3.HashString(key))
}
