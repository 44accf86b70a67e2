package detector

import (
	"context"

	"apiscope/detector/match"
	"apiscope/detector/models"
)

// Strategy is one protocol-family detector. Detect receives the full
// classified file list and the shared matching core; each strategy
// filters by its own candidate hint. Implementations accumulate into
// private state and must not share mutable data with other strategies.
type Strategy interface {
	// ID is the stable machine identifier, equal to the APIType it emits.
	ID() models.APIType
	Name() string
	Description() string
	Detect(ctx context.Context, files []models.ClassifiedFile, core *match.Core) ([]models.APIDefinition, []models.AnalysisError)
}

// StrategyInfo is one public catalog entry.
type StrategyInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry holds strategies in registration order. That order is the
// primary sort key of aggregated results, so it must stay fixed for a
// given engine.
type Registry struct {
	strategies []Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	return &Registry{strategies: strategies}
}

// All returns the registered strategies in order.
func (r *Registry) All() []Strategy {
	return r.strategies
}

// Order maps each strategy id to its registration index.
func (r *Registry) Order() map[models.APIType]int {
	order := make(map[models.APIType]int, len(r.strategies))
	for i, s := range r.strategies {
		order[s.ID()] = i
	}
	return order
}

// Catalog lists the registered strategies for the public catalog
// operation.
func (r *Registry) Catalog() []StrategyInfo {
	infos := make([]StrategyInfo, 0, len(r.strategies))
	for _, s := range r.strategies {
		infos = append(infos, StrategyInfo{
			ID:          string(s.ID()),
			Name:        s.Name(),
			Description: s.Description(),
		})
	}
	return infos
}
