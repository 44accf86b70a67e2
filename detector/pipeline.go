package detector

import (
	"context"

	"apiscope/detector/models"
	"apiscope/workspace"
)

// AnalyzeStaged runs an analysis over a previously staged workspace,
// holding a lease for the whole run so the sweeper cannot reclaim the
// directory mid-analysis. Ingestion failures (unknown workspace,
// unreadable tree) come back as a report with a single fatal ingestion
// error rather than a Go error; callers always get a report.
func (e *Engine) AnalyzeStaged(ctx context.Context, manager *workspace.Manager, requestID, projectName string, source models.SourceDescriptor) *models.AnalysisResult {
	ws, ok := manager.Get(requestID)
	if !ok {
		return e.ingestionFailure(projectName, source, requestID, "workspace not found")
	}

	release, err := manager.Lease(ws.ID)
	if err != nil {
		return e.ingestionFailure(projectName, source, requestID, err.Error())
	}
	defer release()

	snapshot, err := NewSnapshotFromDir(ws.Path)
	if err != nil {
		return e.ingestionFailure(projectName, source, requestID, err.Error())
	}
	return e.Analyze(ctx, snapshot, projectName, source)
}

func (e *Engine) ingestionFailure(projectName string, source models.SourceDescriptor, reference, message string) *models.AnalysisResult {
	result := e.Analyze(context.Background(), nil, projectName, source)
	result.Errors = []models.AnalysisError{{
		Category:  models.ErrIngestion,
		Reference: reference,
		Message:   message,
	}}
	return result
}
