package detector

import (
	"context"
	"fmt"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"apiscope/detector/match"
	"apiscope/detector/models"
)

// openapiDetector validates OpenAPI/Swagger candidates as whole
// documents. A candidate that fails to parse, or parses but lacks the
// root markers, is a malformed artifact rather than a miss.
type openapiDetector struct{}

func NewOpenAPIDetector() Strategy { return openapiDetector{} }

func (openapiDetector) ID() models.APIType { return models.TypeOpenAPI }
func (openapiDetector) Name() string       { return "OpenAPI documents" }
func (openapiDetector) Description() string {
	return "OpenAPI and Swagger specification documents (YAML or JSON)"
}

func (openapiDetector) Detect(ctx context.Context, files []models.ClassifiedFile, _ *match.Core) ([]models.APIDefinition, []models.AnalysisError) {
	var (
		defs []models.APIDefinition
		errs []models.AnalysisError
	)
	for _, cf := range files {
		if ctx.Err() != nil {
			break
		}
		if !cf.IsCandidate(models.TypeOpenAPI) {
			continue
		}
		content, err := cf.File.Content()
		if err != nil {
			continue
		}

		var doc map[string]any
		if err := yaml.Unmarshal(content, &doc); err != nil {
			errs = append(errs, models.AnalysisError{
				Category:  models.ErrArtifact,
				Reference: cf.File.Path,
				Message:   fmt.Sprintf("document parse failed: %v", err),
			})
			continue
		}

		version := rootVersion(doc)
		pathsNode, hasPaths := doc["paths"].(map[string]any)
		if version == "" || !hasPaths {
			errs = append(errs, models.AnalysisError{
				Category:  models.ErrArtifact,
				Reference: cf.File.Path,
				Message:   "document lacks openapi/swagger version or paths",
			})
			continue
		}

		paths := make([]string, 0, len(pathsNode))
		for p := range pathsNode {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		title := docTitle(doc)
		name := title
		if name == "" {
			name = path.Base(cf.File.Path)
		}
		defs = append(defs, models.APIDefinition{
			Name:       name,
			Type:       models.TypeOpenAPI,
			Confidence: models.ConfidenceStructural,
			SourceFile: cf.File.Path,
			SourceLine: 1,
			OpenAPI: &models.OpenAPISpec{
				Version: version,
				Title:   title,
				Paths:   paths,
			},
		})
	}
	return defs, errs
}

func rootVersion(doc map[string]any) string {
	if v, ok := doc["openapi"].(string); ok {
		return v
	}
	if v, ok := doc["swagger"].(string); ok {
		return v
	}
	return ""
}

func docTitle(doc map[string]any) string {
	info, ok := doc["info"].(map[string]any)
	if !ok {
		return ""
	}
	title, _ := info["title"].(string)
	return title
}
