package detector

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"apiscope/detector/match"
	"apiscope/detector/models"
)

var restRules = match.NewRuleSet(
	match.Rule{
		ID: "fastapi_route", Language: "python", Protocol: models.TypeREST,
		Pattern: regexp.MustCompile(`@(?:app|router)\.(?P<method>get|post|put|delete|patch|options|head)\(\s*["'](?P<path>[^"']+)["']`),
	},
	match.Rule{
		ID: "flask_route", Language: "python", Protocol: models.TypeREST,
		Pattern: regexp.MustCompile(`@(?:app|bp|blueprint)\.route\(\s*["'](?P<path>[^"']+)["'](?:[^)]*?methods\s*=\s*\[(?P<methods>[^\]]*)\])?`),
	},
	match.Rule{
		ID: "express_route", Language: "javascript", Protocol: models.TypeREST,
		Pattern: regexp.MustCompile("(?:app|router)\\.(?P<method>get|post|put|delete|patch|options|head|all)\\(\\s*[\"'`](?P<path>[^\"'`]+)[\"'`]"),
	},
	match.Rule{
		ID: "express_route", Language: "typescript", Protocol: models.TypeREST,
		Pattern: regexp.MustCompile("(?:app|router)\\.(?P<method>get|post|put|delete|patch|options|head|all)\\(\\s*[\"'`](?P<path>[^\"'`]+)[\"'`]"),
	},
	match.Rule{
		ID: "spring_route", Language: "java", Protocol: models.TypeREST,
		Pattern: regexp.MustCompile(`@(?P<annotation>Get|Post|Put|Delete|Patch|Request)Mapping\(\s*(?:value\s*=\s*)?["'](?P<path>[^"']+)["']`),
	},
	match.Rule{
		ID: "aspnet_route", Language: "csharp", Protocol: models.TypeREST,
		Pattern: regexp.MustCompile(`\[Http(?P<method>Get|Post|Put|Delete|Patch)(?:\(\s*"(?P<path>[^"]+)"\s*\))?\]`),
	},
	match.Rule{
		ID: "gin_route", Language: "go", Protocol: models.TypeREST,
		Pattern: regexp.MustCompile(`\b\w+\.(?P<method>GET|POST|PUT|DELETE|PATCH|OPTIONS|HEAD)\(\s*"(?P<path>[^"]+)"`),
	},
	match.Rule{
		ID: "nethttp_handle", Language: "go", Protocol: models.TypeREST,
		Pattern: regexp.MustCompile(`\b(?:http|mux)\.(?:Handle|HandleFunc)\(\s*"(?P<path>[^"]+)"`),
	},
	match.Rule{
		ID: "rails_route", Language: "ruby", Protocol: models.TypeREST,
		Pattern: regexp.MustCompile(`(?m)^\s*(?P<method>get|post|put|delete|patch)\s+["'](?P<path>[^"']+)["']`),
	},
)

// pathParamPattern covers the three common path template styles:
// {id}, :id and Flask's <converter:id>.
var pathParamPattern = regexp.MustCompile(`\{(\w+)\}|:(\w+)|<(?:(\w+):)?(\w+)>`)

// restDetector locates HTTP route registrations across the supported
// web frameworks and records one endpoint per registration site.
type restDetector struct{}

func NewRESTDetector() Strategy { return restDetector{} }

func (restDetector) ID() models.APIType { return models.TypeREST }
func (restDetector) Name() string       { return "REST routes" }
func (restDetector) Description() string {
	return "HTTP route registrations (FastAPI, Flask, Express, Spring, ASP.NET, Gin, net/http, Rails)"
}

func (d restDetector) Detect(ctx context.Context, files []models.ClassifiedFile, core *match.Core) ([]models.APIDefinition, []models.AnalysisError) {
	var defs []models.APIDefinition
	for _, cf := range files {
		if ctx.Err() != nil {
			break
		}
		if !cf.IsCandidate(models.TypeREST) {
			continue
		}
		content, err := cf.File.Content()
		if err != nil {
			continue
		}
		for _, cand := range restRules.Scan(cf.Language, content) {
			if cand.Rule.Protocol != models.TypeREST {
				continue
			}
			confidence, ok := core.Confirm(ctx, cf.Language, content, cand.Offset)
			if !ok {
				continue
			}
			defs = append(defs, d.buildEndpoint(ctx, cf, core, content, cand, confidence))
		}
	}
	return defs, nil
}

func (d restDetector) buildEndpoint(ctx context.Context, cf models.ClassifiedFile, core *match.Core, content []byte, cand match.Candidate, confidence models.Confidence) models.APIDefinition {
	method, routePath := resolveMethodAndPath(cand)
	params := pathParams(routePath)
	if cf.Language == "python" {
		params = appendQueryParams(params, core.FunctionParams(ctx, cf.Language, content, cand.Offset))
	}

	return models.APIDefinition{
		Name:       fmt.Sprintf("%s %s", method, routePath),
		Type:       models.TypeREST,
		Confidence: confidence,
		SourceFile: cf.File.Path,
		SourceLine: cand.Line,
		REST: &models.RESTEndpoint{
			Path:       routePath,
			Method:     method,
			Parameters: params,
		},
	}
}

// resolveMethodAndPath normalizes the per-framework capture groups down
// to a single HTTP method and path. Registrations that name no method
// default to GET.
func resolveMethodAndPath(cand match.Candidate) (string, string) {
	routePath := cand.Groups["path"]
	if routePath == "" {
		routePath = "/"
	}

	switch cand.Rule.ID {
	case "flask_route":
		if list := cand.Groups["methods"]; list != "" {
			if first := firstQuoted(list); first != "" {
				return strings.ToUpper(first), routePath
			}
		}
		return "GET", routePath
	case "spring_route":
		if ann := cand.Groups["annotation"]; ann != "" && ann != "Request" {
			return strings.ToUpper(ann), routePath
		}
		return "GET", routePath
	case "nethttp_handle":
		// mux patterns may carry a "METHOD /path" prefix since go1.22.
		if m, p, ok := strings.Cut(routePath, " "); ok && isHTTPMethod(m) {
			return m, p
		}
		return "GET", routePath
	}

	if method := cand.Groups["method"]; method != "" && method != "all" {
		return strings.ToUpper(method), routePath
	}
	return "GET", routePath
}

func isHTTPMethod(s string) bool {
	switch s {
	case "GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS", "HEAD":
		return true
	}
	return false
}

func firstQuoted(list string) string {
	for _, part := range strings.Split(list, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"'`)
		if part != "" {
			return part
		}
	}
	return ""
}

// pathParams extracts path template parameters, mapping Flask converter
// names onto JSON-schema style types.
func pathParams(routePath string) []models.Parameter {
	var params []models.Parameter
	for _, m := range pathParamPattern.FindAllStringSubmatch(routePath, -1) {
		name := m[1]
		paramType := "string"
		if name == "" {
			name = m[2]
		}
		if name == "" {
			name = m[4]
			switch m[3] {
			case "int":
				paramType = "integer"
			case "float":
				paramType = "number"
			}
		}
		params = append(params, models.Parameter{
			Name:     name,
			Required: true,
			Type:     paramType,
			Location: "path",
		})
	}
	return params
}

// appendQueryParams treats handler arguments that are not path
// parameters as optional query parameters.
func appendQueryParams(params []models.Parameter, handlerArgs []string) []models.Parameter {
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		seen[p.Name] = true
	}
	for _, arg := range handlerArgs {
		if seen[arg] || arg == "request" || arg == "response" {
			continue
		}
		params = append(params, models.Parameter{
			Name:     arg,
			Required: false,
			Type:     "string",
			Location: "query",
		})
	}
	return params
}
