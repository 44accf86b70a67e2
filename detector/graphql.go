package detector

import (
	"context"
	"regexp"
	"strings"

	"apiscope/detector/match"
	"apiscope/detector/models"
)

var (
	sdlTypePattern  = regexp.MustCompile(`(?ms)^\s*(?:extend\s+)?type\s+(\w+)[^{]*\{(.*?)^\s*\}`)
	sdlFieldPattern = regexp.MustCompile(`^\s*(\w+)(\([^)]*\))?\s*:\s*([\[\]\w!]+)`)

	gqlTemplatePattern = regexp.MustCompile("(?s)\\bgql\\s*`(.*?)`")
	gqlObjectPattern   = regexp.MustCompile(`new\s+GraphQLObjectType\s*\(\s*\{[^}]*?name\s*:\s*["'](\w+)["']`)
)

// graphqlDetector handles both schema-first sources (SDL files) and
// code-first ones (gql template literals, graphql-js object types). One
// definition is emitted per contributing file.
type graphqlDetector struct{}

func NewGraphQLDetector() Strategy { return graphqlDetector{} }

func (graphqlDetector) ID() models.APIType { return models.TypeGraphQL }
func (graphqlDetector) Name() string       { return "GraphQL schemas" }
func (graphqlDetector) Description() string {
	return "SDL type definitions and code-first schema constructions"
}

func (d graphqlDetector) Detect(ctx context.Context, files []models.ClassifiedFile, core *match.Core) ([]models.APIDefinition, []models.AnalysisError) {
	var defs []models.APIDefinition
	for _, cf := range files {
		if ctx.Err() != nil {
			break
		}
		if !cf.IsCandidate(models.TypeGraphQL) {
			continue
		}
		content, err := cf.File.Content()
		if err != nil {
			continue
		}

		var def *models.APIDefinition
		if cf.Language == "graphql" {
			def = d.detectSDL(cf, content)
		} else {
			def = d.detectCodeFirst(ctx, cf, core, content)
		}
		if def != nil {
			defs = append(defs, *def)
		}
	}
	return defs, nil
}

func (graphqlDetector) detectSDL(cf models.ClassifiedFile, content []byte) *models.APIDefinition {
	payload, line := parseSDL(string(content), 1)
	if payload == nil {
		return nil
	}
	return &models.APIDefinition{
		Name:       "GraphQL schema",
		Type:       models.TypeGraphQL,
		Confidence: models.ConfidenceStructural,
		SourceFile: cf.File.Path,
		SourceLine: line,
		GraphQL:    payload,
	}
}

// detectCodeFirst pulls SDL out of gql template literals and records
// graphql-js object type names. Each site is confirmed at its call
// position; the template body itself is never structurally validated,
// so the definition's confidence is the weakest across its sites. The
// first confirmed site anchors the definition's line.
func (graphqlDetector) detectCodeFirst(ctx context.Context, cf models.ClassifiedFile, core *match.Core, content []byte) *models.APIDefinition {
	merged := &models.GraphQLAPI{}
	firstLine := 0
	text := string(content)

	var confidence models.Confidence
	mergeConfidence := func(c models.Confidence) {
		if confidence == "" || c == models.ConfidenceTextual {
			confidence = c
		}
	}

	for _, m := range gqlTemplatePattern.FindAllStringSubmatchIndex(text, -1) {
		conf, ok := core.Confirm(ctx, cf.Language, content, m[0])
		if !ok {
			continue
		}
		line := lineOf(text, m[0])
		payload, _ := parseSDL(text[m[2]:m[3]], line)
		if payload == nil {
			continue
		}
		mergeGraphQL(merged, payload)
		mergeConfidence(conf)
		if firstLine == 0 {
			firstLine = line
		}
	}

	for _, m := range gqlObjectPattern.FindAllStringSubmatchIndex(text, -1) {
		conf, ok := core.Confirm(ctx, cf.Language, content, m[0])
		if !ok {
			continue
		}
		merged.Types = append(merged.Types, text[m[2]:m[3]])
		mergeConfidence(conf)
		if firstLine == 0 {
			firstLine = lineOf(text, m[0])
		}
	}

	if firstLine == 0 {
		return nil
	}
	return &models.APIDefinition{
		Name:       "GraphQL schema",
		Type:       models.TypeGraphQL,
		Confidence: confidence,
		SourceFile: cf.File.Path,
		SourceLine: firstLine,
		GraphQL:    merged,
	}
}

// parseSDL extracts type blocks from schema text. Fields of the three
// operation root types become queries/mutations/subscriptions; every
// other type contributes its name. Returns nil when no type block is
// present.
func parseSDL(sdl string, baseLine int) (*models.GraphQLAPI, int) {
	matches := sdlTypePattern.FindAllStringSubmatchIndex(sdl, -1)
	if len(matches) == 0 {
		return nil, 0
	}

	payload := &models.GraphQLAPI{}
	firstLine := baseLine + lineOf(sdl, matches[0][0]) - 1
	for _, m := range matches {
		name := sdl[m[2]:m[3]]
		body := sdl[m[4]:m[5]]
		switch name {
		case "Query":
			payload.Queries = append(payload.Queries, parseSDLFields(body)...)
		case "Mutation":
			payload.Mutations = append(payload.Mutations, parseSDLFields(body)...)
		case "Subscription":
			payload.Subscriptions = append(payload.Subscriptions, parseSDLFields(body)...)
		default:
			payload.Types = append(payload.Types, name)
		}
	}
	return payload, firstLine
}

func parseSDLFields(body string) []models.GraphQLField {
	var fields []models.GraphQLField
	for _, line := range strings.Split(body, "\n") {
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		if m := sdlFieldPattern.FindStringSubmatch(line); m != nil {
			fields = append(fields, models.GraphQLField{Name: m[1], ReturnType: m[3]})
		}
	}
	return fields
}

func mergeGraphQL(dst, src *models.GraphQLAPI) {
	dst.Types = append(dst.Types, src.Types...)
	dst.Queries = append(dst.Queries, src.Queries...)
	dst.Mutations = append(dst.Mutations, src.Mutations...)
	dst.Subscriptions = append(dst.Subscriptions, src.Subscriptions...)
}

func lineOf(text string, offset int) int {
	return strings.Count(text[:offset], "\n") + 1
}
