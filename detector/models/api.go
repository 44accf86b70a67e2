package models

import "time"

// APIType identifies one of the supported protocol families.
type APIType string

const (
	TypeREST      APIType = "REST"
	TypeWebSocket APIType = "WebSocket"
	TypeGRPC      APIType = "gRPC"
	TypeGraphQL   APIType = "GraphQL"
	TypeOpenAPI   APIType = "OpenAPI"
)

// AllTypes lists the protocol families in detector registration order.
// Aggregation ordering and the public catalog both follow this order.
func AllTypes() []APIType {
	return []APIType{TypeREST, TypeWebSocket, TypeGRPC, TypeGraphQL, TypeOpenAPI}
}

// Confidence records how a definition was verified by the matching core.
type Confidence string

const (
	// ConfidenceStructural means the match was confirmed against a parse
	// tree (not inside a comment or string literal).
	ConfidenceStructural Confidence = "structural"
	// ConfidenceTextual means only the textual stage matched; emitted for
	// languages without a registered structural parser.
	ConfidenceTextual Confidence = "textual"
)

// Parameter describes a single endpoint parameter.
type Parameter struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Type        string `json:"type"`
	Location    string `json:"location"` // path, query, header, body, cookie
	Default     string `json:"default,omitempty"`
}

// RESTEndpoint is the protocol payload for REST definitions.
type RESTEndpoint struct {
	Path       string      `json:"path"`
	Method     string      `json:"method"`
	Parameters []Parameter `json:"parameters,omitempty"`
}

// WebSocketAPI is the protocol payload for WebSocket definitions.
type WebSocketAPI struct {
	Endpoint string   `json:"endpoint"`
	Events   []string `json:"events,omitempty"`
}

// GRPCMethod is a single rpc within a service block.
type GRPCMethod struct {
	Name       string `json:"name"`
	InputType  string `json:"input_type"`
	OutputType string `json:"output_type"`
	Streaming  bool   `json:"streaming"`
}

// GRPCService is the protocol payload for gRPC definitions.
type GRPCService struct {
	ServiceName  string       `json:"service_name"`
	Methods      []GRPCMethod `json:"methods"`
	MessageTypes []string     `json:"message_types,omitempty"`
}

// GraphQLField is a named field of a Query/Mutation/Subscription block.
type GraphQLField struct {
	Name       string `json:"name"`
	ReturnType string `json:"return_type"`
}

// GraphQLAPI is the protocol payload for GraphQL definitions.
type GraphQLAPI struct {
	Types         []string       `json:"types,omitempty"`
	Queries       []GraphQLField `json:"queries,omitempty"`
	Mutations     []GraphQLField `json:"mutations,omitempty"`
	Subscriptions []GraphQLField `json:"subscriptions,omitempty"`
}

// OpenAPISpec is the protocol payload for OpenAPI definitions.
type OpenAPISpec struct {
	Version string   `json:"version"`
	Title   string   `json:"title,omitempty"`
	Paths   []string `json:"paths,omitempty"`
}

// APIDefinition is a tagged variant over the five protocol families.
// Exactly one of the payload pointers is set, matching Type.
type APIDefinition struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Type        APIType    `json:"type"`
	Confidence  Confidence `json:"confidence,omitempty"`
	DetectedAt  time.Time  `json:"detected_at"`
	SourceFile  string     `json:"source_file"`
	SourceLine  int        `json:"source_line,omitempty"`

	REST      *RESTEndpoint `json:"rest,omitempty"`
	WebSocket *WebSocketAPI `json:"websocket,omitempty"`
	GRPC      *GRPCService  `json:"grpc,omitempty"`
	GraphQL   *GraphQLAPI   `json:"graphql,omitempty"`
	OpenAPI   *OpenAPISpec  `json:"openapi,omitempty"`
}

// ErrorCategory classifies an AnalysisError. Only the ingestion category
// is fatal to a request.
type ErrorCategory string

const (
	ErrIngestion      ErrorCategory = "ingestion"
	ErrClassification ErrorCategory = "classification"
	ErrDetector       ErrorCategory = "detector"
	ErrArtifact       ErrorCategory = "artifact"
	ErrLifecycle      ErrorCategory = "lifecycle"
)

// AnalysisError is a non-fatal failure recorded alongside results.
type AnalysisError struct {
	Category  ErrorCategory `json:"category"`
	Reference string        `json:"reference"` // file path or detector id
	Message   string        `json:"message"`
}

// SourceKind is the report-level origin of the analyzed tree.
type SourceKind string

const (
	SourceZip SourceKind = "zip"
	SourceGit SourceKind = "git"
)

// SourceDescriptor is supplied by the ingestion collaborator.
type SourceDescriptor struct {
	Kind SourceKind     `json:"kind"`
	Info map[string]any `json:"info"`
}

// StatsKeyTotal is the aggregate count key in AnalysisResult.Stats.
const StatsKeyTotal = "total"

// NewStats returns a stats map with every protocol key present and zero.
func NewStats() map[string]int {
	stats := map[string]int{StatsKeyTotal: 0}
	for _, t := range AllTypes() {
		stats[string(t)] = 0
	}
	return stats
}

// AnalysisResult is the report returned for one analysis request.
type AnalysisResult struct {
	ProjectName string          `json:"project_name"`
	Source      SourceKind      `json:"source"`
	SourceInfo  map[string]any  `json:"source_info"`
	APIs        []APIDefinition `json:"apis"`
	Stats       map[string]int  `json:"stats"`
	Errors      []AnalysisError `json:"errors"`
	AnalyzedAt  time.Time       `json:"analyzed_at"`
}

// Recount recomputes Stats from APIs so that stats[T] always equals the
// number of definitions of type T and stats["total"] equals len(APIs).
func (r *AnalysisResult) Recount() {
	stats := NewStats()
	for _, api := range r.APIs {
		stats[string(api.Type)]++
		stats[StatsKeyTotal]++
	}
	r.Stats = stats
}
