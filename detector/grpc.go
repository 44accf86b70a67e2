package detector

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/reflect/protoreflect"

	"apiscope/detector/match"
	"apiscope/detector/models"
)

var (
	protoServicePattern = regexp.MustCompile(`^\s*service\s+(\w+)\s*\{?`)
	protoRPCPattern     = regexp.MustCompile(`rpc\s+(\w+)\s*\(\s*(stream\s+)?([\w.]+)\s*\)\s*returns\s*\(\s*(stream\s+)?([\w.]+)\s*\)`)
	protoMessagePattern = regexp.MustCompile(`^\s*message\s+(\w+)\s*\{?`)
)

// grpcDetector parses .proto candidates with a real protobuf compiler
// and falls back to a line grammar when compilation fails, so a file
// with unresolvable imports still contributes its service surface.
type grpcDetector struct{}

func NewGRPCDetector() Strategy { return grpcDetector{} }

func (grpcDetector) ID() models.APIType { return models.TypeGRPC }
func (grpcDetector) Name() string       { return "gRPC services" }
func (grpcDetector) Description() string {
	return "service and rpc declarations in protobuf definition files"
}

func (d grpcDetector) Detect(ctx context.Context, files []models.ClassifiedFile, _ *match.Core) ([]models.APIDefinition, []models.AnalysisError) {
	var (
		defs []models.APIDefinition
		errs []models.AnalysisError
	)
	for _, cf := range files {
		if ctx.Err() != nil {
			break
		}
		if !cf.IsCandidate(models.TypeGRPC) {
			continue
		}
		content, err := cf.File.Content()
		if err != nil {
			continue
		}

		compiled, err := d.compile(ctx, cf.File.Path, content)
		if err == nil {
			defs = append(defs, compiled...)
			continue
		}

		fallback := d.scanLines(cf.File.Path, content)
		if len(fallback) == 0 {
			errs = append(errs, models.AnalysisError{
				Category:  models.ErrArtifact,
				Reference: cf.File.Path,
				Message:   fmt.Sprintf("proto parse failed: %v", err),
			})
			continue
		}
		defs = append(defs, fallback...)
	}
	return defs, errs
}

// compile runs the full protobuf frontend over a single in-memory file.
func (grpcDetector) compile(ctx context.Context, path string, content []byte) ([]models.APIDefinition, error) {
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			Accessor: protocompile.SourceAccessorFromMap(map[string]string{
				path: string(content),
			}),
		}),
	}
	compiled, err := compiler.Compile(ctx, path)
	if err != nil {
		return nil, err
	}

	fd := compiled[0]
	messages := topLevelMessages(fd)
	lines := strings.Split(string(content), "\n")

	var defs []models.APIDefinition
	services := fd.Services()
	for i := 0; i < services.Len(); i++ {
		svc := services.Get(i)
		name := string(svc.Name())

		payload := &models.GRPCService{
			ServiceName:  name,
			Methods:      []models.GRPCMethod{},
			MessageTypes: messages,
		}
		methods := svc.Methods()
		for j := 0; j < methods.Len(); j++ {
			m := methods.Get(j)
			payload.Methods = append(payload.Methods, models.GRPCMethod{
				Name:       string(m.Name()),
				InputType:  string(m.Input().Name()),
				OutputType: string(m.Output().Name()),
				Streaming:  m.IsStreamingClient() || m.IsStreamingServer(),
			})
		}

		defs = append(defs, models.APIDefinition{
			Name:       name,
			Type:       models.TypeGRPC,
			Confidence: models.ConfidenceStructural,
			SourceFile: path,
			SourceLine: serviceLine(lines, name),
			GRPC:       payload,
		})
	}
	return defs, nil
}

func topLevelMessages(fd protoreflect.FileDescriptor) []string {
	msgs := fd.Messages()
	if msgs.Len() == 0 {
		return nil
	}
	names := make([]string, 0, msgs.Len())
	for i := 0; i < msgs.Len(); i++ {
		names = append(names, string(msgs.Get(i).Name()))
	}
	return names
}

func serviceLine(lines []string, name string) int {
	for i, line := range lines {
		if m := protoServicePattern.FindStringSubmatch(line); m != nil && m[1] == name {
			return i + 1
		}
	}
	return 0
}

// scanLines is the degraded grammar: brace-balanced service blocks with
// rpc declarations picked out by pattern. Definitions carry textual
// confidence since nothing validated the file as a whole.
func (grpcDetector) scanLines(path string, content []byte) []models.APIDefinition {
	lines := strings.Split(string(content), "\n")

	var messages []string
	for _, line := range lines {
		if m := protoMessagePattern.FindStringSubmatch(line); m != nil {
			messages = append(messages, m[1])
		}
	}

	var defs []models.APIDefinition
	for i := 0; i < len(lines); i++ {
		m := protoServicePattern.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}

		payload := &models.GRPCService{
			ServiceName:  m[1],
			Methods:      []models.GRPCMethod{},
			MessageTypes: messages,
		}
		depth := 0
		started := false
		end := i
		for j := i; j < len(lines); j++ {
			depth += strings.Count(lines[j], "{") - strings.Count(lines[j], "}")
			if strings.Contains(lines[j], "{") {
				started = true
			}
			for _, rpc := range protoRPCPattern.FindAllStringSubmatch(lines[j], -1) {
				payload.Methods = append(payload.Methods, models.GRPCMethod{
					Name:       rpc[1],
					InputType:  rpc[3],
					OutputType: rpc[5],
					Streaming:  rpc[2] != "" || rpc[4] != "",
				})
			}
			if started && depth <= 0 {
				end = j
				break
			}
			end = j
		}

		defs = append(defs, models.APIDefinition{
			Name:       m[1],
			Type:       models.TypeGRPC,
			Confidence: models.ConfidenceTextual,
			SourceFile: path,
			SourceLine: i + 1,
			GRPC:       payload,
		})
		i = end
	}
	return defs
}
