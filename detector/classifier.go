package detector

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
	"go.uber.org/zap"

	"apiscope/detector/models"
)

const headSniffBytes = 8 * 1024

// Limits are the classification ceilings. Exceeding MaxFiles or
// MaxTotalBytes stops intake and records a single truncation error;
// individual files above MaxFileBytes are skipped without error, like
// binaries.
type Limits struct {
	MaxFiles      int
	MaxFileBytes  int64
	MaxTotalBytes int64
}

// DefaultLimits mirrors the shipped configuration defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxFiles:      20000,
		MaxFileBytes:  100 * 1024,
		MaxTotalBytes: 256 * 1024 * 1024,
	}
}

// ignoredDirs are tree segments never worth scanning.
var ignoredDirs = map[string]bool{
	".git": true, ".svn": true, ".hg": true,
	"node_modules": true, "vendor": true, "bower_components": true,
	"dist": true, "build": true, "out": true, "target": true, "bin": true, "obj": true,
	"__pycache__": true, ".venv": true, "venv": true, "env": true,
	".idea": true, ".vscode": true, ".terraform": true,
	"coverage": true, ".pytest_cache": true, ".mypy_cache": true,
}

// ignoredExts cover binaries and media that can never hold definitions.
var ignoredExts = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true, ".o": true,
	".class": true, ".jar": true, ".war": true, ".pyc": true, ".pyo": true, ".wasm": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true, ".7z": true, ".rar": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".ico": true,
	".svg": true, ".webp": true, ".mp3": true, ".mp4": true, ".avi": true, ".mov": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ttf": true, ".otf": true, ".woff": true, ".woff2": true, ".eot": true,
	".db": true, ".sqlite": true, ".lock": true, ".min.js": true, ".map": true,
}

// extLanguages maps file extensions to matcher language ids, used when
// the lexer lookup is inconclusive.
var extLanguages = map[string]string{
	".py": "python", ".js": "javascript", ".mjs": "javascript", ".cjs": "javascript",
	".jsx": "javascript", ".ts": "typescript", ".tsx": "typescript",
	".java": "java", ".cs": "csharp", ".go": "go",
	".rb": "ruby", ".php": "php", ".proto": "proto",
	".graphql": "graphql", ".gql": "graphql",
	".yaml": "yaml", ".yml": "yaml", ".json": "json",
}

// lexerLanguages maps chroma lexer names onto the same ids.
var lexerLanguages = map[string]string{
	"Python": "python", "JavaScript": "javascript", "TypeScript": "typescript",
	"Java": "java", "C#": "csharp", "Go": "go",
	"Ruby": "ruby", "PHP": "php", "Protocol Buffer": "proto", "ProtocolBuffer": "proto",
	"GraphQL": "graphql", "YAML": "yaml", "JSON": "json",
}

// restLanguages are languages whose source may register REST routes.
var restLanguages = map[string]bool{
	"python": true, "javascript": true, "typescript": true,
	"java": true, "csharp": true, "go": true, "ruby": true, "php": true,
}

// Classifier prunes a snapshot down to the files worth scanning and
// labels each survivor with a language and protocol candidate hints.
type Classifier struct {
	limits Limits
	logger *zap.Logger
}

func NewClassifier(limits Limits, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{limits: limits, logger: logger}
}

// Classify runs the two-phase pass: a metadata prune that never reads
// content, then a head sniff of the survivors. Ceilings record at most
// one truncation error; per-file read failures record a classification
// error each and skip only that file.
func (c *Classifier) Classify(ctx context.Context, snapshot *models.SourceSnapshot) ([]models.ClassifiedFile, []models.AnalysisError) {
	var (
		classified []models.ClassifiedFile
		errs       []models.AnalysisError
		totalBytes int64
		truncated  bool
	)

	for _, file := range snapshot.Files {
		if ctx.Err() != nil {
			break
		}
		if pruneByPath(file.Path) {
			continue
		}
		if file.Size > c.limits.MaxFileBytes {
			continue
		}
		if len(classified) >= c.limits.MaxFiles || totalBytes+file.Size > c.limits.MaxTotalBytes {
			truncated = true
			break
		}
		// Counted before the read: a file dropped by the hint check is
		// still materialized in the snapshot, so it spends the budget.
		totalBytes += file.Size

		content, err := file.Content()
		if err != nil {
			errs = append(errs, models.AnalysisError{
				Category:  models.ErrClassification,
				Reference: file.Path,
				Message:   fmt.Sprintf("read failed: %v", err),
			})
			continue
		}
		head := content
		if len(head) > headSniffBytes {
			head = head[:headSniffBytes]
		}
		if bytes.IndexByte(head, 0) >= 0 {
			continue
		}

		cf := models.ClassifiedFile{
			File:       file,
			Language:   guessLanguage(file.Path, head),
			Candidates: make(map[models.APIType]bool),
		}
		markCandidates(&cf, file.Path, head)
		if len(cf.Candidates) == 0 {
			continue
		}
		classified = append(classified, cf)
	}

	if truncated {
		errs = append(errs, models.AnalysisError{
			Category:  models.ErrClassification,
			Reference: snapshot.Root,
			Message: fmt.Sprintf("intake truncated at %d files / %d bytes (limits: %d files, %d bytes)",
				len(classified), totalBytes, c.limits.MaxFiles, c.limits.MaxTotalBytes),
		})
		c.logger.Warn("classification truncated",
			zap.Int("files", len(classified)),
			zap.Int64("bytes", totalBytes))
	}
	return classified, errs
}

func pruneByPath(relPath string) bool {
	for _, part := range strings.Split(relPath, "/") {
		if ignoredDirs[part] {
			return true
		}
	}
	base := path.Base(relPath)
	if strings.HasSuffix(base, ".min.js") {
		return true
	}
	return ignoredExts[path.Ext(base)]
}

func guessLanguage(relPath string, head []byte) string {
	if lexer := lexers.Match(path.Base(relPath)); lexer != nil {
		if id, ok := lexerLanguages[lexer.Config().Name]; ok {
			return id
		}
	}
	if id, ok := extLanguages[strings.ToLower(path.Ext(relPath))]; ok {
		return id
	}
	if lexer := lexers.Analyse(string(head)); lexer != nil {
		return lexerLanguages[lexer.Config().Name]
	}
	return ""
}

// openAPIBaseNames are filenames treated as spec artifacts regardless of
// their content.
var openAPIBaseNames = map[string]bool{
	"openapi": true, "swagger": true, "api-spec": true,
}

func markCandidates(cf *models.ClassifiedFile, relPath string, head []byte) {
	lang := cf.Language
	headText := string(head)

	if restLanguages[lang] {
		cf.Candidates[models.TypeREST] = true
	}
	if lang == "python" || lang == "javascript" || lang == "typescript" {
		cf.Candidates[models.TypeWebSocket] = true
	}
	if lang == "proto" {
		cf.Candidates[models.TypeGRPC] = true
	}
	if lang == "graphql" {
		cf.Candidates[models.TypeGraphQL] = true
	}
	if (lang == "javascript" || lang == "typescript" || lang == "python") &&
		(strings.Contains(headText, "graphql") || strings.Contains(headText, "apollo")) {
		cf.Candidates[models.TypeGraphQL] = true
	}

	if lang == "yaml" || lang == "json" {
		base := path.Base(relPath)
		stem := strings.TrimSuffix(base, path.Ext(base))
		if openAPIBaseNames[strings.ToLower(stem)] || hasOpenAPIRootKey(headText) {
			cf.Candidates[models.TypeOpenAPI] = true
		}
	}
}

func hasOpenAPIRootKey(head string) bool {
	for _, key := range []string{"openapi:", "swagger:", "\"openapi\"", "\"swagger\""} {
		if strings.Contains(head, key) {
			return true
		}
	}
	return false
}
