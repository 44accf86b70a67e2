package detector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apiscope/detector/match"
	"apiscope/detector/models"
)

func writeFixtureTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"app.py":            "@app.route('/users', methods=['GET'])\ndef users():\n    pass\n",
		"greeter.proto":     "service Greeter { rpc SayHello(HelloRequest) returns (HelloReply); }\n",
		"openapi.yaml":      "info:\n  title: Missing version key\npaths: {}\n",
		"node_modules/x.js": "app.get('/ignored', h);\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestEngineAnalyzeScenario(t *testing.T) {
	engine := New(DefaultLimits(), nil)
	defer engine.Close()

	snapshot, err := NewSnapshotFromDir(writeFixtureTree(t))
	require.NoError(t, err)

	result := engine.Analyze(context.Background(), snapshot, "demo", models.SourceDescriptor{
		Kind: models.SourceGit,
		Info: map[string]any{"url": "https://example.com/demo.git"},
	})

	assert.Equal(t, "demo", result.ProjectName)
	assert.Equal(t, models.SourceGit, result.Source)

	assert.Equal(t, 1, result.Stats["REST"])
	assert.Equal(t, 0, result.Stats["WebSocket"])
	assert.Equal(t, 1, result.Stats["gRPC"])
	assert.Equal(t, 0, result.Stats["GraphQL"])
	assert.Equal(t, 0, result.Stats["OpenAPI"])
	assert.Equal(t, 2, result.Stats["total"])
	assert.Len(t, result.APIs, 2)

	require.Len(t, result.Errors, 1, "malformed openapi document is the only error")
	assert.Equal(t, models.ErrArtifact, result.Errors[0].Category)
	assert.Equal(t, "openapi.yaml", result.Errors[0].Reference)

	// REST before gRPC, per registration order.
	assert.Equal(t, models.TypeREST, result.APIs[0].Type)
	assert.Equal(t, "GET /users", result.APIs[0].Name)
	assert.Equal(t, models.TypeGRPC, result.APIs[1].Type)
	assert.Equal(t, "Greeter", result.APIs[1].Name)

	for _, def := range result.APIs {
		assert.NotEmpty(t, def.ID)
		assert.Equal(t, result.AnalyzedAt, def.DetectedAt)
	}
}

func TestEngineDualProtocolFile(t *testing.T) {
	engine := New(DefaultLimits(), nil)
	defer engine.Close()

	root := t.TempDir()
	src := "@app.route(\"/chat\")\ndef chat():\n    pass\n\n@socketio.on(\"message\")\ndef on_message(data):\n    pass\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "chat.py"), []byte(src), 0o644))

	snapshot, err := NewSnapshotFromDir(root)
	require.NoError(t, err)
	result := engine.Analyze(context.Background(), snapshot, "demo", models.SourceDescriptor{Kind: models.SourceZip})

	assert.Equal(t, 1, result.Stats["REST"])
	assert.Equal(t, 1, result.Stats["WebSocket"])
	assert.Equal(t, 2, result.Stats["total"])
}

func TestEngineAnalyzeIsDeterministic(t *testing.T) {
	engine := New(DefaultLimits(), nil)
	defer engine.Close()

	root := writeFixtureTree(t)
	source := models.SourceDescriptor{Kind: models.SourceZip, Info: map[string]any{}}

	snapA, err := NewSnapshotFromDir(root)
	require.NoError(t, err)
	a := engine.Analyze(context.Background(), snapA, "demo", source)

	snapB, err := NewSnapshotFromDir(root)
	require.NoError(t, err)
	b := engine.Analyze(context.Background(), snapB, "demo", source)

	require.Equal(t, len(a.APIs), len(b.APIs))
	for i := range a.APIs {
		assert.Equal(t, a.APIs[i].ID, b.APIs[i].ID)
		assert.Equal(t, a.APIs[i].Name, b.APIs[i].Name)
		assert.Equal(t, a.APIs[i].SourceFile, b.APIs[i].SourceFile)
	}
	assert.Equal(t, a.Stats, b.Stats)
}

func TestEngineAnalyzeNilSnapshot(t *testing.T) {
	engine := New(DefaultLimits(), nil)
	defer engine.Close()

	result := engine.Analyze(context.Background(), nil, "demo", models.SourceDescriptor{Kind: models.SourceZip})
	assert.Empty(t, result.APIs)
	assert.Equal(t, 0, result.Stats["total"])
	require.Len(t, result.Errors, 1)
	assert.Equal(t, models.ErrIngestion, result.Errors[0].Category)
}

type panicStrategy struct{}

func (panicStrategy) ID() models.APIType  { return models.TypeREST }
func (panicStrategy) Name() string        { return "panic" }
func (panicStrategy) Description() string { return "always panics" }
func (panicStrategy) Detect(context.Context, []models.ClassifiedFile, *match.Core) ([]models.APIDefinition, []models.AnalysisError) {
	panic("boom")
}

func TestRunStrategyConfinesPanic(t *testing.T) {
	engine := New(DefaultLimits(), nil)
	defer engine.Close()

	defs, errs := engine.runStrategy(context.Background(), panicStrategy{}, nil)
	assert.Empty(t, defs)
	require.Len(t, errs, 1)
	assert.Equal(t, models.ErrDetector, errs[0].Category)
	assert.Equal(t, "REST", errs[0].Reference)
	assert.Contains(t, errs[0].Message, "boom")
}

func TestEngineCatalog(t *testing.T) {
	engine := New(DefaultLimits(), nil)
	defer engine.Close()

	catalog := engine.Catalog()
	require.Len(t, catalog, 5)
	assert.Equal(t, "REST", catalog[0].ID)
	assert.Equal(t, "WebSocket", catalog[1].ID)
	assert.Equal(t, "gRPC", catalog[2].ID)
	assert.Equal(t, "GraphQL", catalog[3].ID)
	assert.Equal(t, "OpenAPI", catalog[4].ID)
}
