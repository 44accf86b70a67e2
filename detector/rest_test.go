package detector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apiscope/detector/match"
	"apiscope/detector/models"
)

func TestRESTDetectorFastAPI(t *testing.T) {
	core := match.NewCore()
	defer core.Close()

	src := "@app.get(\"/users/{user_id}\")\ndef get_user(user_id: int, verbose: bool = False):\n    pass\n"
	files := []models.ClassifiedFile{classifiedFixture("api/users.py", "python", src, models.TypeREST)}

	defs, errs := NewRESTDetector().Detect(context.Background(), files, core)
	require.Empty(t, errs)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "GET /users/{user_id}", def.Name)
	assert.Equal(t, models.ConfidenceStructural, def.Confidence)
	assert.Equal(t, "api/users.py", def.SourceFile)
	assert.Equal(t, 1, def.SourceLine)

	require.NotNil(t, def.REST)
	assert.Equal(t, "GET", def.REST.Method)
	require.Len(t, def.REST.Parameters, 2)
	assert.Equal(t, models.Parameter{Name: "user_id", Required: true, Type: "string", Location: "path"}, def.REST.Parameters[0])
	assert.Equal(t, models.Parameter{Name: "verbose", Required: false, Type: "string", Location: "query"}, def.REST.Parameters[1])
}

func TestRESTDetectorFlaskMethodDefaultsToGet(t *testing.T) {
	core := match.NewCore()
	defer core.Close()

	src := "@app.route(\"/health\")\ndef health():\n    pass\n\n@app.route(\"/users\", methods=[\"POST\", \"PUT\"])\ndef create():\n    pass\n"
	files := []models.ClassifiedFile{classifiedFixture("app.py", "python", src, models.TypeREST)}

	defs, errs := NewRESTDetector().Detect(context.Background(), files, core)
	require.Empty(t, errs)
	require.Len(t, defs, 2)
	assert.Equal(t, "GET", defs[0].REST.Method)
	assert.Equal(t, "POST", defs[1].REST.Method)
}

func TestRESTDetectorExpressPathParams(t *testing.T) {
	core := match.NewCore()
	defer core.Close()

	src := "app.post('/users/:id/orders', (req, res) => {\n  res.send();\n});\n"
	files := []models.ClassifiedFile{classifiedFixture("routes.js", "javascript", src, models.TypeREST)}

	defs, errs := NewRESTDetector().Detect(context.Background(), files, core)
	require.Empty(t, errs)
	require.Len(t, defs, 1)
	assert.Equal(t, "POST", defs[0].REST.Method)
	require.Len(t, defs[0].REST.Parameters, 1)
	assert.Equal(t, "id", defs[0].REST.Parameters[0].Name)
	assert.Equal(t, "path", defs[0].REST.Parameters[0].Location)
}

func TestRESTDetectorFlaskConverterTypes(t *testing.T) {
	core := match.NewCore()
	defer core.Close()

	src := "@app.route(\"/items/<int:item_id>/tags/<tag>\")\ndef item(item_id, tag):\n    pass\n"
	files := []models.ClassifiedFile{classifiedFixture("app.py", "python", src, models.TypeREST)}

	defs, errs := NewRESTDetector().Detect(context.Background(), files, core)
	require.Empty(t, errs)
	require.Len(t, defs, 1)
	params := defs[0].REST.Parameters
	require.Len(t, params, 2)
	assert.Equal(t, "item_id", params[0].Name)
	assert.Equal(t, "integer", params[0].Type)
	assert.Equal(t, "tag", params[1].Name)
	assert.Equal(t, "string", params[1].Type)
}

func TestRESTDetectorSkipsCommentedRoutes(t *testing.T) {
	core := match.NewCore()
	defer core.Close()

	src := "// app.get('/old', handler)\napp.get('/new', handler);\n"
	files := []models.ClassifiedFile{classifiedFixture("routes.js", "javascript", src, models.TypeREST)}

	defs, errs := NewRESTDetector().Detect(context.Background(), files, core)
	require.Empty(t, errs)
	require.Len(t, defs, 1)
	assert.Equal(t, "GET /new", defs[0].Name)
}

func TestRESTDetectorSpringAnnotations(t *testing.T) {
	core := match.NewCore()
	defer core.Close()

	src := "public class UserController {\n    @GetMapping(\"/users\")\n    public List<User> list() { return null; }\n\n    @RequestMapping(\"/legacy\")\n    public String legacy() { return null; }\n}\n"
	files := []models.ClassifiedFile{classifiedFixture("UserController.java", "java", src, models.TypeREST)}

	defs, errs := NewRESTDetector().Detect(context.Background(), files, core)
	require.Empty(t, errs)
	require.Len(t, defs, 2)
	assert.Equal(t, "GET", defs[0].REST.Method)
	assert.Equal(t, "/users", defs[0].REST.Path)
	assert.Equal(t, "GET", defs[1].REST.Method)
	assert.Equal(t, "/legacy", defs[1].REST.Path)
}

func TestRESTDetectorGoMuxMethodPrefix(t *testing.T) {
	core := match.NewCore()
	defer core.Close()

	src := "package main\n\nfunc routes() {\n\tmux.HandleFunc(\"POST /users\", createUser)\n\tmux.HandleFunc(\"/health\", health)\n}\n"
	files := []models.ClassifiedFile{classifiedFixture("routes.go", "go", src, models.TypeREST)}

	defs, errs := NewRESTDetector().Detect(context.Background(), files, core)
	require.Empty(t, errs)
	require.Len(t, defs, 2)
	assert.Equal(t, "POST", defs[0].REST.Method)
	assert.Equal(t, "/users", defs[0].REST.Path)
	assert.Equal(t, "GET", defs[1].REST.Method)
	assert.Equal(t, "/health", defs[1].REST.Path)
}

func TestRESTDetectorRailsRoutes(t *testing.T) {
	core := match.NewCore()
	defer core.Close()

	src := "Rails.application.routes.draw do\n  get '/users', to: 'users#index'\n  post '/users', to: 'users#create'\nend\n"
	files := []models.ClassifiedFile{classifiedFixture("config/routes.rb", "ruby", src, models.TypeREST)}

	defs, errs := NewRESTDetector().Detect(context.Background(), files, core)
	require.Empty(t, errs)
	require.Len(t, defs, 2)

	assert.Equal(t, "GET /users", defs[0].Name)
	assert.Equal(t, 2, defs[0].SourceLine)
	assert.Equal(t, models.ConfidenceTextual, defs[0].Confidence)
	assert.Equal(t, "POST /users", defs[1].Name)
	assert.Equal(t, 3, defs[1].SourceLine)
}

func TestRESTDetectorIgnoresNonCandidates(t *testing.T) {
	core := match.NewCore()
	defer core.Close()

	files := []models.ClassifiedFile{classifiedFixture("app.py", "python", "@app.get(\"/x\")\ndef x():\n    pass\n", models.TypeWebSocket)}
	defs, errs := NewRESTDetector().Detect(context.Background(), files, core)
	assert.Empty(t, errs)
	assert.Empty(t, defs)
}
