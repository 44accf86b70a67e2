package detector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apiscope/detector/match"
	"apiscope/detector/models"
)

func TestWebSocketDetectorRoute(t *testing.T) {
	core := match.NewCore()
	defer core.Close()

	src := "@app.websocket(\"/ws/feed\")\nasync def feed(websocket):\n    pass\n"
	files := []models.ClassifiedFile{classifiedFixture("ws.py", "python", src, models.TypeWebSocket)}

	defs, errs := NewWebSocketDetector().Detect(context.Background(), files, core)
	require.Empty(t, errs)
	require.Len(t, defs, 1)
	assert.Equal(t, "WebSocket /ws/feed", defs[0].Name)
	require.NotNil(t, defs[0].WebSocket)
	assert.Equal(t, "/ws/feed", defs[0].WebSocket.Endpoint)
}

func TestWebSocketDetectorAggregatesSocketIOEvents(t *testing.T) {
	core := match.NewCore()
	defer core.Close()

	src := "@socketio.on(\"connect\")\ndef on_connect():\n    pass\n\n@socketio.on(\"message\")\ndef on_message(data):\n    pass\n\n@socketio.on(\"connect\")\ndef on_connect_again():\n    pass\n"
	files := []models.ClassifiedFile{classifiedFixture("events.py", "python", src, models.TypeWebSocket)}

	defs, errs := NewWebSocketDetector().Detect(context.Background(), files, core)
	require.Empty(t, errs)
	require.Len(t, defs, 1, "events collapse into one definition per file")

	def := defs[0]
	assert.Equal(t, "Socket.IO events", def.Name)
	assert.Equal(t, 1, def.SourceLine)
	require.NotNil(t, def.WebSocket)
	assert.Equal(t, "/socket.io", def.WebSocket.Endpoint)
	assert.Equal(t, []string{"connect", "message"}, def.WebSocket.Events)
}

func TestWebSocketDetectorServerConstructor(t *testing.T) {
	core := match.NewCore()
	defer core.Close()

	src := "const wss = new WebSocketServer({ port: 8080 });\n"
	files := []models.ClassifiedFile{classifiedFixture("server.js", "javascript", src, models.TypeWebSocket)}

	defs, errs := NewWebSocketDetector().Detect(context.Background(), files, core)
	require.Empty(t, errs)
	require.Len(t, defs, 1)
	assert.Equal(t, ":8080", defs[0].WebSocket.Endpoint)
}

func TestWebSocketDetectorServerPathOption(t *testing.T) {
	core := match.NewCore()
	defer core.Close()

	src := "const wss = new WebSocket.Server({ server, path: '/ws' });\n"
	files := []models.ClassifiedFile{classifiedFixture("server.js", "javascript", src, models.TypeWebSocket)}

	defs, errs := NewWebSocketDetector().Detect(context.Background(), files, core)
	require.Empty(t, errs)
	require.Len(t, defs, 1)
	assert.Equal(t, "/ws", defs[0].WebSocket.Endpoint)
}
