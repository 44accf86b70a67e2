package detector

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"apiscope/detector/match"
	"apiscope/detector/models"
)

var websocketRules = match.NewRuleSet(
	match.Rule{
		ID: "fastapi_websocket", Language: "python", Protocol: models.TypeWebSocket,
		Pattern: regexp.MustCompile(`@(?:app|router)\.websocket\(\s*["'](?P<path>[^"']+)["']`),
	},
	match.Rule{
		ID: "socketio_event", Language: "python", Protocol: models.TypeWebSocket,
		Pattern: regexp.MustCompile(`@(?:socketio|sio)\.on\(\s*["'](?P<event>[^"']+)["']`),
	},
	match.Rule{
		ID: "socketio_event", Language: "javascript", Protocol: models.TypeWebSocket,
		Pattern: regexp.MustCompile(`\b(?:socket|io)\.on\(\s*["'](?P<event>[^"']+)["']`),
	},
	match.Rule{
		ID: "socketio_event", Language: "typescript", Protocol: models.TypeWebSocket,
		Pattern: regexp.MustCompile(`\b(?:socket|io)\.on\(\s*["'](?P<event>[^"']+)["']`),
	},
	match.Rule{
		ID: "ws_server", Language: "javascript", Protocol: models.TypeWebSocket,
		Pattern: regexp.MustCompile(`new\s+(?:WebSocket\.Server|WebSocketServer)\(\s*\{(?P<opts>[^}]*)\}`),
	},
	match.Rule{
		ID: "ws_server", Language: "typescript", Protocol: models.TypeWebSocket,
		Pattern: regexp.MustCompile(`new\s+(?:WebSocket\.Server|WebSocketServer)\(\s*\{(?P<opts>[^}]*)\}`),
	},
)

var wsOptPattern = regexp.MustCompile(`(path|port)\s*:\s*["']?([^,"'\s}]+)`)

const socketIOEndpoint = "/socket.io"

// websocketDetector finds dedicated socket routes and Socket.IO event
// handlers. Event handlers aggregate into one definition per file; the
// endpoint list would otherwise drown in per-event noise.
type websocketDetector struct{}

func NewWebSocketDetector() Strategy { return websocketDetector{} }

func (websocketDetector) ID() models.APIType { return models.TypeWebSocket }
func (websocketDetector) Name() string       { return "WebSocket endpoints" }
func (websocketDetector) Description() string {
	return "WebSocket routes, ws server constructors and Socket.IO event handlers"
}

func (websocketDetector) Detect(ctx context.Context, files []models.ClassifiedFile, core *match.Core) ([]models.APIDefinition, []models.AnalysisError) {
	var defs []models.APIDefinition
	for _, cf := range files {
		if ctx.Err() != nil {
			break
		}
		if !cf.IsCandidate(models.TypeWebSocket) {
			continue
		}
		content, err := cf.File.Content()
		if err != nil {
			continue
		}

		var (
			events          []string
			eventSeen       = map[string]bool{}
			eventLine       int
			eventConfidence models.Confidence
		)
		for _, cand := range websocketRules.Scan(cf.Language, content) {
			if cand.Rule.Protocol != models.TypeWebSocket {
				continue
			}
			confidence, ok := core.Confirm(ctx, cf.Language, content, cand.Offset)
			if !ok {
				continue
			}

			switch cand.Rule.ID {
			case "fastapi_websocket":
				path := cand.Groups["path"]
				defs = append(defs, models.APIDefinition{
					Name:       fmt.Sprintf("WebSocket %s", path),
					Type:       models.TypeWebSocket,
					Confidence: confidence,
					SourceFile: cf.File.Path,
					SourceLine: cand.Line,
					WebSocket:  &models.WebSocketAPI{Endpoint: path},
				})
			case "ws_server":
				endpoint := wsServerEndpoint(cand.Groups["opts"])
				defs = append(defs, models.APIDefinition{
					Name:       fmt.Sprintf("WebSocket server %s", endpoint),
					Type:       models.TypeWebSocket,
					Confidence: confidence,
					SourceFile: cf.File.Path,
					SourceLine: cand.Line,
					WebSocket:  &models.WebSocketAPI{Endpoint: endpoint},
				})
			case "socketio_event":
				event := cand.Groups["event"]
				if !eventSeen[event] {
					eventSeen[event] = true
					events = append(events, event)
				}
				if eventLine == 0 || cand.Line < eventLine {
					eventLine = cand.Line
				}
				if eventConfidence == "" || confidence == models.ConfidenceStructural {
					eventConfidence = confidence
				}
			}
		}

		if len(events) > 0 {
			sort.Strings(events)
			defs = append(defs, models.APIDefinition{
				Name:       "Socket.IO events",
				Type:       models.TypeWebSocket,
				Confidence: eventConfidence,
				SourceFile: cf.File.Path,
				SourceLine: eventLine,
				WebSocket:  &models.WebSocketAPI{Endpoint: socketIOEndpoint, Events: events},
			})
		}
	}
	return defs, nil
}

// wsServerEndpoint derives a display endpoint from the server options:
// an explicit path wins, a bare port renders as ":port".
func wsServerEndpoint(opts string) string {
	var port string
	for _, m := range wsOptPattern.FindAllStringSubmatch(opts, -1) {
		switch m[1] {
		case "path":
			return m[2]
		case "port":
			port = m[2]
		}
	}
	if port != "" {
		return ":" + port
	}
	return "/"
}
