// Package api provides the HTTP REST API for Road Tiles.
//
// The api package implements:
//   - Session management endpoints
//   - Board and car operations for one session
//   - Preset listing and editing
//   - Leaderboard results per preset
//   - WebSocket upgrade handling
//   - A background clock that ticks every running session
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create new session ({"config_id": "level1"}, optional)
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&config=&limit=)
//   - GET /api/sessions/{id} - Get specific session
//   - DELETE /api/sessions/{id} - Delete session
//
// Game Operations:
//   - GET /api/sessions/{id}/state - Current game state
//   - POST /api/sessions/{id}/slide - Slide one tile ({"row": 2, "col": 1})
//   - POST /api/sessions/{id}/bulk-slide - Slide several tiles in order ({"slides": [...]})
//   - POST /api/sessions/{id}/tick - Advance the clock ({"dt_ms": 250}, 0 to 60000)
//   - POST /api/sessions/{id}/advance - Move the car one tile now
//   - POST /api/sessions/{id}/pause, /resume, /retry, /reverse
//   - POST /api/sessions/{id}/speed - Set speed ({"level": 1-10, "fast": true})
//   - POST /api/sessions/{id}/reset - Restore the starting board
//   - GET /api/sessions/{id}/history - Move history (?page=&limit=&order=asc|desc)
//
// Presets:
//   - GET /api/configs, GET /api/configs/{name}
//   - POST /api/configs, PUT /api/configs/{name}, DELETE /api/configs/{name}
//
// A preset body holding only a name and a grid gets its empty cell and car
// start derived from the grid.
//
// Errors are returned as JSON with the matching HTTP status code:
//
//	{
//	  "error": "session 'ab12': session not found",
//	  "code": 404
//	}
package api
