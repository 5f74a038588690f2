package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/roadtiles/game/engine"
	"github.com/wricardo/mcp-training/roadtiles/game/service"
	"github.com/wricardo/mcp-training/roadtiles/game/store"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Road Tiles",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Road Tiles - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Slide road tiles on a 4x4 board so the self-driving car visits every tile.
The car keeps driving on its own; a tile adjacent to the empty slot can be slid into it.

AVAILABLE TOOLS:
- create_session, list_sessions, get_session: manage games
- game_state: board, car and status
- slide / bulk_slide: move tiles into the empty slot - requires intent explanation
- advance: move the car one tile now
- tick: advance the clock by some milliseconds
- pause, resume, retry, reverse: car controls (retry/reverse recover from a crash)
- set_speed: speed level 1-10 and fast mode
- reset_game: restore the starting board
- move_history: view past actions
- list_configs, leaderboard: presets and their best runs
- game_instructions: rules and tile legend
- describe_tile: the roads printed on one tile

NOTE: The 'intent' parameter on slide/bulk_slide serves as rubber duck debugging - explain your reasoning!`),
	)

	c.registerTools()
}

func sessionProp() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

func sessionOnly() mcp.ToolInputSchema {
	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]interface{}{"session_id": sessionProp()},
		Required:   []string{"session_id"},
	}
}

func noArgs() mcp.ToolInputSchema {
	return mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session with optional preset selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Preset to play, e.g. level1, snake (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: noArgs(),
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: sessionOnly(),
	}, c.handleGetSession)

	// Board
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the current board, car and status",
		InputSchema: sessionOnly(),
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "slide",
		Description: "Slide the tile at (row, col) into the adjacent empty slot",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"row": map[string]interface{}{
					"type":        "integer",
					"description": "Row of the tile to slide (0-3)",
				},
				"col": map[string]interface{}{
					"type":        "integer",
					"description": "Column of the tile to slide (0-3)",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of the intent behind this slide (serves as a rubber duck to help explain your reasoning)",
				},
			},
			Required: []string{"session_id", "row", "col"},
		},
	}, c.handleSlide)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "bulk_slide",
		Description: fmt.Sprintf("Slide several tiles in order. Invalid slides are skipped; stops on victory. At most %d slides.", engine.MaxBulkSlides),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"slides": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"row": map[string]interface{}{"type": "integer"},
							"col": map[string]interface{}{"type": "integer"},
						},
						"required": []string{"row", "col"},
					},
					"description": "Tiles to slide, in order",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of the intent behind this sequence of slides",
				},
			},
			Required: []string{"session_id", "slides"},
		},
	}, c.handleBulkSlide)

	// Car
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "advance",
		Description: "Move the car onto the next tile immediately",
		InputSchema: sessionOnly(),
	}, c.handleAdvance)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "tick",
		Description: "Advance the game clock; the car moves when a full tile duration has elapsed",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"dt_ms": map[string]interface{}{
					"type":        "integer",
					"description": "Milliseconds to advance",
				},
			},
			Required: []string{"session_id", "dt_ms"},
		},
	}, c.handleTick)

	for _, action := range []struct{ name, desc string }{
		{"pause", "Pause the car"},
		{"resume", "Resume a paused car"},
		{"retry", "After a crash, put the car back on the tile it crashed from"},
		{"reverse", "After a crash, turn the car around on its tile"},
	} {
		c.mcpServer.AddTool(mcp.Tool{
			Name:        action.name,
			Description: action.desc,
			InputSchema: sessionOnly(),
		}, c.controlHandler(action.name))
	}

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_speed",
		Description: "Set the car speed level (1 slowest, 10 fastest) and optionally fast mode",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"level": map[string]interface{}{
					"type":        "integer",
					"description": "Speed level 1-10",
				},
				"fast": map[string]interface{}{
					"type":        "boolean",
					"description": "Fast mode divides the tile duration by 5",
				},
			},
			Required: []string{"session_id", "level"},
		},
	}, c.handleSetSpeed)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_game",
		Description: "Reset the board and car to the preset start",
		InputSchema: sessionOnly(),
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "move_history",
		Description: "Get action history for a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Items per page",
				},
				"order": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Oldest or newest first",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleMoveHistory)

	// Presets
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available presets",
		InputSchema: noArgs(),
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "leaderboard",
		Description: "Best recorded runs for a preset",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Preset ID",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Number of results",
				},
			},
			Required: []string{"config_id"},
		},
	}, c.handleLeaderboard)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get game instructions, rules and the tile legend",
		InputSchema: noArgs(),
	}, c.handleGameInstructions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_tile",
		Description: "Describe the tile at (row, col): its type, the roads printed on it and whether it can slide",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"row":        map[string]interface{}{"type": "integer", "description": "Row (0-3)"},
				"col":        map[string]interface{}{"type": "integer", "description": "Column (0-3)"},
			},
			Required: []string{"session_id", "row", "col"},
		},
	}, c.handleDescribeTile)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func sessionPath(args map[string]interface{}, suffix string) string {
	id, _ := args["session_id"].(string)
	return "/api/sessions/" + url.PathEscape(id) + suffix
}

// intArg reads a JSON number argument
func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func requireCell(args map[string]interface{}) (row, col int, err error) {
	row, okRow := intArg(args, "row")
	col, okCol := intArg(args, "col")
	if !okRow || !okCol {
		return 0, 0, fmt.Errorf("row and col are required integers")
	}
	return row, col, nil
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	body := map[string]string{}
	if id, _ := args["config_id"].(string); id != "" {
		body["config_id"] = id
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Created session: %s\nPreset: %s (%s)\n\n%s",
		session.ID, session.ConfigName, session.ConfigID, formatGameState(session.GameState))), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		status := ""
		if s.GameState != nil {
			status = string(s.GameState.Status)
		}
		fmt.Fprintf(&b, "- %s (Preset: %s, Status: %s, Created: %s)\n",
			s.ID, s.ConfigID, status, s.CreatedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(request.GetArguments(), ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(request.GetArguments(), "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleSlide(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	row, col, err := requireCell(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.SlideResult
	body := map[string]int{"row": row, "col": col}
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/slide"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSlideResult(&result)), nil
}

func (c *Client) handleBulkSlide(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	raw, _ := args["slides"].([]interface{})

	slides := make([]engine.Position, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("slide %d must be an object with row and col", i+1)), nil
		}
		row, col, err := requireCell(m)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("slide %d: %v", i+1, err)), nil
		}
		slides = append(slides, engine.Position{Row: row, Col: col})
	}

	var result service.BulkSlideResult
	body := map[string]interface{}{"slides": slides}
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/bulk-slide"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, _ := args["session_id"].(string)
	return mcp.NewToolResultText(formatBulkSlideResult(id, &result)), nil
}

func (c *Client) handleAdvance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var result service.StepResult
	if err := c.apiCall(ctx, "POST", sessionPath(request.GetArguments(), "/advance"), nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatStepResult(&result)), nil
}

func (c *Client) handleTick(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	dt, ok := intArg(args, "dt_ms")
	if !ok {
		return mcp.NewToolResultError("dt_ms is required"), nil
	}

	var result service.StepResult
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/tick"), map[string]int{"dt_ms": dt}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatStepResult(&result)), nil
}

func (c *Client) controlHandler(action string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var result service.ControlResult
		if err := c.apiCall(ctx, "POST", sessionPath(request.GetArguments(), "/"+action), nil, &result); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		mark := "✓"
		if !result.Success {
			mark = "✗"
		}
		return mcp.NewToolResultText(fmt.Sprintf("%s %s: %s\n\n%s",
			mark, action, result.Message, formatGameState(result.GameState))), nil
	}
}

func (c *Client) handleSetSpeed(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	level, ok := intArg(args, "level")
	if !ok {
		return mcp.NewToolResultError("level is required"), nil
	}
	body := map[string]interface{}{"level": level}
	if fast, ok := args["fast"].(bool); ok {
		body["fast"] = fast
	}

	var state engine.GameState
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/speed"), body, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Speed %d (fast: %v), %s per tile",
		state.Speed, state.Fast, engine.TileDuration(state.Speed, state.Fast))), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Message string            `json:"message"`
		State   *engine.GameState `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(request.GetArguments(), "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatGameState(response.State))), nil
}

func (c *Client) handleMoveHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	query := url.Values{}
	if page, ok := intArg(args, "page"); ok {
		query.Set("page", fmt.Sprint(page))
	}
	if limit, ok := intArg(args, "limit"); ok {
		query.Set("limit", fmt.Sprint(limit))
	}
	if order, _ := args["order"].(string); order != "" {
		query.Set("order", order)
	}

	path := sessionPath(args, "/history")
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Presets:\n\n")
	for _, cfg := range configs {
		fmt.Fprintf(&b, "• %s (%s, %s)\n  %s\n  Car starts at (%d,%d) entering from %s, empty slot at (%d,%d)\n\n",
			cfg.ConfigID, cfg.Name, cfg.Source, cfg.Description,
			cfg.Car.Row, cfg.Car.Col, cfg.Car.Entering, cfg.Empty.Row, cfg.Empty.Col)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleLeaderboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	id, _ := args["config_id"].(string)
	path := "/api/results/" + url.PathEscape(id)
	if limit, ok := intArg(args, "limit"); ok {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	var results []store.Result
	if err := c.apiCall(ctx, "GET", path, nil, &results); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No recorded wins for %s yet", id)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Leaderboard for %s:\n\n", id)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. session %s: %d actions, %s (%s)\n",
			i+1, r.SessionID, r.TotalMoves, time.Duration(r.ElapsedMs)*time.Millisecond, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var legend strings.Builder
	for _, t := range engine.TileTypes {
		var roads []string
		for _, conn := range engine.Connections(t) {
			roads = append(roads, fmt.Sprintf("%s-%s", conn[0], conn[1]))
		}
		fmt.Fprintf(&legend, "  %s  %-10s roads: %s\n", glyph(t), t, strings.Join(roads, ", "))
	}

	instructions := fmt.Sprintf(`Road Tiles - Complete Instructions

GAME OBJECTIVE:
Keep the self-driving car on the road until it has visited every one of the 15 tiles.

BOARD:
• 4x4 grid holding 15 road tiles and one empty slot
• Coordinates are (row, col), both 0-3, with (0,0) at the top left
• A tile next to the empty slot (not diagonal) can slide into it
• If the car is on the tile you slide, it rides along

THE CAR:
• The car enters each tile through one edge (top, bottom, left, right)
• When it has spent a full tile duration on a tile it follows the road to the exit edge
  and moves into the neighbouring tile, which must have a road on the facing edge
• Tile duration = 500ms + (10 - speed) x 500ms, divided by 5 in fast mode

CRASHES:
• No road out of the tile from the entering edge
• The road runs off the board or into the empty slot
• The next tile has no road on the facing edge
After a crash use retry (same tile, same entering edge) or reverse (turn around)

VICTORY:
• Every tile has been visited; the board then freezes

TILE LEGEND:
%s
GRID DISPLAY:
• [x] marks the tile the car is on, * marks a visited tile, . is the empty slot

TIPS:
• Pause the car while planning several slides
• Use advance to step the car one tile at a time
• bulk_slide skips invalid slides instead of aborting
`, legend.String())

	return mcp.NewToolResultText(instructions), nil
}

func (c *Client) handleDescribeTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	row, col, err := requireCell(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !engine.InBounds(row, col) {
		return mcp.NewToolResultError(fmt.Sprintf("Coordinates (%d, %d) are out of bounds. The board is %dx%d (0-%d for row and col)",
			row, col, engine.GridSize, engine.GridSize, engine.GridSize-1)), nil
	}

	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(args, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if state.Board == nil {
		return mcp.NewToolResultError("no board available"), nil
	}

	return mcp.NewToolResultText(describeTile(&state, row, col)), nil
}

func describeTile(state *engine.GameState, row, col int) string {
	tile := state.Board.At(row, col)
	if tile == nil {
		return fmt.Sprintf("Cell (%d, %d) is the empty slot. Tiles at %s can slide into it.",
			row, col, formatPositions(state.Board.SlidablePositions()))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tile at (%d, %d):\n", row, col)
	fmt.Fprintf(&b, "Type: %s %s\n", tile.Type, glyph(tile.Type))
	b.WriteString("Roads:")
	for _, conn := range engine.Connections(tile.Type) {
		fmt.Fprintf(&b, " %s-%s", conn[0], conn[1])
	}
	fmt.Fprintf(&b, "\nVisited: %v\n", tile.Visited)
	fmt.Fprintf(&b, "Can slide: %v\n", state.Status != engine.StatusWon && state.Board.CanSlide(row, col))

	if state.Car.Row == row && state.Car.Col == col {
		fmt.Fprintf(&b, "The car is here, entering from %s", state.Car.Entering)
		if exit, ok := engine.ExitEdge(tile.Type, state.Car.Entering); ok {
			fmt.Fprintf(&b, " and will leave through %s", exit)
		} else {
			b.WriteString(" with no road out")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Formatting helpers

var glyphs = map[engine.TileType]string{
	engine.Horizontal:       "═",
	engine.Vertical:         "║",
	engine.CurveTopLeft:     "╝",
	engine.CurveTopRight:    "╚",
	engine.CurveBottomRight: "╔",
	engine.CurveBottomLeft:  "╗",
	engine.Cross:            "╬",
	engine.SCurve:           "S",
	engine.ZCurve:           "Z",
}

func glyph(t engine.TileType) string {
	if g, ok := glyphs[t]; ok {
		return g
	}
	return "?"
}

func formatPositions(ps []engine.Position) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = fmt.Sprintf("(%d,%d)", p.Row, p.Col)
	}
	return strings.Join(parts, " ")
}

func formatSessionInfo(session *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nPreset: %s (%s)\nCreated: %s\n\n%s",
		session.ID, session.ConfigName, session.ConfigID,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		formatGameState(session.GameState))
}

func formatGameState(state *engine.GameState) string {
	if state == nil || state.Board == nil {
		return "No game state available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s | Car: (%d,%d) entering %s | Progress: %.0f%% | Tiles: %d/%d | Speed: %d",
		state.Status, state.Car.Row, state.Car.Col, state.Car.Entering,
		state.Progress*100, state.TilesEntered, state.TotalTiles, state.Speed)
	if state.Fast {
		b.WriteString(" (fast)")
	}
	fmt.Fprintf(&b, " | Moves: %d\n\n", state.TotalMoves)

	b.WriteString(formatBoard(state))

	switch state.Status {
	case engine.StatusWon:
		b.WriteString("\n🎉 VICTORY!")
	case engine.StatusCrashed:
		fmt.Fprintf(&b, "\n💥 CRASHED: %s (use retry or reverse)", state.CrashReason.Describe())
	}

	if state.Message != "" {
		fmt.Fprintf(&b, "\nMessage: %s", state.Message)
	}
	return b.String()
}

// formatBoard renders the board with column and row labels
func formatBoard(state *engine.GameState) string {
	var b strings.Builder
	b.WriteString("    0  1  2  3\n")
	for r := 0; r < engine.GridSize; r++ {
		fmt.Fprintf(&b, "%d ", r)
		for c := 0; c < engine.GridSize; c++ {
			tile := state.Board.At(r, c)
			switch {
			case tile == nil:
				b.WriteString(" . ")
			case state.Car.Row == r && state.Car.Col == c:
				fmt.Fprintf(&b, "[%s]", glyph(tile.Type))
			case tile.Visited:
				fmt.Fprintf(&b, " %s*", glyph(tile.Type))
			default:
				fmt.Fprintf(&b, " %s ", glyph(tile.Type))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatEvents(b *strings.Builder, events []service.GameEvent) {
	if len(events) == 0 {
		return
	}
	b.WriteString("Events:\n")
	for _, event := range events {
		fmt.Fprintf(b, "- %s: %s\n", event.Type, event.Message)
	}
}

func formatSlideResult(result *service.SlideResult) string {
	var b strings.Builder
	if result.Success {
		fmt.Fprintf(&b, "✓ Slid (%d,%d) → (%d,%d)", result.From.Row, result.From.Col, result.To.Row, result.To.Col)
		if result.CarMoved {
			b.WriteString(", the car rode along")
		}
		b.WriteString("\n")
	} else {
		fmt.Fprintf(&b, "✗ Cannot slide (%d,%d)\n", result.From.Row, result.From.Col)
	}
	if result.Message != "" {
		fmt.Fprintf(&b, "%s\n", result.Message)
	}
	formatEvents(&b, result.Events)
	if len(result.Slidable) > 0 {
		fmt.Fprintf(&b, "Slidable now: %s\n", formatPositions(result.Slidable))
	}

	b.WriteString("\n")
	b.WriteString(formatGameState(result.GameState))
	return b.String()
}

func formatBulkSlideResult(sessionID string, result *service.BulkSlideResult) string {
	var b strings.Builder

	configName := ""
	if result.GameState != nil {
		configName = result.GameState.ConfigName
	}
	fmt.Fprintf(&b, "Session: %s • Preset: %s\n", sessionID, configName)
	fmt.Fprintf(&b, "Executed %d/%d slides", result.SlidesExecuted, result.RequestedSlides)
	if result.Truncated {
		fmt.Fprintf(&b, " (truncated to %d)", result.Limit)
	}
	b.WriteString("\n")
	if len(result.FailedSlides) > 0 {
		parts := make([]string, len(result.FailedSlides))
		for i, n := range result.FailedSlides {
			parts[i] = fmt.Sprint(n)
		}
		fmt.Fprintf(&b, "Skipped invalid slides: %s\n", strings.Join(parts, ", "))
	}
	if result.StopReasonCode != "" {
		fmt.Fprintf(&b, "Stopped: %s\n", result.StopReasonCode)
	}
	fmt.Fprintf(&b, "Empty slot: (%d,%d) → (%d,%d)\n",
		result.StartEmpty.Row, result.StartEmpty.Col, result.EndEmpty.Row, result.EndEmpty.Col)

	formatEvents(&b, result.Events)
	if len(result.Slidable) > 0 {
		fmt.Fprintf(&b, "Slidable now: %s\n", formatPositions(result.Slidable))
	}

	b.WriteString("\n")
	b.WriteString(formatGameState(result.GameState))
	return b.String()
}

func formatStepResult(result *service.StepResult) string {
	var b strings.Builder
	switch {
	case result.Crash != engine.CrashNone:
		fmt.Fprintf(&b, "💥 Crash: %s\n", result.Crash.Describe())
	case result.Advanced:
		fmt.Fprintf(&b, "✓ Car moved to (%d,%d) entering %s\n", result.Car.Row, result.Car.Col, result.Car.Entering)
	default:
		fmt.Fprintf(&b, "Car still on (%d,%d), %.0f%% across\n", result.Car.Row, result.Car.Col, result.Progress*100)
	}
	if result.Message != "" {
		fmt.Fprintf(&b, "%s\n", result.Message)
	}
	formatEvents(&b, result.Events)

	b.WriteString("\n")
	b.WriteString(formatGameState(result.GameState))
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Move History (Page %d/%d), total (cumulative): %d\n\n",
		history.Page, history.TotalPages, history.TotalMoves)

	for _, move := range history.Moves {
		status := "✓"
		if !move.Success {
			status = "✗"
		}
		fmt.Fprintf(&b, "%d. %s (%d,%d)→(%d,%d) %s\n",
			move.MoveNumber, move.Action,
			move.FromPosition.Row, move.FromPosition.Col,
			move.ToPosition.Row, move.ToPosition.Col, status)
	}
	return b.String()
}
