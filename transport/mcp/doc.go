// Package mcp exposes Road Tiles to AI agents over the Model Context Protocol.
//
// The Client is a thin proxy: every tool call becomes a request against the
// REST API and the JSON answer is rendered as text an agent can read. The
// board is drawn with box glyphs, the car's tile in brackets and visited
// tiles with a trailing star:
//
//	    0  1  2  3
//	0 [╔] ═  ═  ╗
//	1  ║  ╔* ╗  ║
//	2  ║  ║  .  ║
//	3  ╚  ╝  ╚  ╝
//
// MCP Tools:
//   - create_session, list_sessions, get_session
//   - game_state, describe_tile, game_instructions
//   - slide, bulk_slide
//   - advance, tick, pause, resume, retry, reverse, set_speed, reset_game
//   - move_history, list_configs, leaderboard
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: the /mcp endpoint mounted by the server command
package mcp
