// Package websocket pushes live Road Tiles state to browsers and other
// watchers.
//
// A Hub groups connections by session ID (case-insensitive). After every
// mutation the API calls BroadcastToSession, and each connected client
// receives one JSON text frame:
//
//	{"session_id":"ab12","event":"state_update","game_state":{...}}
//
// Custom events (for example "victory") go out through BroadcastEvent with an
// arbitrary data payload. Incoming frames are read only to keep the
// connection alive.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
//
// The hub owns its client map on the Run goroutine; broadcasts are queued
// and dropped with a warning if the queue is full. Clients that cannot keep
// up are disconnected.
package websocket
