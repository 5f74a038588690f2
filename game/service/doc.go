// Package service is the orchestration layer between the transports (REST,
// WebSocket, MCP) and the Road Tiles engine.
//
// GameService owns a lock over every session it touches, so transports and
// the optional server-side clock (TickAll) may call it from any goroutine.
// States handed back are snapshots; mutate a session only through the service.
//
// After each mutation the session is persisted through its SessionManager,
// and the first time a session reaches the won status the run is written to
// the ResultStore, if one is configured.
//
//	svc := service.NewGameService(sessions, configs,
//		service.WithResultStore(db),
//		service.WithLogger(logger),
//	)
//
//	info, err := svc.CreateSession(ctx, "snake")
//	res, err := svc.Slide(ctx, info.ID, 2, 1)
//	step, err := svc.Tick(ctx, info.ID, 100*time.Millisecond)
package service
