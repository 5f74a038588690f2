// Package session keeps the live game sessions of the Road Tiles server.
//
// Each Session owns its own engine, so boards, cars and clocks never leak
// between players. Sessions are addressed by short case-insensitive IDs;
// an empty ID on Create yields a random 4-character hex ID.
//
// Persistence:
//
// NewManagerWithPersistence attaches a SessionPersistence. FilePersistence
// writes one JSON file per session (the preset plus the full game state) and
// the manager saves on create and on access. Sessions missing from memory are
// loaded lazily by Get, or all at once with LoadPersistedSessions at startup.
//
//	fp, err := session.NewFilePersistence("sessions", configManager)
//	manager := session.NewManagerWithPersistence(fp)
//	if err := manager.LoadPersistedSessions(); err != nil {
//		log.Fatal(err)
//	}
//
//	sess, err := manager.Create("", "snake", preset)
package session
