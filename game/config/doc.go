// Package config provides preset management for the Road Tiles game.
//
// The config package handles:
//   - The built-in levels (level1, level2, level3, snake, circles)
//   - Loading preset files (.yaml, .yml, .json) from a config directory
//   - User presets kept in the preset store, which can be added, edited and removed
//   - Validation of every preset before it is cached, listed or saved
//
// Preset Format:
//
// A preset file names the 4x4 tile grid by tile type number (0 is the empty
// cell), the position of the empty cell, and where the car starts:
//
//	name: Ring
//	grid:
//	  - [5, 1, 1, 6]
//	  - [2, 7, 7, 2]
//	  - [2, 7, 0, 2]
//	  - [4, 1, 1, 3]
//	empty: {row: 2, col: 2}
//	car: {row: 0, col: 0, entering: bottom}
//
// Usage:
//
//	manager, err := config.NewManager("configs", config.WithStore(db))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	preset, err := manager.LoadConfig(ctx, "snake")
//	configs, err := manager.ListConfigs(ctx)
//	id, err := manager.SaveConfig(ctx, "", myPreset)
package config
