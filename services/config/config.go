// Package config publishes the board's embedded configuration as
// retained messages, one topic per consuming service. Services started
// before or after config see the same retained snapshot.
package config

import (
	"context"
	_ "embed"
	"encoding/json"

	"supermini-go/bus"
	"supermini-go/types"
)

//go:embed board.json
var boardJSON []byte

// Board is the top-level embedded document.
type Board struct {
	Name string          `json:"name"`
	HAL  types.HALConfig `json:"hal"`
}

// Load parses the embedded board document.
func Load() (Board, error) {
	var b Board
	if err := json.Unmarshal(boardJSON, &b); err != nil {
		return Board{}, err
	}
	return b, nil
}

// Run publishes the configuration and blocks until ctx ends.
func Run(ctx context.Context, conn *bus.Connection) error {
	b, err := Load()
	if err != nil {
		return err
	}
	Publish(conn, b)
	<-ctx.Done()
	return nil
}

// Publish pushes every config section retained onto the bus.
func Publish(conn *bus.Connection, b Board) {
	conn.Publish(conn.NewMessage(bus.T("config", "board"), b.Name, true))
	conn.Publish(conn.NewMessage(bus.T("config", "hal"), b.HAL, true))
}
