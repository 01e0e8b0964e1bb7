// Package venue maps raw schedule venue labels to the short display name and
// news channel number used on the paging network.
//
// Channel numbers must stay stable across releases: receivers filter news by
// number, so changing one mid-event silently reroutes live notifications.
package venue

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// OtherKey is the canonical key of the fallback entry.
	OtherKey = "other"
	// OtherChannel is the channel number used for venues not in the table.
	OtherChannel = 10

	// MinChannel and MaxChannel bound the news numbers the network accepts.
	MinChannel = 1
	MaxChannel = 10
)

var ErrInvalidTable = errors.New("invalid venue table")

// Entry is one row of the venue table.
type Entry struct {
	Key       string
	ShortName string
	Channel   int
}

// Builtin is the EMF Camp venue table.
var Builtin = []Entry{
	{Key: "Stage A", ShortName: "Stg A", Channel: 1},
	{Key: "Stage B", ShortName: "Stg B", Channel: 2},
	{Key: "Stage C", ShortName: "Stg C", Channel: 3},
	{Key: "Workshop 1 (NottingHack)", ShortName: "Wksp 1", Channel: 4},
	{Key: "Workshop 2", ShortName: "Wksp 2", Channel: 5},
	{Key: "Workshop 3 (Furry High Commission)", ShortName: "Wksp 3", Channel: 6},
	{Key: "Workshop 4", ShortName: "Wksp 4", Channel: 7},
	{Key: "Workshop 5", ShortName: "Wksp 5", Channel: 8},
	{Key: "Null Sector", ShortName: "Null Sec", Channel: 9},
}

// Catalog resolves venue labels by exact match. It is immutable after
// construction and safe for concurrent use.
type Catalog struct {
	byKey map[string]Entry
}

// Default returns a catalog over Builtin.
func Default() *Catalog {
	c, err := NewCatalog(Builtin)
	if err != nil {
		panic(err)
	}
	return c
}

// NewCatalog validates entries and builds a catalog from them.
// Channel OtherChannel is reserved for the fallback entry.
func NewCatalog(entries []Entry) (*Catalog, error) {
	byKey := make(map[string]Entry, len(entries))
	for i, e := range entries {
		switch {
		case e.Key == "":
			return nil, fmt.Errorf("%w: entry %d: empty key", ErrInvalidTable, i)
		case strings.TrimSpace(e.ShortName) == "":
			return nil, fmt.Errorf("%w: %q: empty short name", ErrInvalidTable, e.Key)
		case e.Channel < MinChannel || e.Channel >= OtherChannel:
			return nil, fmt.Errorf("%w: %q: channel %d out of range %d..%d", ErrInvalidTable, e.Key, e.Channel, MinChannel, OtherChannel-1)
		}
		if _, dup := byKey[e.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrInvalidTable, e.Key)
		}
		byKey[e.Key] = e
	}
	return &Catalog{byKey: byKey}, nil
}

// Resolve returns the entry for raw. Unknown labels resolve to the fallback
// entry, which uses raw itself as the short name.
func (c *Catalog) Resolve(raw string) Entry {
	if e, ok := c.byKey[raw]; ok {
		return e
	}
	return Entry{Key: OtherKey, ShortName: raw, Channel: OtherChannel}
}

// Len returns the number of known venues.
func (c *Catalog) Len() int { return len(c.byKey) }
