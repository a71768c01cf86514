// internal/snapshot/cache.go
package snapshot

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/tamzrod/flapbus/internal/store"
)

// Unit is one entry of the query document.
type Unit struct {
	Address                 int    `json:"address"`
	Rotating                bool   `json:"rotating"`
	Offset                  int    `json:"offset"`
	ZeroPositionLetterIndex int    `json:"zeroPositionLetterIndex"`
	LastResponseAtMillis    uint32 `json:"lastResponseAtMillis"`
}

// Bus carries the recovery counters.
type Bus struct {
	Faults            int    `json:"faults"`
	LastFaultAtMillis uint32 `json:"lastFaultAtMillis"`
}

// Document is the query-ready view handed to network handlers.
type Document struct {
	BootID            string `json:"bootId,omitempty"`
	Units             []Unit `json:"units"`
	CurrentTimeMillis uint32 `json:"currentTimeMillis"`
	Bus               Bus    `json:"bus"`
}

// Input is everything a refresh serializes.
type Input struct {
	Units     []store.UnitState // already cut to the configured count
	NowMillis uint32
	Bus       Bus
}

// Build turns an Input into a Document. No IO.
func Build(bootID string, in Input) Document {
	doc := Document{
		BootID:            bootID,
		Units:             make([]Unit, 0, len(in.Units)),
		CurrentTimeMillis: in.NowMillis,
		Bus:               in.Bus,
	}
	for _, u := range in.Units {
		doc.Units = append(doc.Units, Unit{
			Address:                 u.Address,
			Rotating:                u.Rotating,
			Offset:                  u.Offset,
			ZeroPositionLetterIndex: u.ZeroPositionLetterIndex,
			LastResponseAtMillis:    u.LastResponseAtMillis,
		})
	}
	return doc
}

// Cache publishes the serialized document atomically.
// Readers never block and never see a half-built document.
type Cache struct {
	bootID string
	cur    atomic.Pointer[string]
}

// New starts with an empty document.
func New(bootID string) *Cache {
	c := &Cache{bootID: bootID}
	_ = c.Refresh(Input{})
	return c
}

// Refresh rebuilds and publishes the document.
func (c *Cache) Refresh(in Input) error {
	b, err := json.Marshal(Build(c.bootID, in))
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}
	s := string(b)
	c.cur.Store(&s)
	return nil
}

// Serialized returns the last published document.
func (c *Cache) Serialized() string {
	if p := c.cur.Load(); p != nil {
		return *p
	}
	return ""
}
