package tickerstate

import (
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/arduino-trader/internal/domain"
)

// SaveSnapshot serializes the current state map to disk so a restart can
// skip the full REST warm-up for symbols it already knew about. This has
// no equivalent in the Python original — a pure Go addition enabled by
// msgpack's compact binary encoding of the state map.
func (c *Cache) SaveSnapshot(path string) error {
	c.mu.RLock()
	flat := make(map[string]domain.TickerState, len(c.states))
	for k, v := range c.states {
		flat[k] = *v
	}
	c.mu.RUnlock()

	data, err := msgpack.Marshal(flat)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadSnapshot restores a previously saved state map. Missing file is
// not an error — a fresh start simply warms up from scratch.
func (c *Cache) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var flat map[string]domain.TickerState
	if err := msgpack.Unmarshal(data, &flat); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range flat {
		state := v
		c.states[k] = &state
	}
	return nil
}
