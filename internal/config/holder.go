package config

import "sync"

// Holder wraps a Config with reload support. Get returns the current
// snapshot; Reload re-runs the full load hierarchy from the original
// YAML path and swaps the snapshot only if the result validates.
type Holder struct {
	mu   sync.RWMutex
	cfg  *Config
	path string
}

// NewHolder creates a Holder around an already-loaded config.
func NewHolder(cfg *Config, yamlPath string) *Holder {
	return &Holder{cfg: cfg, path: yamlPath}
}

// Get returns the current config snapshot. The returned pointer must be
// treated as read-only.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Reload re-loads the config from disk and environment. On any load or
// validation error the previous config is preserved.
func (h *Holder) Reload() error {
	cfg, err := LoadFrom(h.path)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
	return nil
}
