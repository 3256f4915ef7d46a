package cache

// Config holds the cache size limits. When a cache grows past its limit
// the oldest Trim entries are dropped at once.
type Config struct {
	TileLimit  int `json:"tileLimit" yaml:"tileLimit"`
	TileTrim   int `json:"tileTrim" yaml:"tileTrim"`
	LabelLimit int `json:"labelLimit" yaml:"labelLimit"`
	LabelTrim  int `json:"labelTrim" yaml:"labelTrim"`
}

// DefaultConfig returns default cache configuration
func DefaultConfig() *Config {
	return &Config{
		TileLimit:  999,
		TileTrim:   500,
		LabelLimit: 1000,
		LabelTrim:  250,
	}
}

// Merge fills zero fields of c from defaults
func (c *Config) Merge(defaults *Config) {
	if c.TileLimit <= 0 {
		c.TileLimit = defaults.TileLimit
	}
	if c.TileTrim <= 0 {
		c.TileTrim = defaults.TileTrim
	}
	if c.LabelLimit <= 0 {
		c.LabelLimit = defaults.LabelLimit
	}
	if c.LabelTrim <= 0 {
		c.LabelTrim = defaults.LabelTrim
	}
}
