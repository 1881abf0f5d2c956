package config

// Overrides carries command-line values. Nil fields leave the loaded
// configuration untouched.
type Overrides struct {
	Threshold    *float64
	Frames       *int
	HashSize     *int
	SkipDuration *float64
	Workers      *int
	Recursive    *bool
	CacheFile    *string
	WatchedDB    *string
	Verbose      bool
	LogFormat    *string
}

func (o Overrides) apply(c *Config) {
	if o.Threshold != nil {
		c.Scan.Threshold = *o.Threshold
	}
	if o.Frames != nil {
		c.Scan.Frames = *o.Frames
	}
	if o.HashSize != nil {
		c.Scan.HashSize = *o.HashSize
	}
	if o.SkipDuration != nil {
		c.Scan.SkipDuration = *o.SkipDuration
	}
	if o.Workers != nil {
		c.Scan.Workers = *o.Workers
	}
	if o.Recursive != nil {
		c.Scan.Recursive = *o.Recursive
	}
	if o.CacheFile != nil {
		c.Cache.FileName = *o.CacheFile
	}
	if o.WatchedDB != nil {
		c.Watched.DBPath = *o.WatchedDB
	}
	if o.LogFormat != nil {
		c.Logging.Format = *o.LogFormat
	}
	if o.Verbose {
		c.Logging.Level = "debug"
	}
}
