package config

import "flag"

var (
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagDir      = flag.String("dir", "", "Collision data root")
	flagWorkers  = flag.Int("workers", 0, "Files decoded in parallel")
	flagMaxDepth = flag.Int("max-depth", 0, "Maximum octree depth")
	flagSize     = flag.Int("size", 0, "Preview image size in pixels")
	flagLogFile  = flag.String("log-file", "", "Write JSON logs to this file")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via -config.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagDir != "" {
		cfg.Data.CollisionDir = *flagDir
	}
	if *flagWorkers > 0 {
		cfg.Decode.Workers = *flagWorkers
	}
	if *flagMaxDepth > 0 {
		cfg.Decode.MaxOctreeDepth = *flagMaxDepth
	}
	if *flagSize > 0 {
		cfg.Render.Size = *flagSize
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
}
