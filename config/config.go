// Package config loads the on-disk engine configuration (spec section 4.8's
// functional-options surface, externalized as a file) and layers
// environment-variable overrides on top of it with viper, the way the
// teacher's internal/config package layers config.yaml under its cobra
// commands.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/oddjobz/nndb/kvengine"
)

// FileName is the on-disk config file name, kept inside the database
// directory next to data.db.
const FileName = "nndb.yaml"

// Config is the serializable shape of nndb.yaml. Zero values mean
// "unset"; Resolve applies kvengine.DefaultConfig for anything left unset.
type Config struct {
	MapSizeMB  int64 `yaml:"map_size_mb"`
	Subdir     *bool `yaml:"subdir"`
	Metasync   *bool `yaml:"metasync"`
	Sync       *bool `yaml:"sync"`
	Lock       *bool `yaml:"lock"`
	MaxDBs     uint32 `yaml:"max_dbs"`
	Writemap   *bool `yaml:"writemap"`
	MapAsync   *bool `yaml:"map_async"`
	BinlogOn   bool  `yaml:"binlog"`
}

// Load reads dir/nndb.yaml, if present, and overlays NNDB_MAP_SIZE_MB,
// NNDB_MAX_DBS, NNDB_BINLOG and NNDB_SYNC when set; no other NNDB_*
// variable is read (viper's automatic env binding, matching the
// teacher's layering of env vars over config.yaml). A missing file is not
// an error: Load returns a zero Config, and Resolve falls back to
// kvengine.DefaultConfig entirely.
func Load(dir string) (Config, error) {
	var cfg Config

	path := filepath.Join(dir, FileName)
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	v := viper.New()
	v.SetEnvPrefix("NNDB")
	v.AutomaticEnv()
	if v.IsSet("MAP_SIZE_MB") {
		cfg.MapSizeMB = v.GetInt64("MAP_SIZE_MB")
	}
	if v.IsSet("MAX_DBS") {
		cfg.MaxDBs = uint32(v.GetUint32("MAX_DBS"))
	}
	if v.IsSet("BINLOG") {
		cfg.BinlogOn = v.GetBool("BINLOG")
	}
	if v.IsSet("SYNC") {
		b := v.GetBool("SYNC")
		cfg.Sync = &b
	}

	return cfg, nil
}

// Save writes cfg to dir/nndb.yaml.
func Save(dir string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, FileName), data, 0o644)
}

// Resolve merges cfg over kvengine.DefaultConfig, field by field.
func (cfg Config) Resolve() kvengine.Config {
	out := kvengine.DefaultConfig()
	if cfg.MapSizeMB > 0 {
		out.MapSize = cfg.MapSizeMB << 20
	}
	if cfg.MaxDBs > 0 {
		out.MaxDBs = cfg.MaxDBs
	}
	if cfg.Subdir != nil {
		out.Subdir = *cfg.Subdir
	}
	if cfg.Metasync != nil {
		out.Metasync = *cfg.Metasync
	}
	if cfg.Sync != nil {
		out.Sync = *cfg.Sync
	}
	if cfg.Lock != nil {
		out.Lock = *cfg.Lock
	}
	if cfg.Writemap != nil {
		out.Writemap = *cfg.Writemap
	}
	if cfg.MapAsync != nil {
		out.MapAsync = *cfg.MapAsync
	}
	return out
}
