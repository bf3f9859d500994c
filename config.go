package tallybase

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/google/renameio"
)

// Config carries the billing settings the aggregation callers consume.
// Rate is per-unit billing; Repos lists repositories whose commits a
// context's charges may reference.
type Config struct {
	Rate  *float64 `json:"rate,omitempty"`
	Repos []string `json:"repos,omitempty"`
}

func (db *Db) globalConfigPath() string {
	return filepath.Join(db.Dir, "config.json")
}

func (db *Db) contextConfigPath(context string) string {
	return filepath.Join(db.Dir, "contexts", refToken(context), "config.json")
}

// loadConfig reads one config file.  Missing files are an empty
// config, not an error; config lookups always have a fallback.
func loadConfig(abspath string) (cfg *Config, err error) {
	buf, err := ioutil.ReadFile(abspath)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "read", Path: abspath, Err: err}
	}
	cfg = &Config{}
	if err = json.Unmarshal(buf, cfg); err != nil {
		return nil, &StorageError{Op: "parse", Path: abspath, Err: err}
	}
	return cfg, nil
}

func saveConfig(abspath string, cfg *Config) (err error) {
	if err = mkdir(filepath.Dir(abspath)); err != nil {
		return err
	}
	buf, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err = renameio.WriteFile(abspath, append(buf, '\n'), 0644); err != nil {
		return &StorageError{Op: "write", Path: abspath, Err: err}
	}
	return nil
}

// GetRate looks up the billing rate for a context: the context's own
// config wins, then the global config; ok=false when neither sets one.
func (db *Db) GetRate(context string) (rate float64, ok bool, err error) {
	if err = ValidateContextName(context); err != nil {
		return 0, false, err
	}
	cfg, err := loadConfig(db.contextConfigPath(context))
	if err != nil {
		return 0, false, err
	}
	if cfg.Rate != nil {
		return *cfg.Rate, true, nil
	}
	global, err := loadConfig(db.globalConfigPath())
	if err != nil {
		return 0, false, err
	}
	if global.Rate != nil {
		return *global.Rate, true, nil
	}
	return 0, false, nil
}

// SetRate writes the billing rate into a context's config, or into
// the global config when context is empty.
func (db *Db) SetRate(context string, rate float64) (err error) {
	abspath := db.globalConfigPath()
	if context != "" {
		if err = ValidateContextName(context); err != nil {
			return err
		}
		abspath = db.contextConfigPath(context)
	}
	cfg, err := loadConfig(abspath)
	if err != nil {
		return err
	}
	cfg.Rate = &rate
	return saveConfig(abspath, cfg)
}

// RepoPaths returns the repositories visible to a context: its own
// list plus the global list, context entries first, deduplicated.
func (db *Db) RepoPaths(context string) (repos []string, err error) {
	if err = ValidateContextName(context); err != nil {
		return nil, err
	}
	cfg, err := loadConfig(db.contextConfigPath(context))
	if err != nil {
		return nil, err
	}
	global, err := loadConfig(db.globalConfigPath())
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, list := range [][]string{cfg.Repos, global.Repos} {
		for _, repo := range list {
			if !seen[repo] {
				seen[repo] = true
				repos = append(repos, repo)
			}
		}
	}
	return repos, nil
}
