// Package exitrules holds the per-signal exit tuning profiles. Profiles are
// loaded from a YAML file validated against an embedded schema and can be
// hot-reloaded while positions are live; a bad edit keeps the last good set.
package exitrules

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"hedger/internal/logger"
	"hedger/internal/types"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const profileSchema = `{
	"type": "object",
	"required": ["profiles"],
	"properties": {
		"profiles": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"additionalProperties": false,
				"properties": {
					"profit_target_pct": {"type": "number", "exclusiveMinimum": 0},
					"profit_lock_pct": {"type": "number", "exclusiveMinimum": 0},
					"trail_pct": {"type": "number", "exclusiveMinimum": 0},
					"model_threshold": {"type": "number", "minimum": 0.5, "maximum": 1},
					"exit_day_offset": {"type": "integer", "minimum": 0}
				}
			}
		}
	}
}`

// Profile is one signal type's exit tuning. Zero fields fall back to the
// base profile when resolved through ProfileFor.
type Profile struct {
	ProfitTargetPct float64 `yaml:"profit_target_pct"`
	ProfitLockPct   float64 `yaml:"profit_lock_pct"`
	TrailPct        float64 `yaml:"trail_pct"`
	ModelThreshold  float64 `yaml:"model_threshold"`
	ExitDayOffset   int     `yaml:"exit_day_offset"`
}

type rulesFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

type Registry struct {
	mu       sync.RWMutex
	base     Profile
	path     string
	schema   *jsonschema.Schema
	profiles map[types.SignalType]Profile
}

// NewRegistry builds a registry around the base profile. An empty path means
// every signal uses the base unchanged.
func NewRegistry(base Profile, path string) (*Registry, error) {
	schema, err := jsonschema.CompileString("exit_rules.json", profileSchema)
	if err != nil {
		return nil, fmt.Errorf("compiling exit rules schema: %w", err)
	}
	r := &Registry{
		base:     base,
		path:     path,
		schema:   schema,
		profiles: map[types.SignalType]Profile{},
	}
	if path != "" {
		if err := r.Reload(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ProfileFor resolves the effective profile for a signal type: per-signal
// overrides layered over the base.
func (r *Registry) ProfileFor(st types.SignalType) Profile {
	r.mu.RLock()
	override, ok := r.profiles[st]
	r.mu.RUnlock()
	out := r.base
	if !ok {
		return out
	}
	if override.ProfitTargetPct > 0 {
		out.ProfitTargetPct = override.ProfitTargetPct
	}
	if override.ProfitLockPct > 0 {
		out.ProfitLockPct = override.ProfitLockPct
	}
	if override.TrailPct > 0 {
		out.TrailPct = override.TrailPct
	}
	if override.ModelThreshold > 0 {
		out.ModelThreshold = override.ModelThreshold
	}
	if override.ExitDayOffset > 0 {
		out.ExitDayOffset = override.ExitDayOffset
	}
	return out
}

// Reload re-reads the rules file. Validation failures leave the currently
// loaded profiles in place.
func (r *Registry) Reload() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("reading exit rules: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing exit rules: %w", err)
	}
	// The schema library expects JSON-shaped values, so roundtrip the YAML
	// document through encoding/json before validating.
	jsonRaw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalizing exit rules: %w", err)
	}
	var jsonDoc any
	if err := json.Unmarshal(jsonRaw, &jsonDoc); err != nil {
		return fmt.Errorf("normalizing exit rules: %w", err)
	}
	if err := r.schema.Validate(jsonDoc); err != nil {
		return fmt.Errorf("exit rules schema: %w", err)
	}
	var rf rulesFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return fmt.Errorf("decoding exit rules: %w", err)
	}
	next := make(map[types.SignalType]Profile, len(rf.Profiles))
	for name, p := range rf.Profiles {
		st := types.SignalType(strings.ToUpper(strings.TrimSpace(name)))
		if !st.Valid() {
			return fmt.Errorf("exit rules: unknown signal type %q", name)
		}
		next[st] = p
	}
	r.mu.Lock()
	r.profiles = next
	r.mu.Unlock()
	logger.Infof("exit rules: loaded %d profile(s) from %s", len(next), r.path)
	return nil
}

// Watch hot-reloads the rules file on change until ctx is cancelled.
func (r *Registry) Watch(ctx context.Context) error {
	if r.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		return err
	}

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != filepath.Clean(r.path) {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Editors fire several events per save; coalesce them.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, func() {
				if err := r.Reload(); err != nil {
					logger.Errorf("exit rules: reload rejected, keeping previous profiles: %v", err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Errorf("exit rules watcher error: %v", err)
		}
	}
}
