package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/jwalitptl/password-policy/internal/policy"
)

// Watcher reloads the policy section when the config file changes.
type Watcher struct {
	v        *viper.Viper
	logger   zerolog.Logger
	onChange func(policy.Config)
	mu       sync.Mutex
}

// NewWatcher loads path and returns the config together with a watcher for it.
func NewWatcher(path string, logger zerolog.Logger) (*Config, *Watcher, error) {
	cfg, v, err := load(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, &Watcher{v: v, logger: logger.With().Str("component", "config-watcher").Logger()}, nil
}

// SetLogger replaces the logger, e.g. once the configured log settings are known.
// Call it before Start.
func (w *Watcher) SetLogger(logger zerolog.Logger) {
	w.logger = logger.With().Str("component", "config-watcher").Logger()
}

// Start begins watching. onChange receives each valid reloaded policy; invalid
// files are logged and skipped. Start is a no-op when no file was loaded.
func (w *Watcher) Start(onChange func(policy.Config)) {
	if w.v.ConfigFileUsed() == "" {
		w.logger.Info().Msg("no config file in use, policy hot reload disabled")
		return
	}

	w.onChange = onChange
	w.v.OnConfigChange(w.handle)
	w.v.WatchConfig()
	w.logger.Info().Str("file", w.v.ConfigFileUsed()).Msg("watching config file")
}

func (w *Watcher) handle(e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cfg, err := w.reload()
	if err != nil {
		w.logger.Error().Err(err).Str("file", e.Name).Msg("ignoring invalid config change")
		return
	}

	w.logger.Info().Str("file", e.Name).Msg("config file changed, reloading policy")
	w.onChange(cfg.Policy)
}

func (w *Watcher) reload() (*Config, error) {
	// viper has already re-read the file before invoking the callback.
	cfg, err := decode(w.v)
	if err != nil {
		return nil, fmt.Errorf("reload %s: %w", w.v.ConfigFileUsed(), err)
	}
	return cfg, nil
}
