package docconv

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// DefaultEnvPrefix is the prefix of the default environment source.
const DefaultEnvPrefix = "DOCCONV"

// Settings are the deployment values a SettingsSource may supply.
type Settings struct {
	WorkerPath      string
	ResourcePath    string
	FontDirectories []string
}

// SettingsSource supplies fallback Settings. Values set explicitly with an
// Option always win; a source only fills what is still empty.
type SettingsSource interface {
	Settings() (Settings, error)
}

// SettingsFunc adapts a function to SettingsSource.
type SettingsFunc func() (Settings, error)

// Settings calls f.
func (f SettingsFunc) Settings() (Settings, error) { return f() }

// StaticSource returns a source that always yields s.
func StaticSource(s Settings) SettingsSource {
	return SettingsFunc(func() (Settings, error) { return s, nil })
}

// envSettings is the envconfig view of Settings.
type envSettings struct {
	WorkerPath      string   `envconfig:"WORKER_PATH"`
	ResourcePath    string   `envconfig:"RESOURCE_PATH"`
	FontDirectories []string `envconfig:"FONT_DIRS"` // comma-separated
}

// EnvSource reads <prefix>_WORKER_PATH, <prefix>_RESOURCE_PATH and
// <prefix>_FONT_DIRS from the environment when Settings is called.
func EnvSource(prefix string) SettingsSource {
	return SettingsFunc(func() (Settings, error) {
		var env envSettings
		if err := envconfig.Process(prefix, &env); err != nil {
			return Settings{}, fmt.Errorf("reading %s_* environment: %w", prefix, err)
		}
		return Settings(env), nil
	})
}

// resolveSettings fills empty fields of explicit from sources, in order.
func resolveSettings(explicit Settings, sources []SettingsSource) (Settings, error) {
	s := explicit
	for _, src := range sources {
		if s.WorkerPath != "" && s.ResourcePath != "" && len(s.FontDirectories) > 0 {
			break
		}
		got, err := src.Settings()
		if err != nil {
			return s, err
		}
		if s.WorkerPath == "" {
			s.WorkerPath = got.WorkerPath
		}
		if s.ResourcePath == "" {
			s.ResourcePath = got.ResourcePath
		}
		if len(s.FontDirectories) == 0 {
			s.FontDirectories = got.FontDirectories
		}
	}
	return s, nil
}
