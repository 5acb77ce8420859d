package configuration

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// MountConfiguration describes one library: a mount name exposed under
// "/<name>/..." in public paths, the native directory it serves, and the
// path to its FileIndex database.
type MountConfiguration struct {
	// Name is the library's mount name.
	Name string `yaml:"name"`
	// Root is the native directory this library serves.
	Root string `yaml:"root"`
	// Database is the path to this library's FileIndex database file. If
	// empty, it defaults to "<root>/.medialib-index.db".
	Database string `yaml:"database"`
	// ExternalSearch names an external search backend to consult ahead of
	// the FileIndex for this library ("" disables it).
	ExternalSearch string `yaml:"externalSearch"`
}

// ServerConfiguration tunes the HTTP server itself.
type ServerConfiguration struct {
	// Listen is the address the HTTP server binds, e.g. ":8000".
	Listen string `yaml:"listen"`
	// BaseURL is the externally-visible origin used to build file/thumb/
	// poster/mjpeg-zip URLs in IllustInfo responses.
	BaseURL string `yaml:"baseURL"`
	// PageSize is the default number of results per search/list page.
	PageSize int `yaml:"pageSize"`
	// MaxCachedPages bounds the shared PageCache (0 selects its default).
	MaxCachedPages int `yaml:"maxCachedPages"`
	// AuthToken, if non-empty, requires HTTP basic authentication with this
	// token as the username on every request.
	AuthToken string `yaml:"authToken"`
}

// TuningConfiguration exposes the background-update-loop constants as
// configuration. The intervals are Go duration strings (e.g. "10m");
// MaxProbeSize is a ByteSize.
type TuningConfiguration struct {
	// IdleWriteInterval is how long the background loop waits with no
	// other pending work before refreshing last_update_time.
	IdleWriteInterval string `yaml:"idleWriteInterval"`
	// FileUpdateDebounce is how long a file update stays pending after its
	// most recent event before being eligible for re-indexing.
	FileUpdateDebounce string `yaml:"fileUpdateDebounce"`
	// MaxProbeSize caps how large a file can be before reconcile skips
	// probing it for media metadata (dimensions, duration, EXIF fields),
	// indexing it with bare filesystem attributes instead. Zero means
	// unlimited.
	MaxProbeSize ByteSize `yaml:"maxProbeSize"`
}

// Configuration is the top-level YAML mount configuration.
type Configuration struct {
	Mounts  []MountConfiguration `yaml:"mounts"`
	Server  ServerConfiguration  `yaml:"server"`
	Tuning  TuningConfiguration  `yaml:"tuning"`
}

// IdleWriteInterval parses Tuning.IdleWriteInterval, defaulting to 600s (the
// background loop's default) when unset.
func (c *Configuration) IdleWriteInterval() (time.Duration, error) {
	return parseDurationOrDefault(c.Tuning.IdleWriteInterval, 600*time.Second)
}

// FileUpdateDebounce parses Tuning.FileUpdateDebounce, defaulting to 1s when
// unset.
func (c *Configuration) FileUpdateDebounce() (time.Duration, error) {
	return parseDurationOrDefault(c.Tuning.FileUpdateDebounce, time.Second)
}

func parseDurationOrDefault(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid duration %q", value)
	}
	return d, nil
}

// Load reads and parses a mount configuration file. A missing file is
// treated as an empty configuration rather than an error.
func Load(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Configuration{}, nil
		}
		return nil, errors.Wrap(err, "unable to read configuration file")
	}

	config := &Configuration{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "unable to parse configuration file")
	}

	for i, mount := range config.Mounts {
		if mount.Name == "" {
			return nil, errors.Errorf("mount %d is missing a name", i)
		}
		if mount.Root == "" {
			return nil, errors.Errorf("mount %q is missing a root", mount.Name)
		}
	}

	return config, nil
}
