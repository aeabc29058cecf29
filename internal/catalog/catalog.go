// Package catalog ships the static base strategies for known applications and
// the OS-level system strategy registry.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"github.com/lazypower/strategist/internal/strategy"
	"gopkg.in/yaml.v3"
)

//go:embed apps/*.yaml systems/*.yaml
var files embed.FS

// UniversalKey is the registry entry used when an OS family is unrecognized.
const UniversalKey = "Universal"

// registryFiles maps OS family names onto system strategy files. Older
// releases share the universal strategy.
var registryFiles = map[string]string{
	"Sonoma":     "sonoma.yaml",
	"Ventura":    "ventura.yaml",
	"Monterey":   "monterey.yaml",
	"BigSur":     "macos.yaml",
	"Catalina":   "macos.yaml",
	UniversalKey: "macos.yaml",
}

// Apps decodes every embedded application strategy, keyed by app id.
func Apps() (map[string]*strategy.Base, error) {
	return LoadApps(files, "apps")
}

// LoadApps decodes every *.yaml file under dir in fsys.
func LoadApps(fsys fs.FS, dir string) (map[string]*strategy.Base, error) {
	names, err := fs.Glob(fsys, path.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	sort.Strings(names)

	out := make(map[string]*strategy.Base, len(names))
	for _, name := range names {
		var b strategy.Base
		if err := decode(fsys, name, &b); err != nil {
			return nil, err
		}
		if b.AppID == "" {
			return nil, fmt.Errorf("%s: missing appId", name)
		}
		if err := checkPlans(name, b.Strategies); err != nil {
			return nil, err
		}
		if _, dup := out[b.AppID]; dup {
			return nil, fmt.Errorf("%s: duplicate appId %q", name, b.AppID)
		}
		out[b.AppID] = &b
	}
	return out, nil
}

// Systems decodes the OS-level registry, keyed by OS family name. Aliased
// families point at the same decoded strategy.
func Systems() (map[string]*strategy.SystemStrategy, error) {
	decoded := make(map[string]*strategy.SystemStrategy)
	out := make(map[string]*strategy.SystemStrategy, len(registryFiles))
	for family, file := range registryFiles {
		s, ok := decoded[file]
		if !ok {
			s = &strategy.SystemStrategy{}
			name := path.Join("systems", file)
			if err := decode(files, name, s); err != nil {
				return nil, err
			}
			if err := checkPlans(name, s.Strategies); err != nil {
				return nil, err
			}
			decoded[file] = s
		}
		out[family] = s
	}
	return out, nil
}

func decode(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// checkPlans requires a conservative plan and rejects unknown tier keys.
func checkPlans(name string, plans strategy.Plans) error {
	if _, ok := plans[strategy.Conservative]; !ok {
		return fmt.Errorf("%s: missing conservative strategy", name)
	}
	for tier := range plans {
		if !tier.Valid() {
			return fmt.Errorf("%s: unknown tier %q", name, tier)
		}
	}
	return nil
}
