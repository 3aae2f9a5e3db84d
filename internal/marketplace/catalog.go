package marketplace

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogEntry is the on-disk shape of one capability manifest in a YAML
// catalog file.
type catalogEntry struct {
	ID                 string            `yaml:"id"`
	Name               string            `yaml:"name"`
	Description        string            `yaml:"description"`
	Provider           string            `yaml:"provider"` // "http" | "remote-instance"
	Endpoint           string            `yaml:"endpoint"`
	Method             string            `yaml:"method"`
	Headers            map[string]string `yaml:"headers"`
	TimeoutMS          int64             `yaml:"timeout_ms"`
	RateLimitPerSecond float64           `yaml:"rate_limit_per_second"`
}

type catalogFile struct {
	Capabilities []catalogEntry `yaml:"capabilities"`
}

// LoadCatalog parses a YAML capability catalog and registers every entry
// whose provider is remotely reachable (http or remote-instance); local,
// MCP, A2A, and plugin capabilities are registered programmatically since
// they need Go-native handlers a YAML file cannot carry.
func (m *Marketplace) LoadCatalog(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("marketplace: read catalog %s: %w", path, err)
	}
	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("marketplace: parse catalog %s: %w", path, err)
	}
	for _, e := range cf.Capabilities {
		cap, err := entryToCapability(e)
		if err != nil {
			return fmt.Errorf("marketplace: catalog entry %q: %w", e.ID, err)
		}
		if err := m.Register(cap); err != nil {
			return err
		}
	}
	return nil
}

func entryToCapability(e catalogEntry) (*Capability, error) {
	base := &Capability{
		ID: e.ID, Name: e.Name, Description: e.Description,
		RateLimitPerSecond: e.RateLimitPerSecond,
	}
	switch e.Provider {
	case "http":
		base.Provider = ProviderHTTP
		base.HTTP = &HTTPCapability{
			Endpoint: e.Endpoint, Method: e.Method, Headers: e.Headers, TimeoutMS: e.TimeoutMS,
		}
	case "remote-instance":
		base.Provider = ProviderRemoteInstance
		base.Remote = &RemoteInstanceCapability{Endpoint: e.Endpoint, TimeoutMS: e.TimeoutMS}
	default:
		return nil, fmt.Errorf("unsupported catalog provider %q (must be http or remote-instance)", e.Provider)
	}
	return base, nil
}
