package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Service describes one deployable unit in the static registry. The
// registry is immutable for the process lifetime; services are looked
// up by their logical name.
type Service struct {
	// Dir is the service's directory relative to ServicesBasePath.
	Dir string `yaml:"dir"`
	// Compose lists the compose files passed as -f flags, in order.
	Compose []string `yaml:"compose"`
	// ContainerSuffix is appended to the compose project name to derive
	// the single container's name. Empty means the compose default,
	// "app-1".
	ContainerSuffix string `yaml:"container_suffix"`
	// MultiContainer services are discovered by compose project label
	// instead of a derived container name.
	MultiContainer bool `yaml:"multi_container"`
}

// Registry is the YAML shape of an on-disk service registry file.
type Registry struct {
	Services   map[string]Service `yaml:"services"`
	Categories []string           `yaml:"categories"`
}

func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(reg.Services) == 0 {
		return nil, fmt.Errorf("%s defines no services", path)
	}
	for name, svc := range reg.Services {
		if svc.Dir == "" {
			return nil, fmt.Errorf("service %q has no dir", name)
		}
		if len(svc.Compose) == 0 {
			svc.Compose = []string{"docker-compose.yml"}
			reg.Services[name] = svc
		}
	}
	if len(reg.Categories) == 0 {
		reg.Categories = defaultCategories()
	}
	return &reg, nil
}

func defaultServices() map[string]Service {
	return map[string]Service{
		"teamworkmissiveconnector": {
			Dir:     "TeamworkMissiveConnector",
			Compose: []string{"docker-compose.yml"},
		},
		"thumbnailtextextractor": {
			Dir:     "ThumbnailTextExtractor",
			Compose: []string{"docker-compose.yml"},
		},
		"mcp": {
			Dir:     "ibhelm-mcp",
			Compose: []string{"docker-compose.yml"},
		},
		"supabase": {
			Dir:            "supabase/docker",
			Compose:        []string{"docker-compose.yml", "docker-compose.s3.yml"},
			MultiContainer: true,
		},
	}
}

func defaultCategories() []string {
	return []string{
		"shared",
		"teamwork_api",
		"missive_api",
		"craft_api",
		"teamworkmissiveconnector",
		"thumbnailtextextractor",
		"mcp",
		"supabase",
	}
}
