// Package resource implements the sources of JSON-shaped documents that
// back tables: inline data, files, subprocess output, folder trees and
// kubectl-fetched Kubernetes objects.
package resource

import (
	"encoding/json"
	"strings"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"

	"kugl/internal/config"
	"kugl/internal/util"
)

// Resource is a source of one JSON-shaped document.
type Resource interface {
	Name() string
	Cacheable() bool
	// CachePath returns the snapshot path relative to the schema's
	// cache directory; only called when Cacheable is true.
	CachePath() (string, error)
	GetObjects() (any, error)
}

// NamespaceConfigurable is implemented by resources that honor the
// -n/--all-namespaces query options.
type NamespaceConfigurable interface {
	SetNamespace(ns string, allNamespaces bool)
}

// Factory builds one resource kind from its validated definition.
type Factory func(def config.ResourceDef, fs afero.Fs) (Resource, error)

// BuiltinFactories returns the factories for the standard resource
// kinds, keyed the way the kind is named in config files.
func BuiltinFactories() map[string]Factory {
	return map[string]Factory{
		config.KindData: func(def config.ResourceDef, _ afero.Fs) (Resource, error) {
			return &Data{name: def.Name, literal: def.Data}, nil
		},
		config.KindFile: func(def config.ResourceDef, fs afero.Fs) (Resource, error) {
			return &File{name: def.Name, path: def.File, fs: fs}, nil
		},
		config.KindExec: func(def config.ResourceDef, _ afero.Fs) (Resource, error) {
			cacheable := def.Cacheable != nil && *def.Cacheable
			return &Exec{name: def.Name, argv: def.Exec, cacheable: cacheable, cacheKey: def.CacheKey}, nil
		},
		config.KindFolder: newFolder,
		config.KindKubernetes: func(def config.ResourceDef, _ afero.Fs) (Resource, error) {
			namespaced := def.Namespaced == nil || *def.Namespaced
			cacheable := def.Cacheable == nil || *def.Cacheable
			return &Kubernetes{name: def.Name, namespaced: namespaced, cacheable: cacheable, ns: "default"}, nil
		},
	}
}

// ParseDocument interprets text as JSON if it looks like JSON, else as
// YAML. Empty text yields an empty mapping.
func ParseDocument(text string) (any, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return map[string]any{}, nil
	}
	var doc any
	if trimmed[0] == '{' || trimmed[0] == '[' {
		if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return map[string]any{}, nil
	}
	return doc, nil
}

// Data returns an inline literal from the config file verbatim.
type Data struct {
	name    string
	literal any
}

func (d *Data) Name() string                 { return d.name }
func (d *Data) Cacheable() bool              { return false }
func (d *Data) CachePath() (string, error)   { return "", util.Configf("data resource '%s' is not cacheable", d.name) }
func (d *Data) GetObjects() (any, error)     { return d.literal, nil }
