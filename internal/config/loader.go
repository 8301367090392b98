package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"

	"kugl/internal/util"
)

// LoadInit reads and validates init.yaml. A missing file yields the
// defaults; a present file must not be world-writeable and must not
// contain unknown keys.
func LoadInit(fs afero.Fs, path string) (*UserInit, error) {
	init := &UserInit{}
	if _, err := loadYaml(fs, path, init); err != nil {
		return nil, err
	}
	if init.Settings == nil {
		settings := DefaultSettings()
		init.Settings = &settings
	} else if init.Settings.CacheTimeout == 0 {
		init.Settings.CacheTimeout = DefaultSettings().CacheTimeout
	}
	seen := map[string]bool{}
	for _, s := range init.Shortcuts {
		if s.Name == "" || len(s.Args) == 0 {
			return nil, util.Configf("%s: shortcuts must have a name and args", path)
		}
		if seen[s.Name] {
			return nil, util.Configf("%s: shortcut '%s' is defined twice", path, s.Name)
		}
		seen[s.Name] = true
	}
	home := util.Home()
	for _, dir := range init.Settings.InitPath {
		if filepath.Clean(util.ExpandPath(dir)) == filepath.Clean(home) {
			return nil, util.Configf("%s: init_path may not include the kugl home directory", path)
		}
	}
	return init, nil
}

// LoadSchemaFile reads and validates one <schema>.yaml document. A
// missing file yields an empty config and found=false.
func LoadSchemaFile(fs afero.Fs, path string) (*UserConfig, bool, error) {
	config := &UserConfig{}
	found, err := loadYaml(fs, path, config)
	if err != nil {
		return nil, found, err
	}
	if !found {
		return config, false, nil
	}
	if err := config.Validate(); err != nil {
		return nil, true, err
	}
	return config, true, nil
}

// loadYaml reads a YAML file into target, rejecting unknown keys.
func loadYaml(fs afero.Fs, path string, target any) (bool, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return false, util.Configf("%s: %v", path, err)
	}
	if !exists {
		return false, nil
	}
	if err := util.CheckNotWorldWriteable(fs, path); err != nil {
		return true, err
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return true, util.Configf("%s: %v", path, err)
	}
	if err := yaml.UnmarshalStrict(data, target); err != nil {
		return true, util.Configf("%s: %v", path, err)
	}
	return true, nil
}
