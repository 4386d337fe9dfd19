// Package configpaths resolves where device identity config files live on
// each platform.
package configpaths

import (
	"os"
	"path/filepath"
	"runtime"
)

// baseNames are the file stems probed in each search directory.
var baseNames = []string{"usbd", "config"}

// DefaultConfigDir returns the per-user configuration directory.
func DefaultConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "usbd"), nil
}

// DefaultConfigPath returns the default config file location for the given
// format, normalizing yml to yaml and anything unknown to json.
func DefaultConfigPath(format string) (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	ext := "json"
	switch format {
	case "yaml", "yml":
		ext = "yaml"
	case "toml":
		ext = "toml"
	}
	return filepath.Join(dir, "config."+ext), nil
}

// searchDirs lists the probe locations in priority order: working directory,
// per-user config dir, then the system-wide /etc/usbd on unix.
func searchDirs() []string {
	dirs := make([]string, 0, 3)
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	if dir, err := DefaultConfigDir(); err == nil {
		dirs = append(dirs, dir)
	}
	if runtime.GOOS != "windows" {
		dirs = append(dirs, "/etc/usbd")
	}
	return dirs
}

// Candidates returns the candidate config files per format. A userPath is
// routed to the slice matching its extension ahead of the probed locations.
func Candidates(userPath string) (jsonPaths, yamlPaths, tomlPaths []string) {
	if userPath != "" {
		switch filepath.Ext(userPath) {
		case ".yaml", ".yml":
			yamlPaths = append(yamlPaths, userPath)
		case ".toml":
			tomlPaths = append(tomlPaths, userPath)
		default:
			jsonPaths = append(jsonPaths, userPath)
		}
	}
	for _, dir := range searchDirs() {
		for _, base := range baseNames {
			jsonPaths = append(jsonPaths, filepath.Join(dir, base+".json"))
			yamlPaths = append(yamlPaths,
				filepath.Join(dir, base+".yaml"),
				filepath.Join(dir, base+".yml"))
			tomlPaths = append(tomlPaths, filepath.Join(dir, base+".toml"))
		}
	}
	return
}
