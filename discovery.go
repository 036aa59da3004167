package variconf

import (
	"os"
	"path/filepath"
	"runtime"
)

// findInPaths searches the given directories in order and returns the
// full path of the first one containing filename as a regular file.
func findInPaths(filename string, searchPaths []string) (string, bool) {
	for _, dir := range searchPaths {
		path := filepath.Join(dir, filename)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, true
		}
	}
	return "", false
}

// xdgConfigPaths returns the XDG base directory search path: the user
// config directory ($XDG_CONFIG_HOME, default $HOME/.config) followed by
// the system config directories ($XDG_CONFIG_DIRS, default /etc/xdg).
// Relative directory entries are ignored per the XDG specification.
func xdgConfigPaths() ([]string, error) {
	if runtime.GOOS == "windows" {
		return nil, ErrXDGUnsupported
	}

	var paths []string

	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" && filepath.IsAbs(xdgHome) {
		paths = append(paths, xdgHome)
	} else if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config"))
	}

	if xdgDirs := os.Getenv("XDG_CONFIG_DIRS"); xdgDirs != "" {
		for _, dir := range filepath.SplitList(xdgDirs) {
			if filepath.IsAbs(dir) {
				paths = append(paths, dir)
			}
		}
	} else {
		paths = append(paths, "/etc/xdg")
	}

	return paths, nil
}
