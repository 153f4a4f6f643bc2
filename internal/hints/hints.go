// Package hints turns known build failures into a short suggestion line.
// Every hint renders as "\n  hint: <text>" so it can be appended to an
// error message as is.
package hints

import (
	"runtime"
	"strings"
)

const prefix = "\n  hint: "

// ciVars are set by the CI services we know about.
var ciVars = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}

// Host describes the machine a hint is written for.
type Host struct {
	Getenv    func(string) string
	Container bool
}

// CI reports whether any known CI variable is set.
func (h Host) CI() bool {
	for _, v := range ciVars {
		if h.getenv(v) != "" {
			return true
		}
	}
	return false
}

func (h Host) getenv(key string) string {
	if h.Getenv == nil {
		return ""
	}
	return h.Getenv(key)
}

// ForBrowserConnect suggests the rod variables that are not set yet.
func ForBrowserConnect(h Host) string {
	var parts []string
	if (h.CI() || h.Container) && h.getenv("ROD_NO_SANDBOX") != "1" {
		parts = append(parts, "set ROD_NO_SANDBOX=1 for Docker/CI")
	}
	if h.getenv("ROD_BROWSER_BIN") == "" {
		parts = append(parts, "set ROD_BROWSER_BIN to use custom Chrome")
	}
	parts = append(parts, "or build without --snapshot")
	return join(parts...)
}

// ForSnapshotTimeout suggests raising the snapshot timeout.
func ForSnapshotTimeout() string {
	return join("large tracks or slow tile servers need a longer --snapshot-timeout")
}

// ForGPSBabelNotFound lists the ways out of a missing converter.
func ForGPSBabelNotFound() string {
	return join(
		install("gpsbabel"),
		"set track.gpsbabelPath or PELITRACK_GPSBABEL_PATH",
		"or use_gpsbabel=false to copy GPX files as is",
	)
}

func ForMinifyNotFound() string {
	return join("set minify.minifier: builtin to minify without the external tool")
}

// ForConfigNotFound points at --config, or at the per-user config file
// when it was among the searched paths.
func ForConfigNotFound(searched []string) string {
	hint := "use --config /path/to/pelitrack.yaml"
	for _, p := range searched {
		if strings.Contains(p, ".config/pelitrack") || strings.Contains(p, `.config\pelitrack`) {
			hint += " or create " + p
			break
		}
	}
	return join(hint)
}

func ForBuildLocked(lockPath string) string {
	return join("another build is running; remove " + lockPath + " if it crashed")
}

func ForOutputDirectory() string {
	return join("check the output directory exists and is writable")
}

// ForStyleNotFound lists the known styles, or nothing when none are known.
func ForStyleNotFound(available []string) string {
	if len(available) == 0 {
		return ""
	}
	return join("available styles: " + strings.Join(available, ", "))
}

func install(tool string) string {
	switch runtime.GOOS {
	case "darwin":
		return "install with: brew install " + tool
	case "windows":
		return "install " + tool + " and add it to PATH"
	default:
		return "install with your package manager, e.g. apt install " + tool
	}
}

// join renders one hint line from its parts; empty parts are dropped.
func join(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return prefix + strings.Join(kept, "; ")
}
