package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/pelitrack/go-pelitrack"
	"github.com/pelitrack/go-pelitrack/internal/hints"
)

// Doctor statuses.
const (
	doctorReady    = "ready"
	doctorWarnings = "warnings"
	doctorErrors   = "errors"
)

// versionTimeout bounds each "--version" probe.
const versionTimeout = 5 * time.Second

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string     `json:"status"` // "ready", "warnings", "errors"
	Config   configInfo `json:"config"`
	GPSBabel toolInfo   `json:"gpsbabel"`
	Minify   toolInfo   `json:"minify"`
	Chrome   toolInfo   `json:"chrome"`
	Env      envInfo    `json:"environment"`
	System   systemInfo `json:"system"`
	Warnings []string   `json:"warnings,omitempty"`
	Errors   []string   `json:"errors,omitempty"`
}

// configInfo reports which config file a build would use.
type configInfo struct {
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

// toolInfo holds the detection result of one external program.
type toolInfo struct {
	Found    bool   `json:"found"`
	Required bool   `json:"required"`
	Path     string `json:"path,omitempty"`
	Version  string `json:"version,omitempty"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
	NoSandbox     string `json:"rod_no_sandbox"`
	BrowserBin    string `json:"rod_browser_bin"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempWritable bool `json:"temp_writable"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found.
func runDoctorCmd(args []string, env *Environment) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	var jsonOutput bool
	var configName string
	fs.BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	fs.StringVarP(&configName, "config", "c", "", "config file name or path")
	fs.Usage = func() { printDoctorUsage(env.Stderr) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitUsage
	}

	result := runDoctor(context.Background(), env, configName)

	if jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result, shouldColorize(env.Stdout))
	}

	if result.Status == doctorErrors {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks.
func runDoctor(ctx context.Context, env *Environment, configName string) *doctorResult {
	result := &doctorResult{
		Status: doctorReady,
		Env: envInfo{
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			NoSandbox:  env.Getenv("ROD_NO_SANDBOX"),
			BrowserBin: env.Getenv("ROD_BROWSER_BIN"),
		},
	}

	settings := checkConfig(result, env, configName)
	checkGPSBabel(ctx, result, env, settings)
	checkMinify(ctx, result, env, settings)
	checkChrome(ctx, result, env)
	checkEnvironment(result, env)
	checkSystem(result)

	if len(result.Errors) > 0 {
		result.Status = doctorErrors
	} else if len(result.Warnings) > 0 {
		result.Status = doctorWarnings
	}
	return result
}

// checkConfig resolves the settings a build would run with.
func checkConfig(result *doctorResult, env *Environment, configName string) *pelitrack.Settings {
	settings := pelitrack.DefaultSettings()

	envCfg := loadEnvConfig(env.Getenv)
	cfg, path, err := loadBuildConfig(configName, envCfg.ConfigPath)
	if err != nil {
		result.Config.Error = err.Error()
		result.Errors = append(result.Errors, fmt.Sprintf("Config: %v", err))
		return settings
	}
	applyEnvConfig(envCfg, cfg)
	result.Config.Path = path
	cfg.Apply(settings)
	return settings
}

// checkGPSBabel verifies the converter. A site can copy GPX files without
// it, but the default settings need it.
func checkGPSBabel(ctx context.Context, result *doctorResult, env *Environment, s *pelitrack.Settings) {
	result.GPSBabel.Required = s.UseGPSBabel
	path, err := env.LookPath(s.GPSBabelPath)
	if err != nil {
		msg := fmt.Sprintf("gpsbabel not found (%s). Install GPSBabel or set PELITRACK_GPSBABEL_PATH", s.GPSBabelPath)
		if s.UseGPSBabel {
			result.Errors = append(result.Errors, msg)
		} else {
			result.Warnings = append(result.Warnings, msg)
		}
		return
	}
	result.GPSBabel.Found = true
	result.GPSBabel.Path = path
	result.GPSBabel.Version = toolVersion(ctx, env, path, "-V")
}

// checkMinify verifies the minify CLI when minification uses it.
func checkMinify(ctx context.Context, result *doctorResult, env *Environment, s *pelitrack.Settings) {
	if s.MinifyGPX && !pelitrack.KnownMinifier(s.GPXMinifier) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("unknown gpx minifier %q, tracks will not be minified. Use minify or builtin", s.GPXMinifier))
	}
	result.Minify.Required = s.MinifyGPX && s.GPXMinifier == pelitrack.MinifierMinify
	path, err := env.LookPath(s.MinifyPath)
	if err != nil {
		if result.Minify.Required {
			result.Warnings = append(result.Warnings, "minify not found"+hints.ForMinifyNotFound())
		}
		return
	}
	result.Minify.Found = true
	result.Minify.Path = path
	result.Minify.Version = toolVersion(ctx, env, path, "--version")
}

// checkChrome detects Chrome/Chromium, needed by --snapshot only.
func checkChrome(ctx context.Context, result *doctorResult, env *Environment) {
	chromePath := result.Env.BrowserBin
	if chromePath == "" {
		var found bool
		chromePath, found = env.ChromePath()
		if !found {
			result.Warnings = append(result.Warnings,
				"Chrome/Chromium not found; --snapshot is unavailable. Install Chrome or set ROD_BROWSER_BIN")
			return
		}
	}

	if _, err := os.Stat(chromePath); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Chrome not found at %s", chromePath))
		return
	}

	result.Chrome.Found = true
	result.Chrome.Path = chromePath
	result.Chrome.Version = toolVersion(ctx, env, chromePath, "--version")
}

// toolVersion returns the first output line of a version probe, or "".
func toolVersion(ctx context.Context, env *Environment, path string, args ...string) string {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	runner := env.Runner
	if runner == nil {
		runner = &pelitrack.ExecRunner{}
	}
	stdout, stderr, err := runner.Run(ctx, path, args...)
	if err != nil {
		return ""
	}
	out := strings.TrimSpace(stdout)
	if out == "" {
		out = strings.TrimSpace(stderr)
	}
	line, _, _ := strings.Cut(out, "\n")
	return strings.TrimSpace(line)
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult, env *Environment) {
	result.Env.Container, result.Env.ContainerHint = isContainer(env.Getenv)

	result.Env.CI = hints.Host{Getenv: env.Getenv}.CI()

	if result.Chrome.Found && (result.Env.Container || result.Env.CI) && result.Env.NoSandbox != "1" {
		result.Warnings = append(result.Warnings,
			"Container/CI detected but ROD_NO_SANDBOX not set. Set ROD_NO_SANDBOX=1 for --snapshot")
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer(getenv func(string) string) (bool, string) {
	if getenv("PELITRACK_CONTAINER") == "1" {
		return true, "PELITRACK_CONTAINER=1"
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true, "/.dockerenv"
	}
	if v := getenv("container"); v != "" {
		return true, "container=" + v
	}
	if getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkSystem verifies the temp directory gpsbabel and minify write through.
func checkSystem(result *doctorResult) {
	tmpDir := os.TempDir()
	testFile := filepath.Join(tmpDir, "pelitrack-doctor-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Temp directory not writable: %s", tmpDir))
		return
	}
	_ = os.Remove(testFile)
	result.System.TempWritable = true
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult, colorize bool) {
	fmt.Fprintln(w, "pelitrack doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Config")
	switch {
	case r.Config.Error != "":
		fmt.Fprintln(w, statusLine(statusError, r.Config.Error, colorize))
	case r.Config.Path != "":
		fmt.Fprintln(w, statusLine(statusOK, "Using "+r.Config.Path, colorize))
	default:
		fmt.Fprintln(w, statusLine(statusOK, "No config file, using defaults", colorize))
	}
	fmt.Fprintln(w)

	rows := [][]string{
		toolRow("gpsbabel", r.GPSBabel),
		toolRow("minify", r.Minify),
		toolRow("chrome", r.Chrome),
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Tool", "Found", "Required", "Path", "Version"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintln(w, statusLine(statusOK, fmt.Sprintf("Platform: %s/%s", r.Env.OS, r.Env.Arch), colorize))
	if r.Env.Container {
		fmt.Fprintln(w, statusLine(statusOK, fmt.Sprintf("Container: detected (%s)", r.Env.ContainerHint), colorize))
	}
	if r.Env.CI {
		fmt.Fprintln(w, statusLine(statusOK, "CI: detected", colorize))
	}
	if r.System.TempWritable {
		fmt.Fprintln(w, statusLine(statusOK, "Temp directory: writable", colorize))
	} else {
		fmt.Fprintln(w, statusLine(statusError, "Temp directory: not writable", colorize))
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintln(w, statusLine(statusWarn, warn, colorize))
		}
		fmt.Fprintln(w)
	}
	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintln(w, statusLine(statusError, err, colorize))
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case doctorReady:
		fmt.Fprintln(w, "Status: READY")
	case doctorWarnings:
		fmt.Fprintln(w, "Status: READY (with warnings)")
	default:
		fmt.Fprintln(w, "Status: NOT READY")
	}
}

func toolRow(name string, t toolInfo) []string {
	return []string{name, yesNo(t.Found), yesNo(t.Required), t.Path, t.Version}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
