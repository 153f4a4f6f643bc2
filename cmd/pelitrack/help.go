package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: pelitrack <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  build      Build the site and convert article tracks")
	fmt.Fprintln(w, "  doctor     Check gpsbabel, minify and Chrome")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'pelitrack help <command>' for details on a specific command.")
}

// printBuildUsage prints usage for the build command.
func printBuildUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: pelitrack build [content-dir] [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Render Markdown articles and publish the GPS track of each article")
	fmt.Fprintln(w, "that has a 'track' metadata entry.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  content-dir    Article directory (default: site.contentDir or ./content)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -c, --config <name>          Config file name or path")
	fmt.Fprintln(w, "  -o, --output <dir>           Output directory")
	fmt.Fprintln(w, "  -w, --workers <n>            Parallel workers (0 = auto)")
	fmt.Fprintln(w, "      --snapshot               Capture map previews with headless Chrome")
	fmt.Fprintln(w, "      --snapshot-timeout <d>   Page load timeout per snapshot (default 30s)")
	fmt.Fprintln(w, "      --no-cache               Convert every track, ignoring the cache")
	fmt.Fprintln(w, "      --log-format <s>         Log format: console, json")
	fmt.Fprintln(w, "  -q, --quiet                  Only print errors")
	fmt.Fprintln(w, "  -v, --verbose                Debug logging")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Article metadata:")
	fmt.Fprintln(w, "  track: <file>;<type>[;key=>value...]")
	fmt.Fprintln(w, "  keys: gpx_output_path, height, width, provider, use_gpsbabel,")
	fmt.Fprintln(w, "        gpsbabel_filters, gpx_options")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  PELITRACK_CONFIG, PELITRACK_OUTPUT_DIR, PELITRACK_SITEURL,")
	fmt.Fprintln(w, "  PELITRACK_GPSBABEL_PATH, PELITRACK_MINIFY_PATH, PELITRACK_WORKERS,")
	fmt.Fprintln(w, "  PELITRACK_LOG_LEVEL")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit codes:")
	fmt.Fprintln(w, "  0  Success")
	fmt.Fprintln(w, "  1  Some articles failed")
	fmt.Fprintln(w, "  2  Invalid flags or config")
	fmt.Fprintln(w, "  3  I/O error or output locked")
	fmt.Fprintln(w, "  4  gpsbabel or Chrome unavailable")
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: pelitrack doctor [--json]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check that the external tools used by a build are available.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "      --json    Print the result as JSON")
}

// runHelp prints help for a command.
func runHelp(args []string, env *Environment) int {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return ExitSuccess
	}

	switch args[0] {
	case "build":
		printBuildUsage(env.Stdout)
	case "doctor":
		printDoctorUsage(env.Stdout)
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: pelitrack version")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: pelitrack help [command]")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage(env.Stderr)
		return ExitUsage
	}
	return ExitSuccess
}
