package main

import (
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/pelitrack/go-pelitrack"
)

// Environment holds injectable dependencies for testability.
type Environment struct {
	Now     func() time.Time
	Stdout  io.Writer
	Stderr  io.Writer
	Getenv  func(string) string
	Environ func() []string

	// Runner replaces os/exec for gpsbabel and minify. Nil means ExecRunner.
	Runner pelitrack.CommandRunner
	// NewSnapshotter builds one browser-backed snapshotter per pool slot.
	NewSnapshotter func(timeout time.Duration) pelitrack.Snapshotter

	// Tool lookup for doctor.
	LookPath   func(file string) (string, error)
	ChromePath func() (string, bool)
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Now:     time.Now,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Getenv:  os.Getenv,
		Environ: os.Environ,
		NewSnapshotter: func(timeout time.Duration) pelitrack.Snapshotter {
			return pelitrack.NewRodSnapshotter(timeout)
		},
		LookPath:   exec.LookPath,
		ChromePath: launcher.LookPath,
	}
}
