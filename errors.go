package pelitrack

import "errors"

// Sentinel errors for library operations.
var (
	// Track directive errors.
	ErrEmptyTrackSource   = errors.New("track source cannot be empty")
	ErrInvalidTrackOption = errors.New("invalid track option")
	ErrUnknownTrackOption = errors.New("unknown track option")
	ErrInvalidFilters     = errors.New("invalid gpsbabel filters")
	ErrMissingInputType   = errors.New("track input type missing")
	ErrInvalidTrackName   = errors.New("invalid article slug for track output")

	// Settings validation errors.
	ErrEmptyOutputPath  = errors.New("gpx output path cannot be empty")
	ErrEmptyProvider    = errors.New("at least one map provider is required")
	ErrUnknownScriptKey = errors.New("unknown script location key")
	ErrNotInitialized   = errors.New("plugin not initialized")

	// External tool errors.
	ErrGPSBabelNotFound = errors.New("gpsbabel executable not found")
	ErrGPSBabelFailed   = errors.New("gpsbabel execution failed")
	ErrMinifyFailed     = errors.New("gpx minification failed")

	// File errors.
	ErrTrackCopy = errors.New("failed to copy track file")
	ErrIconCopy  = errors.New("failed to copy pin icon")

	// Rendering errors.
	ErrWidgetRender = errors.New("map widget rendering failed")

	// Snapshot errors.
	ErrBrowserConnect  = errors.New("failed to connect to browser")
	ErrPageCreate      = errors.New("failed to create browser page")
	ErrPageLoad        = errors.New("failed to load page")
	ErrSnapshotCapture = errors.New("failed to capture map snapshot")
	ErrPoolClosed      = errors.New("snapshot pool closed")
)
