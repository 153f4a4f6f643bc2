package pelitrack

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelitrack/go-pelitrack/internal/fileutil"
)

// CopyPinIcons copies the leaflet-gpx marker images from GPXIconDir to the
// root of OutputDir, where the widget's default marker URLs point.
func CopyPinIcons(s *Settings) error {
	if len(s.GPXIconFilenames) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.OutputDir, fileutil.DirPermissions); err != nil {
		return fmt.Errorf("%w: %v", ErrIconCopy, err)
	}

	for _, name := range s.GPXIconFilenames {
		src := filepath.Join(s.GPXIconDir, name)
		dst := filepath.Join(s.OutputDir, filepath.Base(name))
		if err := fileutil.CopyFile(src, dst); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrIconCopy, name, err)
		}
	}
	return nil
}
