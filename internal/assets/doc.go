// Package assets provides the HTML templates for the map widget and the
// article pages, plus the page stylesheets.
//
// Assets are looked up by kind and name:
//
//	{theme}/
//	├── styles/
//	│   └── {name}.css
//	└── templates/
//	    ├── map.html      # map <div> and Leaflet init script
//	    ├── head.html     # <link>/<script> tags for Leaflet
//	    └── page.html     # article page (CLI host only)
//
// A theme directory only needs the files it overrides; AssetResolver falls
// back to the embedded copies. Theme reads go through os.Root, so symlinks
// cannot leave the theme directory.
package assets
