package pelitrack

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// defaultGPXOptions is used when a track sets an empty gpx_options value.
const defaultGPXOptions = "{}"

// widgetData feeds the map template.
type widgetData struct {
	ElementID  string
	Location   string
	Height     string
	Width      string
	Providers  []string
	GPXOptions template.JS
}

// headData feeds the head template. Styles come before scripts.
type headData struct {
	Styles  []string
	Scripts []string
}

// ElementID is the DOM id of an article's map container.
func ElementID(slug string) string {
	return "pelitrack-map-" + slug
}

// RenderWidget renders the map container and its Leaflet init script.
// Articles without a track render nothing.
func (p *Plugin) RenderWidget(a *Article) (template.HTML, error) {
	if a == nil || a.Track == nil {
		return "", nil
	}

	ts := a.Track.Settings
	opts := strings.TrimSpace(ts.GPXOptions)
	if opts == "" {
		opts = defaultGPXOptions
	}

	data := widgetData{
		ElementID: ElementID(a.TrackName()),
		Location:  a.Track.Location,
		Height:    ts.Height,
		Width:     ts.Width,
		Providers: ts.Provider,
		// gpx_options is site author input, passed to L.GPX verbatim.
		GPXOptions: template.JS(opts), // #nosec G203
	}

	var buf bytes.Buffer
	if err := p.widgetTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: article %s: %v", ErrWidgetRender, a.Slug, err)
	}
	return template.HTML(buf.String()), nil // #nosec G203 -- html/template output
}

// RenderHead renders the stylesheet and script tags for the resolved
// script locations.
func (p *Plugin) RenderHead() (template.HTML, error) {
	if !p.initialized {
		return "", ErrNotInitialized
	}

	var data headData
	for _, key := range scriptKeys {
		loc, ok := p.scripts[key]
		if !ok || loc == "" {
			continue
		}
		if strings.HasSuffix(key, ".css") {
			data.Styles = append(data.Styles, loc)
		} else {
			data.Scripts = append(data.Scripts, loc)
		}
	}

	var buf bytes.Buffer
	if err := p.headTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: head: %v", ErrWidgetRender, err)
	}
	return template.HTML(buf.String()), nil // #nosec G203 -- html/template output
}

// InjectTrack places the head tags and the map widget into a rendered page.
// The head goes before </head>, else after <body>, else in front. The widget
// goes before </article>, else before </body>, else at the end.
func InjectTrack(page string, head, widget template.HTML) string {
	if head != "" {
		page = injectHead(page, string(head))
	}
	if widget != "" {
		page = injectWidget(page, string(widget))
	}
	return page
}

func injectHead(page, block string) string {
	lower := strings.ToLower(page)

	if idx := strings.Index(lower, "</head>"); idx != -1 {
		return page[:idx] + block + page[idx:]
	}

	if idx := strings.Index(lower, "<body"); idx != -1 {
		if closeIdx := strings.Index(page[idx:], ">"); closeIdx != -1 {
			insertPos := idx + closeIdx + 1
			return page[:insertPos] + block + page[insertPos:]
		}
	}

	return block + page
}

func injectWidget(page, block string) string {
	lower := strings.ToLower(page)

	for _, tag := range []string{"</article>", "</body>"} {
		if idx := strings.LastIndex(lower, tag); idx != -1 {
			return page[:idx] + block + page[idx:]
		}
	}
	return page + block
}
