package site

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/pelitrack/go-pelitrack/internal/assets"
	"github.com/pelitrack/go-pelitrack/internal/pipeline"
)

// dateFormat is how article dates appear on pages.
const dateFormat = "2 January 2006"

// pageData feeds the page template.
type pageData struct {
	Lang     string
	Title    string
	SiteName string
	Style    template.CSS
	Date     string
	Content  template.HTML
}

// Renderer turns pages into standalone HTML documents.
type Renderer struct {
	tmpl     *template.Template
	style    template.CSS
	siteName string
	conv     pipeline.HTMLConverter
}

// NewRenderer loads the page template and style from loader. An empty
// styleName means the default style.
func NewRenderer(loader assets.AssetLoader, styleName, siteName string) (*Renderer, error) {
	if styleName == "" {
		styleName = assets.DefaultStyleName
	}

	content, err := loader.LoadTemplate(assets.PageTemplateName)
	if err != nil {
		return nil, fmt.Errorf("loading page template: %w", err)
	}
	tmpl, err := template.New(assets.PageTemplateName).Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parsing page template: %w", err)
	}
	css, err := loader.LoadStyle(styleName)
	if err != nil {
		return nil, err
	}

	return &Renderer{
		tmpl:     tmpl,
		style:    template.CSS(pipeline.SanitizeCSS(css)), // #nosec G203 -- trusted theme CSS
		siteName: siteName,
		conv:     pipeline.NewMarkdown(),
	}, nil
}

// Render converts the page body and fills the page template. Links using
// placeholders are rewritten with resolve; unresolved ones are returned.
func (r *Renderer) Render(ctx context.Context, page *Page, resolve pipeline.LinkResolver) (string, []string, error) {
	fragment, err := r.conv.ToHTML(ctx, page.Body)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", page.RelPath, err)
	}

	fragment, unresolved, err := pipeline.RewriteLinks(fragment, resolve)
	if err != nil {
		return "", nil, fmt.Errorf("%s: rewriting links: %w", page.RelPath, err)
	}

	data := pageData{
		Lang:     page.Article.Lang,
		Title:    page.Article.Title,
		SiteName: r.siteName,
		Style:    r.style,
		Content:  template.HTML(fragment), // #nosec G203 -- goldmark output without unsafe HTML
	}
	if !page.Date.IsZero() {
		data.Date = page.Date.Format(dateFormat)
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", nil, fmt.Errorf("%s: rendering page: %w", page.RelPath, err)
	}
	return buf.String(), unresolved, nil
}
