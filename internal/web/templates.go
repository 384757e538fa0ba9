package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/*.html templates/*.md
var templateFS embed.FS

// examples are offered as one-click inputs on the form.
var examples = []string{
	"Hello world, this is my cloned voice speaking!",
	"What a beautiful day it is today!",
	"I'm testing this amazing voice cloning technology.",
	"The quick brown fox jumps over the lazy dog.",
}

type renderer struct {
	templates *template.Template
	tips      template.HTML
}

func (r *renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

func parseTemplates() (*renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("unable to parse templates: %w", err)
	}

	md, err := templateFS.ReadFile("templates/tips.md")
	if err != nil {
		return nil, err
	}
	tips, err := renderMarkdown(md)
	if err != nil {
		return nil, err
	}

	return &renderer{templates: tmpl, tips: tips}, nil
}

func renderMarkdown(src []byte) (template.HTML, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("unable to render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil //nolint:gosec
}
