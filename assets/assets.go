// Package assets embeds the widget page and renders it into a single minified document.
package assets

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

//go:embed index.html.tpl script.js style.css favicon.svg
var files embed.FS

// PageData is passed to the index template.
type PageData struct {
	Title string
	CSS   string
	JS    string
}

// Favicon returns the minified site icon.
func Favicon() ([]byte, error) {
	raw, err := files.ReadFile("favicon.svg")
	if err != nil {
		return nil, err
	}
	return newMinifier().Bytes("image/svg+xml", raw)
}

// RenderIndex inlines style and script into the page template.
// With compact set every part is minified.
func RenderIndex(title string, compact bool) ([]byte, error) {
	m := newMinifier()

	read := func(name, mediaType string) (string, error) {
		raw, err := files.ReadFile(name)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		if !compact {
			return string(raw), nil
		}
		out, err := m.String(mediaType, string(raw))
		if err != nil {
			return "", fmt.Errorf("minify %s: %w", name, err)
		}
		return out, nil
	}

	cssText, err := read("style.css", "text/css")
	if err != nil {
		return nil, err
	}
	jsText, err := read("script.js", "text/javascript")
	if err != nil {
		return nil, err
	}

	tmpl, err := template.ParseFS(files, "index.html.tpl")
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, PageData{Title: title, CSS: cssText, JS: jsText}); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}

	if !compact {
		return buf.Bytes(), nil
	}

	return m.Bytes("text/html", buf.Bytes())
}

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/javascript", js.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	return m
}
