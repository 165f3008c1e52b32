// Package web embeds the gallery's static HTML pages.
package web

import (
	"embed"
	"fmt"
)

const (
	PageIndex = "index.html"
	PageAdmin = "admin.html"
	PageLogin = "login.html"
)

//go:embed pages/*.html
var pages embed.FS

// Page returns the raw bytes of one embedded page.
func Page(name string) ([]byte, error) {
	data, err := pages.ReadFile("pages/" + name)
	if err != nil {
		return nil, fmt.Errorf("page %s: %w", name, err)
	}
	return data, nil
}
