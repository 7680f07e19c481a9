// Package web holds the embedded templates and static assets.
package web

import "embed"

// TemplatesFS holds layout.html, partials.html and one file per page.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

//go:embed static/*
var StaticFS embed.FS
