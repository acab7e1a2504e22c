// Package web holds the dashboard templates and static assets, embedded
// into the server binary.
package web

import "embed"

// TemplatesFS holds the page layouts and the htmx widget partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the htmx glue script.
//
//go:embed static/*
var StaticFS embed.FS
