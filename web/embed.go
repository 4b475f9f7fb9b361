package web

import "embed"

// TemplatesFS embeds the page templates; each page is parsed with layout.html.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds static assets (css).
//
//go:embed static/*
var StaticFS embed.FS
