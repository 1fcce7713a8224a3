package pagespub

import "embed"

// EmbeddedAssets holds the panel's static files: admin.js, admin.css.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
