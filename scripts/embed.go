// Package scripts embeds the bundled Risor extraction scripts. They cover
// top-level declarations only and serve as a starting point for custom
// extractors; the built-in Go extractors remain the default.
package scripts

import "embed"

// FS holds extract/kotlin.risor and extract/java.risor.
//
//go:embed extract/*.risor
var FS embed.FS
