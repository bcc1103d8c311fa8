package resolver

import (
	"encoding/base64"
	"fmt"
)

const (
	placeholderWidth   = 300
	placeholderHeight  = 400
	placeholderFill    = "#334155"
	placeholderInk     = "#94a3b8"
	placeholderCaption = "No Image Available"
)

// Placeholder is the inline image shown when nothing else can be loaded. It is a
// data URI, so it needs no network access and cannot fail to load.
var Placeholder = buildPlaceholder()

func buildPlaceholder() string {
	svg := fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="%[1]d" height="%[2]d" viewBox="0 0 %[1]d %[2]d">`+
			`<rect width="%[1]d" height="%[2]d" fill="%[3]s"/>`+
			`<text x="%[5]d" y="%[6]d" fill="%[4]s" font-family="sans-serif" font-size="18" text-anchor="middle" dominant-baseline="middle">%[7]s</text>`+
			`</svg>`,
		placeholderWidth, placeholderHeight, placeholderFill, placeholderInk,
		placeholderWidth/2, placeholderHeight/2, placeholderCaption,
	)
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}
