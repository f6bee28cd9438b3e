package mmarkdown

import (
	"gopkg.in/russross/blackfriday.v2"
)

// Extensions are the Black Friday extensions that Markdown is rendered with.
// Headings don't get automatic IDs so that rendered articles match the
// nemulo dialect's `<h3>` and `<h4>`.
const Extensions = blackfriday.CommonExtensions &^ blackfriday.HeadingIDs

// Render is a shortcut for rendering some source data to Markdown via Black
// Friday.
func Render(data []byte) []byte {
	return blackfriday.Run(data, blackfriday.WithExtensions(Extensions))
}
