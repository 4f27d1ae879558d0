package document

import (
	"strconv"
	"strings"
)

// DefaultID is the id given to documents built from the default template.
const DefaultID = "page-1"

// Default returns the built-in starter page for slug.
func Default(slug string) *Document {
	return &Document{
		ID:   DefaultID,
		Slug: slug,
		Root: &Block{
			ID:   RootID,
			Type: TypeContainer,
			Styles: &Styles{Inline: map[string]string{
				"padding":    "24px",
				"fontFamily": "system-ui, sans-serif",
			}},
			Children: []*Block{
				{
					ID:    "title-1",
					Type:  TypeText,
					Props: map[string]string{PropText: "Welcome to the Visual Editor"},
					Styles: &Styles{Inline: map[string]string{
						"fontSize":   "28px",
						"fontWeight": "700",
						"margin":     "8px 0",
					}},
					Children: []*Block{},
				},
				{
					ID:    "para-1",
					Type:  TypeText,
					Props: map[string]string{PropText: "Double-click text to edit. Select to style."},
					Styles: &Styles{Inline: map[string]string{
						"color":        "#374151",
						"marginBottom": "12px",
					}},
					Children: []*Block{},
				},
				{
					ID:   "img-1",
					Type: TypeImage,
					Props: map[string]string{
						PropSrc: "https://images.unsplash.com/photo-1500530855697-b586d89ba3ee?w=1200",
						PropAlt: "Sample",
					},
					Styles: &Styles{Inline: map[string]string{
						"width":        "480px",
						"height":       "auto",
						"borderRadius": "12px",
					}},
					Children: []*Block{},
				},
			},
		},
	}
}

// PixelValue parses a CSS pixel length such as "28px". It reports false for
// anything that is not a whole number of pixels.
func PixelValue(v string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Pixels formats n as a CSS pixel length. Zero maps to "" so that clearing a
// numeric input removes the style.
func Pixels(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n) + "px"
}
