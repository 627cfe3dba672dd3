package compression

import "strings"

// Level is the aggressiveness selector requested by the caller.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// LevelParams holds the numeric parameters each engine needs for one level.
type LevelParams struct {
	// JPEGQuality is used by the render engine when re-encoding pages.
	JPEGQuality int
	// RenderScale is relative to the page's native 72 DPI resolution.
	RenderScale float64
	// PDFSettings is the Ghostscript -dPDFSETTINGS directive.
	PDFSettings string
}

var levelPolicy = map[Level]LevelParams{
	LevelLow:    {JPEGQuality: 85, RenderScale: 1.5, PDFSettings: "/printer"},
	LevelMedium: {JPEGQuality: 60, RenderScale: 1.2, PDFSettings: "/ebook"},
	LevelHigh:   {JPEGQuality: 35, RenderScale: 1.0, PDFSettings: "/screen"},
}

var levelAliases = map[string]Level{
	"low":         LevelLow,
	"medium":      LevelMedium,
	"high":        LevelHigh,
	"good_enough": LevelLow,
	"aggressive":  LevelMedium,
	"ultra":       LevelHigh,
}

// ParseLevel maps a user-supplied level string to a Level. Unknown or empty
// values fall back to LevelMedium.
func ParseLevel(s string) Level {
	if level, ok := levelAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return level
	}
	return LevelMedium
}

// Params returns the policy row for the level. Levels outside the table get
// the medium row.
func (l Level) Params() LevelParams {
	if p, ok := levelPolicy[l]; ok {
		return p
	}
	return levelPolicy[LevelMedium]
}

// Levels lists the supported levels from least to most aggressive.
func Levels() []Level {
	return []Level{LevelLow, LevelMedium, LevelHigh}
}

func (l Level) String() string {
	return string(l)
}
