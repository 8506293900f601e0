package decoder

import "github.com/ieee0824/translate-go/phrase"

// Result holds the translation output.
type Result struct {
	Text     string        // target words joined by spaces
	Segments []Segment     // phrase-level details, in source order
	Scores   phrase.Scores // feature score breakdown
	LogScore float64       // weighted total score
	Stats    Stats
}

// Segment is one applied phrase pair.
type Segment struct {
	Source    phrase.Range
	Target    string
	Alignment phrase.Alignment
	Unknown   bool // source word copied through untranslated
}

// Stats counts search events.
type Stats struct {
	Created    int
	Recombined int
	Pruned     int
}
