package chunker

import (
	"strings"
	"unicode"
)

// Default window sizes, in characters.
const (
	DefaultMaxSize = 500
	DefaultOverlap = 200
)

// Config controls the chunking behaviour.
type Config struct {
	MaxSize int // Maximum characters per chunk.
	Overlap int // Characters shared between consecutive chunks.
}

// Chunk is one window of the source text. Start and End are rune offsets
// into the original text (End exclusive).
type Chunk struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Chunker splits document text into overlapping windows sized for a single
// extraction prompt.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration.
// A non-positive MaxSize is replaced with DefaultMaxSize; a negative
// Overlap is treated as zero.
func New(cfg Config) *Chunker {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	return &Chunker{cfg: cfg}
}

// Config returns the effective configuration.
func (c *Chunker) Config() Config {
	return c.cfg
}

// Chunk splits text and returns only the chunk bodies.
func (c *Chunker) Chunk(text string) []string {
	chunks := c.Split(text)
	out := make([]string, len(chunks))
	for i, ch := range chunks {
		out[i] = ch.Text
	}
	return out
}

// Split splits text using the chunker's configuration.
func (c *Chunker) Split(text string) []Chunk {
	return Split(text, c.cfg.MaxSize, c.cfg.Overlap)
}

// Split breaks text into windows of at most maxSize characters. Cuts are
// placed on the best natural boundary available (paragraph, then sentence,
// then whitespace) and fall back to a hard cut at maxSize.
//
// Every chunk after the first begins exactly overlap characters before the
// end of its predecessor, so dropping the first overlap characters of each
// later chunk and concatenating reproduces text exactly.
//
// overlap is clamped to [0, maxSize-1]. Empty text yields no chunks.
func Split(text string, maxSize, overlap int) []Chunk {
	if text == "" {
		return nil
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxSize {
		overlap = maxSize - 1
	}

	runes := []rune(text)
	var chunks []Chunk
	start := 0
	for {
		if len(runes)-start <= maxSize {
			chunks = append(chunks, Chunk{
				Text:  string(runes[start:]),
				Start: start,
				End:   len(runes),
			})
			return chunks
		}

		end := cutPoint(runes, start, maxSize, overlap)
		chunks = append(chunks, Chunk{
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})
		start = end - overlap
	}
}

// boundary reports whether a chunk may end immediately before runes[i].
type boundary func(runes []rune, i int) bool

// boundaries in order of preference.
var boundaries = []boundary{
	paragraphBoundary,
	sentenceBoundary,
	wordBoundary,
}

// cutPoint picks the exclusive end of the chunk starting at start. The cut
// must leave the next chunk starting after start (cut > start+overlap) and
// is kept in the upper half of the window so chunks don't shrink to
// slivers when boundaries are sparse.
func cutPoint(runes []rune, start, maxSize, overlap int) int {
	hi := start + maxSize
	lo := start + overlap + 1
	if half := start + maxSize/2; half > lo {
		lo = half
	}

	for _, isBoundary := range boundaries {
		for cut := hi; cut >= lo; cut-- {
			if isBoundary(runes, cut) {
				return cut
			}
		}
	}
	return hi
}

// paragraphBoundary matches the position just after a blank line.
func paragraphBoundary(runes []rune, i int) bool {
	return i >= 2 && runes[i-1] == '\n' && runes[i-2] == '\n'
}

// sentenceBoundary matches the position after terminal punctuation and the
// whitespace that follows it, or after a single line break.
func sentenceBoundary(runes []rune, i int) bool {
	if i >= 1 && runes[i-1] == '\n' {
		return true
	}
	return i >= 2 && unicode.IsSpace(runes[i-1]) && strings.ContainsRune(".!?", runes[i-2])
}

// wordBoundary matches the position after any whitespace.
func wordBoundary(runes []rune, i int) bool {
	return i >= 1 && unicode.IsSpace(runes[i-1])
}
