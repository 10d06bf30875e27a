package indexer

import "strings"

// defaultSeparators mirrors a recursive character splitter: try the
// coarsest separator first, fall back to finer ones, and finally split on
// raw characters if nothing else fits within chunkSize.
var defaultSeparators = []string{"\n\n\n", "\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " ", ""}

// splitText breaks text into chunks of at most chunkSize runes, overlapping
// consecutive chunks by chunkOverlap runes so a sentence split across a
// chunk boundary still appears whole in at least one chunk. chunkSize <= 0
// disables chunking: the whole text is returned as a single chunk.
func splitText(text string, chunkSize, chunkOverlap int) []string {
	if chunkSize <= 0 || len([]rune(text)) <= chunkSize {
		if text == "" {
			return nil
		}
		return []string{text}
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}

	pieces := recursiveSplit(text, defaultSeparators, chunkSize)
	return mergePieces(pieces, chunkSize, chunkOverlap)
}

func recursiveSplit(text string, separators []string, chunkSize int) []string {
	if len([]rune(text)) <= chunkSize || len(separators) == 0 {
		return []string{text}
	}

	sep := separators[0]
	rest := separators[1:]

	if sep == "" {
		return splitByRune(text, chunkSize)
	}

	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return recursiveSplit(text, rest, chunkSize)
	}

	var out []string
	for i, p := range parts {
		if i < len(parts)-1 {
			p += sep
		}
		if len([]rune(p)) > chunkSize {
			out = append(out, recursiveSplit(p, rest, chunkSize)...)
		} else if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitByRune(text string, chunkSize int) []string {
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// mergePieces packs consecutive pieces into chunks up to chunkSize runes,
// carrying the trailing chunkOverlap runes of one chunk into the start of
// the next.
func mergePieces(pieces []string, chunkSize, chunkOverlap int) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
		}
	}

	for _, p := range pieces {
		if len([]rune(current.String()))+len([]rune(p)) > chunkSize && current.Len() > 0 {
			flush()
			carry := tailRunes(current.String(), chunkOverlap)
			current.Reset()
			current.WriteString(carry)
		}
		current.WriteString(p)
	}
	flush()

	return chunks
}

func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
