package service

import "fmt"

// Slack truncates anything longer.
const defaultMaxMessageLength = 2000

/*
ChunkText splits text into pieces that fit a chat surface's message
limit. Short text passes through untouched. Longer text is cut on rune
boundaries and every piece gets a position prefix so the reader can
stitch the output back together in order.
*/
func ChunkText(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = defaultMaxMessageLength
	}

	runes := []rune(text)

	if len(runes) <= maxLen {
		return []string{text}
	}

	// Leave room for the "[i/n]\n" prefix on every piece.
	room := maxLen - 10

	if room < 1 {
		room = 1
	}

	var pieces [][]rune

	for start := 0; start < len(runes); start += room {
		end := min(start+room, len(runes))
		pieces = append(pieces, runes[start:end])
	}

	chunks := make([]string, len(pieces))

	for i, piece := range pieces {
		chunks[i] = fmt.Sprintf("[%d/%d]\n%s", i+1, len(pieces), string(piece))
	}

	return chunks
}
