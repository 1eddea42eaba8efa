package discord

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// ChunkText splits content into pieces of at most limit runes. A piece ends at
// the last newline inside the limit when that newline sits in the final 40%
// of the window, so names are not cut in half; otherwise it is a hard cut.
func ChunkText(content string, limit int) []string {
	if content == "" || limit <= 0 {
		return nil
	}
	var chunks []string
	remaining := []rune(content)
	for len(remaining) > 0 {
		if len(remaining) <= limit {
			chunks = append(chunks, string(remaining))
			break
		}
		cutAt := limit
		if nl := lastNewline(remaining, limit+1); nl >= 0 && nl >= limit*6/10 {
			cutAt = nl + 1
		}
		chunks = append(chunks, strings.TrimRight(string(remaining[:cutAt]), "\n"))
		remaining = remaining[cutAt:]
		if len(remaining) > 0 && remaining[0] == '\n' {
			remaining = remaining[1:]
		}
	}
	return chunks
}

func lastNewline(runes []rune, end int) int {
	if end > len(runes) {
		end = len(runes)
	}
	for i := end - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}

// withCounter appends "\n\nTeil i/n" and trims the chunk so the result stays
// within limit runes.
func withCounter(chunk string, part, total, limit int) string {
	suffix := "\n\nTeil " + strconv.Itoa(part) + "/" + strconv.Itoa(total)
	suffixLen := utf8.RuneCountInString(suffix)
	if utf8.RuneCountInString(chunk)+suffixLen > limit {
		keep := limit - suffixLen
		if keep < 0 {
			keep = 0
		}
		chunk = string([]rune(chunk)[:keep])
	}
	return chunk + suffix
}
