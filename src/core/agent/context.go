package agent

// BuildContext folds retrieved document texts into the grounding block of
// the prompt. Each document is truncated to perDocChars (with an ellipsis
// suffix when cut) and documents are joined by a blank line. totalChars
// independently bounds the combined content and maxDocs bounds how many
// documents participate at all; the ellipsis and separators sit outside
// the character budget. Retrieval width and context width need not be
// equal; the smaller governs what the model sees.
func BuildContext(docs []string, perDocChars, totalChars, maxDocs int) string {
	used := 0
	out := ""
	for i, doc := range docs {
		if i >= maxDocs {
			break
		}
		remaining := totalChars - used
		if remaining <= 0 {
			break
		}
		budget := perDocChars
		if budget > remaining {
			budget = remaining
		}
		piece := truncate(doc, budget)
		if i > 0 {
			out += "\n\n"
		}
		out += piece
		used += min(budget, runeLen(doc))
	}
	return out
}

// truncate cuts s to max runes, appending an ellipsis when anything was
// removed.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func runeLen(s string) int {
	return len([]rune(s))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
