package document

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"knowra/src/core/rag"
	"knowra/src/infrastructure/log"
)

// Splitter turns a document's text into bounded fragments, in source order.
type Splitter interface {
	Split(text string) ([]string, error)
}

// WordSplitter emits consecutive windows of exactly MaxWords words; the
// last window may be shorter. Splitting on whitespace and re-joining the
// windows reproduces the original word sequence.
type WordSplitter struct {
	MaxWords int
}

func (s WordSplitter) Split(text string) ([]string, error) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}
	var parts []string
	for start := 0; start < len(words); start += s.MaxWords {
		end := start + s.MaxWords
		if end > len(words) {
			end = len(words)
		}
		parts = append(parts, strings.Join(words[start:end], " "))
	}
	return parts, nil
}

// SentenceSplitter accumulates ". "-delimited sentences into a buffer and
// flushes it whenever the next sentence would push it past MaxChars. The
// trailing buffer is always flushed. Once MaxChunks chunks exist the
// remaining text is dropped without warning; a debug line records how much.
type SentenceSplitter struct {
	MaxChars  int
	MaxChunks int
}

func (s SentenceSplitter) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	sentences := strings.Split(text, ". ")

	var chunks []string
	var buf strings.Builder
	// MaxChars bounds runes, not bytes, so multibyte text packs the same
	// as ASCII.
	bufRunes := 0
	for i, sentence := range sentences {
		runes := utf8.RuneCountInString(sentence)
		if bufRunes > 0 && bufRunes+runes > s.MaxChars {
			chunks = append(chunks, strings.TrimSpace(buf.String()))
			buf.Reset()
			bufRunes = 0
			if s.MaxChunks > 0 && len(chunks) >= s.MaxChunks {
				log.Debug("chunk ceiling reached, dropping remaining text",
					"max_chunks", s.MaxChunks,
					"dropped_sentences", len(sentences)-i)
				return chunks, nil
			}
			buf.WriteString(sentence)
			bufRunes = runes
			continue
		}
		if bufRunes > 0 {
			buf.WriteString(". ")
			bufRunes += 2
		}
		buf.WriteString(sentence)
		bufRunes += runes
	}
	if buf.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(buf.String()))
	}
	return chunks, nil
}

// RecursiveSplitter wraps the langchaingo recursive-character splitter for
// documents where neither fixed word windows nor sentence packing fit.
type RecursiveSplitter struct {
	ChunkSize int
	Overlap   int
}

func (s RecursiveSplitter) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(s.ChunkSize),
		textsplitter.WithChunkOverlap(s.Overlap),
	)
	return splitter.SplitText(text)
}

// Chunker splits extracted text into rag.Chunks with attached metadata.
type Chunker struct {
	splitter Splitter
}

func NewChunker(splitter Splitter) *Chunker {
	return &Chunker{splitter: splitter}
}

// Chunk splits text and attaches an identical metadata shape to every
// fragment: source identity plus document-level totals. Empty text yields
// zero chunks, not an error.
func (c *Chunker) Chunk(source, filename, text string) ([]rag.Chunk, error) {
	parts, err := c.splitter.Split(text)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, nil
	}

	totalWords := len(strings.Fields(text))
	totalChars := utf8.RuneCountInString(text)
	fileType := strings.ToLower(filepath.Ext(filename))

	chunks := make([]rag.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, rag.Chunk{
			Content: part,
			Metadata: rag.Metadata{
				Source:      source,
				Filename:    filename,
				FileType:    fileType,
				ChunkIndex:  i,
				TotalChunks: len(parts),
				TotalWords:  totalWords,
				TotalChars:  totalChars,
			},
		})
	}
	return chunks, nil
}
