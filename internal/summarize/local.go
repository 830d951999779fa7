package summarize

import (
	"regexp"
	"strings"

	"github.com/kiranshivaraju/scribe/pkg/models"
)

const (
	localSummaryWords   = 150
	localKeyPointBlocks = 7
)

var reBlankLine = regexp.MustCompile(`\n[ \t\r]*\n`)

// LocalSummary derives a summary without any external call. The short
// summary is the first 150 words; key points are the first sentence of each
// of the first seven non-empty paragraphs; there are no action items.
func LocalSummary(transcript string) models.Summary {
	words := strings.Fields(transcript)
	if len(words) > localSummaryWords {
		words = words[:localSummaryWords]
	}

	keyPoints := []string{}
	seen := 0
	for _, block := range reBlankLine.Split(transcript, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		seen++
		if seen > localKeyPointBlocks {
			break
		}
		if s := firstSentence(block); s != "" {
			keyPoints = append(keyPoints, s)
		}
	}

	return models.Summary{
		ShortSummary: strings.Join(words, " "),
		KeyPoints:    keyPoints,
		ActionItems:  []string{},
	}
}

// firstSentence returns the text up to the first period with the period
// re-appended. A paragraph without a period is taken whole.
func firstSentence(paragraph string) string {
	head, _, _ := strings.Cut(paragraph, ".")
	head = strings.Join(strings.Fields(head), " ")
	if head == "" {
		return ""
	}
	return head + "."
}
