package summarize

import "strings"

const systemPrompt = `You summarize meeting and call transcripts.
Reply with a single JSON object and nothing else. It must have exactly these keys:
  "short_summary": a concise summary of the conversation in two to four sentences,
  "key_points": an array of strings, one per important topic or decision,
  "action_items": an array of strings, one per concrete follow-up task (empty array when there are none).
Write the values in the same language as the transcript.`

const truncatedNote = "The transcript below was cut to fit the input limit. Summarize only what is present and do not guess how it continues.\n\n"

// userMessage builds the user turn for input.
func userMessage(input string, truncated bool) string {
	var b strings.Builder
	if truncated {
		b.WriteString(truncatedNote)
	}
	b.WriteString("Transcript:\n")
	b.WriteString(input)
	return b.String()
}
