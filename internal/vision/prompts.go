package vision

import "github.com/ilucas1a/DocAnalyser-beta-sub001/internal/extract"

// Transcription prompts for the generative backends. They ask for verbatim
// text with paragraph structure preserved, since downstream segmentation
// splits on blank lines.
const (
	printedPrompt = `Transcribe all text in this image exactly as it appears.
Preserve the original paragraph structure with blank lines between paragraphs.
Output only the transcribed text, no commentary.`

	handwritingPrompt = `Transcribe the handwritten text in this image exactly as written.
Preserve line and paragraph breaks. If a word is illegible, write [illegible].
Output only the transcribed text, no commentary.`

	documentPrompt = `Transcribe all text in this document exactly as it appears, page by page.
Preserve the original paragraph structure with blank lines between paragraphs.
Output only the transcribed text, no commentary.`
)

func imagePrompt(t extract.TextType) string {
	if t == extract.TextHandwriting {
		return handwritingPrompt
	}
	return printedPrompt
}
