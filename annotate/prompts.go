package annotate

import (
	"fmt"

	"github.com/docutag/linkbender/models"
)

const summaryInstructions = `Analyze the following link's content and provide a concise summary, relevant tags, a grade, and an optional badge.

For each output:
1. Give a 2-3 sentence summary of the content.
2. List tags based on topics covered in the link (e.g., "SEO," "content marketing").
3. Assign a grade from 1 to 10 based on relevance and content quality.
4. Optionally, assign a badge ("gold," "platinum," etc.) if the content is of high quality or widely recognized as an industry leader.

Format the response in a clean JSON object, like this:
{
    "summary": "A brief summary of the content here.",
    "tags": ["tag1", "tag2"],
    "grade": "1-10",
    "badge": "gold"
}`

const customInstructions = `Analyze the following link's content and provide a customized summary based on user preferences.

Length preferences:
- short: 1-2 sentences
- medium: 3-4 sentences
- detailed: 5-6 sentences

Style preferences:
- bullet_points: Present key points in bullet format
- conversational: Casual, easy-to-read tone
- technical: Detailed technical analysis, relatable to the content of the url

Format the response in a clean JSON object:
{
    "summary": "Customized summary based on preferences",
    "tags": ["tag1", "tag2"],
    "grade": "1-10",
    "badge": "gold/silver/bronze",
    "metadata": {
        "length": "short/medium/detailed",
        "style": "bullet_points/conversational/technical"
    }
}`

// SystemPrompt returns the instructions for a plain or customized annotation
func SystemPrompt(prefs *models.Preferences) string {
	if prefs != nil {
		return customInstructions
	}
	return summaryInstructions
}

// UserPrompt wraps page text, prefixing the preferences block when present
func UserPrompt(text string, prefs *models.Preferences) string {
	if prefs == nil {
		return text
	}
	return fmt.Sprintf("PREFERENCES:\nLength: %s\nStyle: %s\n\nCONTENT:\n%s", prefs.Length, prefs.Style, text)
}
