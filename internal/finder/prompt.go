package finder

import (
	"fmt"
	"strings"

	"github.com/54b3r/showfinder-go/internal/rag"
)

// DefaultPersona is the instruction block that opens every prompt.
const DefaultPersona = `You are an enthusiastic representative of a Netflix shows collection database who loves to help people! Your name is Netflix man. Given the following titles and descriptions of available shows provided as context, help the user find a few shows that they might be looking for based on the description that they provide. Provide the top 3 shows that match the best criteria based on the description. If you are unsure and the answer is not explicity available in the shows descriptions provided to you then say, "Sorry unable to help". In your response, be friendly, introduce yourself, and provide the answer with the reasoning on why you suggested these shows. Format your response in an unordererd HTML list and apply font-semibold css class to the name of the show.`

// contextSeparator joins the per-show entries of a context block.
const contextSeparator = ", "

// BuildContext renders matches, in order, as
//
//	Show Title: "<title>" Show Description: "<description>"
//
// joined with ", ". Titles and descriptions are inserted verbatim. An empty
// slice yields "".
func BuildContext(matches []rag.Match) string {
	if len(matches) == 0 {
		return ""
	}
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = fmt.Sprintf(`Show Title: "%s" Show Description: "%s"`, m.Title, m.Description)
	}
	return strings.Join(parts, contextSeparator)
}

// BuildPrompt assembles the completion prompt from the persona, the context
// block and the user's description.
func BuildPrompt(persona, context, query string) string {
	var sb strings.Builder
	sb.Grow(len(persona) + len(context) + len(query) + 96)
	sb.WriteString(persona)
	sb.WriteString("\n\nContext shows with titles and descriptions:\n")
	sb.WriteString(context)
	sb.WriteString("\n\nUser Provided Description:\n")
	sb.WriteString(query)
	sb.WriteString("\n\nAnswer:\n")
	return sb.String()
}
