package scoring

import (
	"bytes"
	"fmt"
	"text/template"
)

// goldenPrompt asks the judge to compare the agent's explanation with a reference.
const goldenPrompt = `You are an eval judge. Given the original post, the expected (reference) explanation, and the agent's explanation, score the agent's explanation from 1 to 5.
5 = matches intent and key content; 1 = wrong or irrelevant.
Respond with a JSON object: "score" (integer 1-5), "reasoning" (one short sentence).

Post:
{{.PostText}}

Expected (reference):
{{.Expected}}

Agent explanation:
{{.Explanation}}
`

// relevancePrompt asks the judge to rate the explanation against the post alone.
const relevancePrompt = `You are an eval judge. Given the original post and the agent's explanation, score how relevant and accurate the explanation is (1-5).
5 = clearly explains the post; 1 = irrelevant or wrong.
Respond with a JSON object: "score" (integer 1-5), "reasoning" (one short sentence).

Post:
{{.PostText}}

Agent explanation:
{{.Explanation}}
`

var (
	goldenTemplate    = template.Must(template.New("golden").Parse(goldenPrompt))
	relevanceTemplate = template.Must(template.New("relevance").Parse(relevancePrompt))
)

type promptData struct {
	PostText    string
	Expected    string
	Explanation string
}

func render(tmpl *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
