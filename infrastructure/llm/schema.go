package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// ResponseSchema asks a provider for a JSON reply conforming to Schema.
// Pass it under OptionResponseSchema.
type ResponseSchema struct {
	// Name identifies the schema to providers that require one (OpenAI).
	Name string

	Description string

	Schema jsonschema.Definition
}

// VerdictSchema is the judge reply schema: an integer score and a one-sentence reasoning.
func VerdictSchema() *ResponseSchema {
	return &ResponseSchema{
		Name:        "judge_verdict",
		Description: "Score from 1 to 5 with a one-sentence reasoning.",
		Schema: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"score":     {Type: jsonschema.Integer},
				"reasoning": {Type: jsonschema.String},
			},
			Required:             []string{"score", "reasoning"},
			AdditionalProperties: false,
		},
	}
}

func schemaFromOptions(opts map[string]any) *ResponseSchema {
	switch s := opts[OptionResponseSchema].(type) {
	case *ResponseSchema:
		return s
	case ResponseSchema:
		return &s
	default:
		return nil
	}
}

// Instruction renders the schema as a prompt suffix for providers without
// native structured output.
func (s *ResponseSchema) Instruction() string {
	raw, err := json.Marshal(&s.Schema)
	if err != nil {
		return "Respond with a single JSON object and nothing else."
	}
	return fmt.Sprintf("Respond with a single JSON object and nothing else. It must conform to this JSON schema:\n%s", raw)
}

// ExtractJSON returns the first JSON object in a model reply. It strips
// markdown code fences and ignores prose around the object. It returns ""
// when the reply holds no complete object.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	if body, ok := fencedBlock(response); ok {
		response = body
	}

	start := strings.IndexByte(response, '{')
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}

// fencedBlock returns the body of the first ``` block, skipping the language tag.
func fencedBlock(s string) (string, bool) {
	open := strings.Index(s, "```")
	if open == -1 {
		return "", false
	}
	body := s[open+3:]
	if nl := strings.IndexByte(body, '\n'); nl != -1 && !strings.HasPrefix(strings.TrimSpace(body[:nl]), "{") {
		body = body[nl+1:]
	}
	end := strings.Index(body, "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(body[:end]), true
}
