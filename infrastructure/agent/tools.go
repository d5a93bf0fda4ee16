package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/souraviitkgp/bluesky-explainer-agent/infrastructure/search"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/ports"
)

// Tool names exposed to the model.
const (
	ToolFetchPost  = "fetch_bluesky_post"
	ToolWebSearch  = "web_search"
	ToolSearchNews = "search_news"
)

const noResults = "No results found."

type fetchPostArgs struct {
	PostURL string `json:"post_url" validate:"required"`
}

type searchArgs struct {
	Query      string `json:"query" validate:"required"`
	MaxResults int    `json:"max_results" validate:"omitempty,min=1,max=25"`
}

func toolDefinitions() []openai.Tool {
	searchParams := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"query": {
				Type:        jsonschema.String,
				Description: "The query to search for.",
			},
			"max_results": {
				Type:        jsonschema.Integer,
				Description: "Maximum number of results to return (default 5).",
			},
		},
		Required: []string{"query"},
	}

	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolFetchPost,
				Description: "Fetch a Bluesky post by its bsky.app URL. Returns the author, text, creation time and engagement counts.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"post_url": {
							Type:        jsonschema.String,
							Description: "A bsky.app post URL, e.g. https://bsky.app/profile/HANDLE/post/RKEY.",
						},
					},
					Required: []string{"post_url"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolWebSearch,
				Description: "Search the web for a query. Returns a JSON list of results with title, url and snippet.",
				Parameters:  searchParams,
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolSearchNews,
				Description: "Search recent news for a query. Returns a JSON list of results with title, url and snippet.",
				Parameters:  searchParams,
			},
		},
	}
}

// toolExecutor runs one tool call and renders its output for the model.
// Tool failures become tool output rather than run errors, so the model can
// recover by trying another query.
type toolExecutor struct {
	fetcher    ports.PostFetcher
	searcher   ports.WebSearcher
	maxResults int
	validate   *validator.Validate
}

// Execute dispatches call by function name. The returned error is non-nil
// only for failures the model should see as an error message.
func (e *toolExecutor) Execute(ctx context.Context, call openai.ToolCall) (string, error) {
	switch call.Function.Name {
	case ToolFetchPost:
		var args fetchPostArgs
		if err := e.decode(call.Function.Arguments, &args); err != nil {
			return "", err
		}
		thread, err := e.fetcher.FetchThread(ctx, strings.TrimSpace(args.PostURL))
		if err != nil {
			return "", err
		}
		return thread.Describe(), nil

	case ToolWebSearch, ToolSearchNews:
		var args searchArgs
		if err := e.decode(call.Function.Arguments, &args); err != nil {
			return "", err
		}
		kind := ports.SearchWeb
		if call.Function.Name == ToolSearchNews {
			kind = ports.SearchNews
		}
		limit := args.MaxResults
		if limit == 0 {
			limit = e.maxResults
		}
		results, err := e.searcher.Search(ctx, kind, strings.TrimSpace(args.Query), limit)
		if errors.Is(err, search.ErrNoResults) || (err == nil && len(results) == 0) {
			return noResults, nil
		}
		if err != nil {
			return "", err
		}
		out, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil

	default:
		return "", fmt.Errorf("unknown tool %q", call.Function.Name)
	}
}

func (e *toolExecutor) decode(raw string, dst any) error {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := e.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid arguments: %s failed %q", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// newArgsValidator reports fields by their JSON names.
func newArgsValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func errorOutput(err error) string {
	return "error: " + err.Error()
}
