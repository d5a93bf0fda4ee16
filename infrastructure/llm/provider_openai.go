package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIDefaultModel is used when the configuration names no model.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

// NewOpenAIAPI builds the go-openai client shared by the completion provider,
// the embedder and the explainer agent.
func NewOpenAIAPI(config ClientConfig) (*openai.Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	clientConfig := openai.DefaultConfig(config.APIKey)

	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.BaseURL = validatedURL
	}

	switch {
	case config.HTTPClient != nil:
		clientConfig.HTTPClient = config.HTTPClient
	case config.Timeout > 0:
		clientConfig.HTTPClient = &http.Client{Timeout: ValidateTimeout(config.Timeout)}
	}

	return openai.NewClientWithConfig(clientConfig), nil
}

// openAIProvider implements CoreLLM over the chat completions API.
// Response schemas map to the json_schema response format in strict mode.
type openAIProvider struct {
	BaseProvider
	client          *openai.Client
	errorClassifier *ErrorClassifier
}

func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	client, err := NewOpenAIAPI(config)
	if err != nil {
		return nil, err
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	return &openAIProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          client,
		errorClassifier: &ErrorClassifier{Provider: "openai"},
	}, nil
}

// DoRequest sends one chat completion and returns the first choice.
func (p *openAIProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())

	resp, err := p.client.CreateChatCompletion(ctx, p.buildChatCompletionRequest(prompt, options))
	if err != nil {
		return "", 0, 0, ClassifyOpenAIError(p.errorClassifier, err)
	}

	if len(resp.Choices) == 0 {
		return "", 0, 0, ErrNoResponseChoice
	}

	message := resp.Choices[0].Message
	if message.Refusal != "" {
		return "", 0, 0, NewProviderError("openai", ErrorTypeContentPolicy, 0, message.Refusal, nil)
	}

	content := message.Content
	tokensIn := reportedOrEstimated(resp.Usage.PromptTokens, prompt)
	tokensOut := reportedOrEstimated(resp.Usage.CompletionTokens, content)

	return content, tokensIn, tokensOut, nil
}

func (p *openAIProvider) buildChatCompletionRequest(prompt string, options RequestOptions) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if options.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: options.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:     options.Model,
		Messages:  messages,
		MaxTokens: options.MaxTokens,
	}

	if options.Temperature != nil {
		req.Temperature = float32(Clamp(*options.Temperature, MinTemperature, MaxTemperature))
	}

	if options.TopP != nil {
		req.TopP = float32(Clamp(*options.TopP, MinTopP, MaxTopP))
	}

	if options.Schema != nil {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        options.Schema.Name,
				Description: options.Schema.Description,
				Schema:      &options.Schema.Schema,
				Strict:      true,
			},
		}
	}

	return req
}

// ClassifyOpenAIError converts go-openai errors into ProviderErrors.
func ClassifyOpenAIError(classifier *ErrorClassifier, err error) error {
	if isContextError(err) {
		return classifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}
		return classifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifier.ClassifyHTTPError(reqErr.HTTPStatusCode, reqErr.HTTPStatus, err)
	}

	return NewProviderError(classifier.Provider, ErrorTypeUnknown, 0, "request failed", err)
}
