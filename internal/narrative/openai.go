package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

const defaultChatURL = "https://api.openai.com/v1/chat/completions"

// systemPrompt frames the model as the game's storyteller and pins the
// response to the outcome schema.
const systemPrompt = `You are a master storyteller for a political role-playing game. Your role is to:
1. Generate compelling narrative outcomes based on player decisions
2. Determine how game variables (treasury, militarism, etc.) should change
3. Create consequences that feel meaningful and interconnected

When generating outcomes, consider:
- The player's role and their perspective
- The decision they made and its logical consequences
- How other factions might react
- Long-term implications for the kingdom

Always respond with valid JSON in this exact format:
{
  "narrative": "A 2-3 sentence narrative describing the outcome",
  "stateChanges": {
    "variable_name": change_value
  },
  "success": true
}`

// OpenAIProvider generates outcomes using the OpenAI chat completions API
// with a strict JSON schema response format.
type OpenAIProvider struct {
	apiKey     string
	model      string
	chatURL    string
	httpClient *http.Client
}

// NewOpenAIProvider creates a provider that calls the OpenAI API.
// No timeout is set on the client; the Adapter bounds each call.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:     apiKey,
		model:      model,
		chatURL:    defaultChatURL,
		httpClient: &http.Client{},
	}
}

// WithChatURL overrides the completions endpoint. Used in tests and for
// OpenAI-compatible gateways.
func (p *OpenAIProvider) WithChatURL(url string) *OpenAIProvider {
	p.chatURL = url
	return p
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat any           `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// outcomeSchema constrains the model's output to exactly the three
// outcome fields, with numeric state changes and no additional fields.
var outcomeSchema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "narrative_outcome",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"narrative": map[string]any{
					"type":        "string",
					"description": "The narrative outcome of the player's decision",
				},
				"stateChanges": map[string]any{
					"type":                 "object",
					"description":          "Changes to game variables",
					"additionalProperties": map[string]any{"type": "number"},
				},
				"success": map[string]any{
					"type":        "boolean",
					"description": "Whether the action was successful",
				},
			},
			"required":             []string{"narrative", "stateChanges", "success"},
			"additionalProperties": false,
		},
	},
}

// Generate calls the chat completions API and parses the structured outcome.
func (p *OpenAIProvider) Generate(ctx context.Context, input Input) (Outcome, error) {
	userPrompt := buildUserPrompt(input)

	content, err := p.complete(ctx, []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}, outcomeSchema)
	if err != nil {
		return Outcome{}, err
	}

	return parseOutcome(content)
}

// Summarize produces a short digest of the current game situation.
func (p *OpenAIProvider) Summarize(ctx context.Context, input SummaryInput) (string, error) {
	var b strings.Builder
	b.WriteString("Summarize the current state of this political role-playing game in 2-3 sentences:\n\n")
	b.WriteString("Recent Issues:\n")
	for _, iss := range input.Issues {
		fmt.Fprintf(&b, "- %s: %s\n", iss.Title, iss.Description)
	}
	b.WriteString("\nGame Variables:\n")
	writeVariables(&b, input.Variables)
	b.WriteString("\nRecent Events:\n")
	for i, ev := range input.RecentEvents {
		fmt.Fprintf(&b, "%d. %s\n", i+1, ev)
	}
	b.WriteString("\nProvide a brief, engaging summary that captures the political tension and current state of affairs.")

	content, err := p.complete(ctx, []chatMessage{
		{Role: "system", Content: "You are a skilled game narrator. Summarize the current game state concisely."},
		{Role: "user", Content: b.String()},
	}, nil)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("narrative: empty summary")
	}
	return content, nil
}

func (p *OpenAIProvider) complete(ctx context.Context, messages []chatMessage, responseFormat any) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model:          p.model,
		Messages:       messages,
		ResponseFormat: responseFormat,
	})
	if err != nil {
		return "", fmt.Errorf("narrative: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.chatURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("narrative: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("narrative: send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("narrative: read response: %w", err)
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("narrative: unmarshal response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("narrative: openai error: %s: %s", result.Error.Type, result.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("narrative: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("narrative: no choices in response")
	}
	return result.Choices[0].Message.Content, nil
}

func buildUserPrompt(input Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current Issue: %q\nDescription: %s\n\n", input.IssueTitle, input.IssueDescription)
	fmt.Fprintf(&b, "Player Role: %s\nPlayer Decision: %s\n\n", input.PlayerRole, input.ResolutionChoice)
	b.WriteString("Current Game State:\n")
	writeVariables(&b, input.Variables)
	if input.Context != "" {
		fmt.Fprintf(&b, "\nAdditional Context: %s\n", input.Context)
	}
	b.WriteString("\nGenerate a narrative outcome and determine how the game variables should change based on this decision. Return valid JSON.")
	return b.String()
}

// writeVariables lists variables in a stable order so prompts (and tests)
// are deterministic.
func writeVariables(b *strings.Builder, vars map[string]int) {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "- %s: %d\n", k, vars[k])
	}
}

// rawOutcome is the parse target for generator output. Deltas arrive as
// JSON numbers and may be fractional; they are truncated toward zero.
type rawOutcome struct {
	Narrative    string             `json:"narrative"`
	StateChanges map[string]float64 `json:"stateChanges"`
	Success      *bool              `json:"success"`
}

// parseOutcome enforces the outcome contract on the model's raw text.
// Any deviation from the schema is an error; the Adapter converts errors
// to the fallback outcome.
func parseOutcome(content string) (Outcome, error) {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.DisallowUnknownFields()

	var raw rawOutcome
	if err := dec.Decode(&raw); err != nil {
		return Outcome{}, fmt.Errorf("narrative: parse outcome: %w", err)
	}
	if strings.TrimSpace(raw.Narrative) == "" {
		return Outcome{}, fmt.Errorf("narrative: outcome missing narrative text")
	}
	if raw.StateChanges == nil {
		return Outcome{}, fmt.Errorf("narrative: outcome missing stateChanges")
	}
	if raw.Success == nil {
		return Outcome{}, fmt.Errorf("narrative: outcome missing success flag")
	}

	changes := make(map[string]int, len(raw.StateChanges))
	for k, v := range raw.StateChanges {
		changes[k] = int(v)
	}
	return Outcome{
		Narrative:    raw.Narrative,
		StateChanges: changes,
		Success:      *raw.Success,
	}, nil
}
