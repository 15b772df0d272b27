package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// PickCandidate is one option presented to the judge.
type PickCandidate struct {
	Question      string
	AnswerPreview string
}

// PickRequest asks the judge to choose which candidate, if any, answers the
// query.
type PickRequest struct {
	Query      string
	Candidates []PickCandidate
}

// Verdict is the judge's structured response. None means the judge declined
// to pick; Choice is 1-based when None is false.
type Verdict struct {
	Choice int
	None   bool
	Reason string
}

// ErrMalformedVerdict is returned when the judge response cannot be parsed
// into a Verdict.
var ErrMalformedVerdict = errors.New("malformed judge response")

const pickSystemPrompt = `You match customer questions to a list of known FAQ entries.
Reply with JSON only: {"choice": <1-based index or "none">, "reason": "<short justification>"}.
Pick a candidate only if it clearly answers the customer's question. When unsure, answer "none".`

// Pick sends the query plus candidates to the judge model and parses the
// structured response. Parsing failures surface as ErrMalformedVerdict; the
// caller decides what a safe fallback looks like.
func (c *Client) Pick(ctx context.Context, req PickRequest) (*Verdict, error) {
	if len(req.Candidates) == 0 {
		return nil, errors.New("no candidates to judge")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Customer question: %q\n\nCandidates:\n", req.Query)
	for i, cand := range req.Candidates {
		fmt.Fprintf(&b, "%d. Q: %s\n   A: %s\n", i+1, cand.Question, cand.AnswerPreview)
	}

	raw, err := c.chatBreaker.Execute(func() (string, error) {
		resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.cfg.JudgeModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: pickSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: b.String()},
			},
			Temperature: 0,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", ErrNoChoices
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return nil, err
	}

	return ParseVerdict(raw)
}

// ParseVerdict decodes the judge's JSON payload. Exposed for tests and for
// substitute judge implementations.
func ParseVerdict(raw string) (*Verdict, error) {
	var payload struct {
		Choice json.RawMessage `json:"choice"`
		Reason string          `json:"reason"`
	}

	trimmed := strings.TrimSpace(raw)
	// Some models wrap JSON in markdown fences despite response_format.
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	if len(payload.Choice) == 0 {
		return nil, fmt.Errorf("%w: missing choice", ErrMalformedVerdict)
	}

	verdict := &Verdict{Reason: strings.TrimSpace(payload.Reason)}

	var asInt int
	if err := json.Unmarshal(payload.Choice, &asInt); err == nil {
		verdict.Choice = asInt
		return verdict, nil
	}

	var asString string
	if err := json.Unmarshal(payload.Choice, &asString); err == nil {
		asString = strings.ToLower(strings.TrimSpace(asString))
		if asString == "none" {
			verdict.None = true
			return verdict, nil
		}
		var n int
		if _, err := fmt.Sscanf(asString, "%d", &n); err == nil {
			verdict.Choice = n
			return verdict, nil
		}
	}

	return nil, fmt.Errorf("%w: unrecognized choice %s", ErrMalformedVerdict, string(payload.Choice))
}
