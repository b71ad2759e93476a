package ai

import (
	"context"
	"encoding/json"
	"strings"
)

const jsonOnlyInstruction = "Respond with valid JSON only. Do not wrap it in markdown code fences and do not add any text before or after the JSON."

// GenerateJSON asks for a JSON-only answer, decodes it into T and runs validate on it.
// A response that does not parse or fails validation is an InvalidRequest *Error whose
// Details hold the raw model output. The Response is returned alongside such errors.
func GenerateJSON[T any](ctx context.Context, c *Client, req Request, hint string, validate func(*T) error) (*T, *Response, error) {
	req.System = withJSONInstruction(req.System)
	req.JSONMode = true

	resp, err := c.GenerateText(ctx, req, hint)
	if err != nil {
		return nil, nil, err
	}

	var out T
	if err := json.Unmarshal([]byte(cleanJSONString(resp.Text)), &out); err != nil {
		return nil, resp, &Error{
			Kind:     KindInvalidRequest,
			Provider: resp.Provider,
			Message:  "model response is not valid JSON",
			Details:  resp.Text,
			Err:      err,
		}
	}
	if validate != nil {
		if err := validate(&out); err != nil {
			return nil, resp, &Error{
				Kind:     KindInvalidRequest,
				Provider: resp.Provider,
				Message:  "model response failed schema validation: " + err.Error(),
				Details:  resp.Text,
				Err:      err,
			}
		}
	}
	return &out, resp, nil
}

func withJSONInstruction(system string) string {
	if strings.TrimSpace(system) == "" {
		return jsonOnlyInstruction
	}
	return system + "\n\n" + jsonOnlyInstruction
}

// cleanJSONString removes markdown code blocks if present (e.g. ```json ... ```)
func cleanJSONString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```JSON")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
