package classifier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pbaille/imgclf/internal/domain"
	"github.com/pbaille/imgclf/internal/ollama"
)

var (
	// ErrMissingResponse means the envelope has no "response" field
	ErrMissingResponse = errors.New("missing response field")
	// ErrMissingClass means the decoded payload has no "class" key
	ErrMissingClass = errors.New("missing class key")
	// ErrMalformedPayload means the "response" string is not a JSON object
	ErrMalformedPayload = errors.New("malformed response payload")
)

// ExtractLabel decodes the model output nested in resp and returns its class
func ExtractLabel(resp *ollama.GenerateResponse) (domain.ClassLabel, error) {
	if resp == nil || resp.Response == nil {
		return "", ErrMissingResponse
	}

	payload, err := parsePayload(*resp.Response)
	if err != nil {
		return "", err
	}

	// exact key match: "Class" or "CLASS" do not count
	v, ok := payload["class"]
	if !ok {
		return "", ErrMissingClass
	}
	label, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: class is %T, not a string", ErrMalformedPayload, v)
	}

	return domain.ClassLabel(label), nil
}

func parsePayload(text string) (map[string]any, error) {
	// Models sometimes wrap the object in a markdown fence, as the prompt shows
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var payload map[string]any
	if err := sonic.UnmarshalString(text, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return payload, nil
}

// Status names the failure kind of err for metrics and diagnostics
func Status(err error) string {
	var se *ollama.StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMissingResponse):
		return "missing_response"
	case errors.Is(err, ErrMissingClass):
		return "missing_class"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed"
	case errors.As(err, &se):
		return "api_error"
	}
	return "error"
}
