package callback

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrTaskTokenMissing reports a callback payload without a task token.
var ErrTaskTokenMissing = errors.New("task token missing")

var tokenKeys = []string{"taskToken", "TaskToken", "task_token"}

// TaskToken extracts a Step Functions task token from common payload shapes.
//
// It checks (in order): "taskToken", "TaskToken", and "task_token". If no token is found, it returns "".
func TaskToken(event any) string {
	if event == nil {
		return ""
	}

	switch value := event.(type) {
	case map[string]any:
		return tokenFromMap(value)
	case map[string]string:
		for _, key := range tokenKeys {
			if token := strings.TrimSpace(value[key]); token != "" {
				return token
			}
		}
		return ""
	case json.RawMessage:
		return tokenFromJSON(value)
	case []byte:
		return tokenFromJSON(value)
	case string:
		return tokenFromJSON([]byte(value))
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			return ""
		}
		return tokenFromJSON(raw)
	}
}

func tokenFromJSON(raw []byte) string {
	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ""
	}
	return tokenFromMap(parsed)
}

func tokenFromMap(event map[string]any) string {
	for _, key := range tokenKeys {
		raw, ok := event[key]
		if !ok {
			continue
		}
		switch value := raw.(type) {
		case string:
			if token := strings.TrimSpace(value); token != "" {
				return token
			}
		case []byte:
			if token := strings.TrimSpace(string(value)); token != "" {
				return token
			}
		}
	}
	return ""
}

// Task is one unit of callback work: the token to complete and the input to act on.
type Task struct {
	Token     string
	Input     json.RawMessage
	MessageID string
}

// ParseTask decodes a callback message body. The body must be a JSON object carrying a
// token; its "input" member, when present, becomes Task.Input, otherwise the whole body does.
func ParseTask(body []byte) (Task, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Task{}, errors.Join(ErrTaskTokenMissing, err)
	}

	token := tokenFromJSON(body)
	if token == "" {
		return Task{}, ErrTaskTokenMissing
	}

	input := json.RawMessage(body)
	if raw, ok := envelope["input"]; ok {
		input = raw
	}
	return Task{Token: token, Input: input}, nil
}
