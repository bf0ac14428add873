package core

import (
	"encoding/json"
	"fmt"
)

// Part values are serialized with a type discriminator so heterogeneous part
// slices survive a JSON round trip (needed by persistent session stores).

type textPartJSON struct {
	Type     string         `json:"type"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type dataPartJSON struct {
	Type     string         `json:"type"`
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type filePartJSON struct {
	Type     string         `json:"type"`
	File     FilePartFile   `json:"file"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type functionCallPartJSON struct {
	Type         string         `json:"type"`
	FunctionCall FunctionCall   `json:"function_call"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type functionResponsePartJSON struct {
	Type             string           `json:"type"`
	FunctionResponse FunctionResponse `json:"function_response"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
}

func marshalPart(p Part) ([]byte, error) {
	switch v := p.(type) {
	case TextPart:
		return json.Marshal(textPartJSON{Type: "text", Text: v.Text, Metadata: v.Metadata})
	case DataPart:
		return json.Marshal(dataPartJSON{Type: "data", Data: v.Data, Metadata: v.Metadata})
	case FilePart:
		return json.Marshal(filePartJSON{Type: "file", File: v.File, Metadata: v.Metadata})
	case FunctionCallPart:
		return json.Marshal(functionCallPartJSON{Type: "function_call", FunctionCall: v.FunctionCall, Metadata: v.Metadata})
	case FunctionResponsePart:
		return json.Marshal(functionResponsePartJSON{Type: "function_response", FunctionResponse: v.FunctionResponse, Metadata: v.Metadata})
	default:
		return nil, fmt.Errorf("unknown part type %T", p)
	}
}

func unmarshalPart(data []byte) (Part, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	switch probe.Type {
	case "text":
		var v textPartJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return TextPart{Text: v.Text, Metadata: v.Metadata}, nil
	case "data":
		var v dataPartJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return DataPart{Data: v.Data, Metadata: v.Metadata}, nil
	case "file":
		var v filePartJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return FilePart{File: v.File, Metadata: v.Metadata}, nil
	case "function_call":
		var v functionCallPartJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return FunctionCallPart{FunctionCall: v.FunctionCall, Metadata: v.Metadata}, nil
	case "function_response":
		var v functionResponsePartJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return FunctionResponsePart{FunctionResponse: v.FunctionResponse, Metadata: v.Metadata}, nil
	default:
		return nil, fmt.Errorf("unknown part type %q", probe.Type)
	}
}

// MarshalJSON encodes parts with type discriminators.
func (c Content) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(c.Parts))
	for _, p := range c.Parts {
		b, err := marshalPart(p)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}

	return json.Marshal(struct {
		Role  string            `json:"role,omitempty"`
		Parts []json.RawMessage `json:"parts"`
	}{Role: c.Role, Parts: raw})
}

// UnmarshalJSON decodes type-discriminated parts.
func (c *Content) UnmarshalJSON(data []byte) error {
	var wire struct {
		Role  string            `json:"role"`
		Parts []json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	c.Role = wire.Role
	c.Parts = make([]Part, 0, len(wire.Parts))
	for _, raw := range wire.Parts {
		p, err := unmarshalPart(raw)
		if err != nil {
			return err
		}
		c.Parts = append(c.Parts, p)
	}

	return nil
}
