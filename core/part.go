package core

// Part is one segment of role-based content. The unexported marker method
// keeps the set of part types closed to this package.
type Part interface{ isPart() }

// Content couples a conversation role (user, assistant, tool, system) with
// an ordered, heterogeneous list of parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// TextPart carries plain UTF-8 text.
type TextPart struct {
	Text     string
	Metadata map[string]any
}

func (TextPart) isPart() {}

// DataPart carries a structured key/value payload, typically decoded JSON.
type DataPart struct {
	Data     map[string]any
	Metadata map[string]any
}

func (DataPart) isPart() {}

// FilePart attaches a file to a message.
type FilePart struct {
	File     FilePartFile
	Metadata map[string]any
}

func (FilePart) isPart() {}

// FilePartFile is the file carried by a FilePart, either inlined as base64
// bytes or referenced by URI.
type FilePartFile struct {
	Bytes    string
	MimeType *string
	Name     *string
	URI      string
}

// FunctionCall is a request to invoke a named tool. Arguments hold the raw
// serialized payload, usually JSON, exactly as the model produced it. The ID
// correlates the eventual FunctionResponse back to this call.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
	Metadata     map[string]any
}

func (FunctionCallPart) isPart() {}

// FunctionResponse is the outcome of a function call. Exactly one of
// Response and Error is meaningful; Error is set when the call failed.
type FunctionResponse struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Response any    `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
	Metadata         map[string]any
}

func (FunctionResponsePart) isPart() {}
