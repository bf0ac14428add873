// Package model abstracts language model providers behind a single Model
// interface. Generate always returns channels, so streaming and single-shot
// providers look the same to callers; tool use travels as ToolDefinition in
// requests and function call parts in responses, independent of any vendor
// wire format.
//
// The openai and anthropic subpackages adapt the respective SDKs to this
// interface. MockModel scripts canned responses for tests, and
// InstrumentedModel wraps any Model with logging and latency measurements.
package model
