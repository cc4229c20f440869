// Package assistant forwards chat messages to a hosted language model.
//
// Two providers implement Completer: OpenAIClient (chat completions over
// HTTPS) and GeminiClient (Gemini through the genai SDK). The Service builds
// its provider on first use, so a missing API key surfaces as
// ErrNotConfigured on the assistant routes rather than at startup.
package assistant
