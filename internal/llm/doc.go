// Package llm provides the model collaborators of the insight pipeline: text
// generation over the Anthropic and OpenAI APIs, embeddings over OpenAI and
// Hugging Face, and ethics classification over Hugging Face inference. The
// generator adds retry logic and rate limiting on top of the raw clients.
package llm
