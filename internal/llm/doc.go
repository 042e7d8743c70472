// Package llm wraps language model providers behind a common Client
// interface and turns their raw output into structured decision results.
//
// The primary deployment runs against a local Ollama instance in JSON mode;
// an OpenAI-backed client exists for hosted setups. Providers return raw
// text and the shared parser is responsible for extracting the decision
// JSON, since small local models routinely wrap their output in markdown
// fences or leading prose.
package llm
