// Package llm provides an OpenAI-compatible chat completions client used by
// transcript enrichment.
//
// The client always requests JSON-only responses and retries on HTTP
// 408/429/5xx and network timeouts with exponential backoff (base 1s, max
// 10s, up to 5 attempts by default). Context cancellation aborts retries
// immediately.
package llm
