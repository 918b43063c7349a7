// Package llm provides an OpenRouter chat client used to translate
// transcript segments.
//
// Requests ask for JSON-only output. Translate batches segments, sends each
// batch with stable ids, and writes the returned text into the segments'
// translated field; timing is never touched.
//
// The client retries on HTTP 408/429/5xx, empty completions, and network
// timeouts with exponential backoff (base 1s, max 10s, up to 5 attempts by
// default). Context cancellation aborts retries immediately.
package llm
