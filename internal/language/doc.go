// Package language provides language code normalization and detection.
//
// Target languages arrive as BCP-47 tags, ISO 639 codes, or English words;
// Normalize reduces all of them to ISO 639-1. Detect guesses the language of
// translated text when a job does not state one.
package language
