// Package timing computes the playback-speed factor that makes synthesized
// speech roughly fill its segment window.
//
// The estimate is a bound enforcer, not a duration predictor: clips are
// placed at their absolute start and may still drift from the window.
package timing

import (
	"math"
	"strings"
	"unicode"
)

// Controller holds the reading rate and the speed clamp.
type Controller struct {
	WordsPerMinute float64
	MinSpeed       float64
	MaxSpeed       float64
}

// NewController returns a controller, substituting defaults for unusable values.
func NewController(wordsPerMinute, minSpeed, maxSpeed float64) Controller {
	if wordsPerMinute <= 0 {
		wordsPerMinute = 150
	}
	if minSpeed <= 0 {
		minSpeed = 0.8
	}
	if maxSpeed < minSpeed {
		maxSpeed = minSpeed
	}
	return Controller{WordsPerMinute: wordsPerMinute, MinSpeed: minSpeed, MaxSpeed: maxSpeed}
}

// EstimateDuration returns the natural speaking time of text in seconds.
func (c Controller) EstimateDuration(text string) float64 {
	if c.WordsPerMinute <= 0 {
		return 0
	}
	return float64(WordCount(text)) / c.WordsPerMinute * 60
}

// SpeedFactor returns estimated/target clamped to [MinSpeed, MaxSpeed]. A
// non-positive target or estimate yields 1.0.
func (c Controller) SpeedFactor(text string, targetDuration float64) float64 {
	if targetDuration <= 0 || math.IsNaN(targetDuration) {
		return 1.0
	}
	estimated := c.EstimateDuration(text)
	if estimated <= 0 {
		return 1.0
	}
	return c.Clamp(estimated / targetDuration)
}

// Clamp bounds factor to the controller's speed range.
func (c Controller) Clamp(factor float64) float64 {
	if math.IsNaN(factor) {
		return 1.0
	}
	return math.Max(c.MinSpeed, math.Min(c.MaxSpeed, factor))
}

// WordCount counts whitespace-separated words that hold a letter or digit.
// Scripts written without spaces count one unit per ideograph or kana.
func WordCount(text string) int {
	count := 0
	for _, field := range strings.Fields(text) {
		ideographs := 0
		other := false
		for _, r := range field {
			if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
				ideographs++
			} else if unicode.IsLetter(r) || unicode.IsDigit(r) {
				other = true
			}
		}
		count += ideographs
		if other {
			count++
		}
	}
	return count
}
