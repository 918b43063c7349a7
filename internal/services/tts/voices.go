package tts

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"redub/internal/language"
)

var edgeVoices = map[string][]string{
	"en": {"en-US-AriaNeural", "en-US-JennyNeural", "en-US-GuyNeural"},
	"es": {"es-ES-ElviraNeural", "es-ES-AlvaroNeural"},
	"fr": {"fr-FR-DeniseNeural", "fr-FR-HenriNeural"},
	"de": {"de-DE-KatjaNeural", "de-DE-ConradNeural"},
	"it": {"it-IT-ElsaNeural", "it-IT-DiegoNeural"},
	"pt": {"pt-BR-FranciscaNeural", "pt-BR-AntonioNeural"},
	"ja": {"ja-JP-NanamiNeural", "ja-JP-KeitaNeural"},
	"ko": {"ko-KR-SunHiNeural", "ko-KR-InJoonNeural"},
	"zh": {"zh-CN-XiaoxiaoNeural", "zh-CN-YunxiNeural"},
}

// Voices returns the neural voices known for lang, falling back to English.
func Voices(lang string) []string {
	if voices, ok := edgeVoices[language.Normalize(lang)]; ok {
		return voices
	}
	return edgeVoices["en"]
}

// VoiceFor maps a speaker to a stable voice for lang. The same speaker always
// gets the same voice within a language.
func VoiceFor(lang, speakerID string) string {
	voices := Voices(lang)
	if speakerID == "" {
		return voices[0]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(speakerID))
	return voices[h.Sum32()%uint32(len(voices))]
}

// EdgeRate renders a speed factor as an edge-tts rate ("+25%", "-10%").
func EdgeRate(speed float64) string {
	percent := int(math.Round((speed - 1.0) * 100))
	if percent >= 0 {
		return fmt.Sprintf("+%d%%", percent)
	}
	return fmt.Sprintf("%d%%", percent)
}

var xttsLanguages = map[string]string{
	"en": "en", "es": "es", "fr": "fr", "de": "de", "it": "it",
	"pt": "pt", "pl": "pl", "tr": "tr", "ru": "ru", "nl": "nl",
	"cs": "cs", "ar": "ar", "zh": "zh-cn", "ja": "ja", "hu": "hu", "ko": "ko",
}

// XTTSLanguage maps a language code to the code XTTS v2 accepts. Unsupported
// languages become "en".
func XTTSLanguage(lang string) string {
	if code, ok := xttsLanguages[language.Normalize(strings.TrimSpace(lang))]; ok {
		return code
	}
	return "en"
}
