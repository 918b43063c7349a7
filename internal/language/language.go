package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// names holds the languages the dubbing backends have voices for, keyed by
// ISO 639-1.
var names = map[string]string{
	"ar": "Arabic", "da": "Danish", "de": "German", "en": "English",
	"es": "Spanish", "fi": "Finnish", "fr": "French", "hi": "Hindi",
	"it": "Italian", "ja": "Japanese", "ko": "Korean", "nl": "Dutch",
	"no": "Norwegian", "pl": "Polish", "pt": "Portuguese", "ru": "Russian",
	"sv": "Swedish", "zh": "Chinese",
}

// aliases maps ISO 639-2 codes (terminology and bibliographic) and English
// names onto ISO 639-1. Names are added at init.
var aliases = map[string]string{
	"ara": "ar", "dan": "da", "deu": "de", "ger": "de", "eng": "en",
	"spa": "es", "fin": "fi", "fra": "fr", "fre": "fr", "hin": "hi",
	"ita": "it", "jpn": "ja", "kor": "ko", "nld": "nl", "dut": "nl",
	"nor": "no", "pol": "pl", "por": "pt", "rus": "ru", "swe": "sv",
	"zho": "zh", "chi": "zh",
}

func init() {
	for code, name := range names {
		aliases[strings.ToLower(name)] = code
	}
}

// Normalize reduces a BCP-47 tag ("pt-BR", "zh_Hans"), an ISO 639 code or an
// English language name to ISO 639-1. Unknown two-letter codes pass through;
// anything else unrecognized yields "".
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if iso, ok := aliases[code]; ok {
		return iso
	}
	if _, ok := names[code]; ok || isAlpha2(code) {
		return code
	}
	tag, err := xlanguage.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == xlanguage.No {
		return ""
	}
	if iso := base.String(); isAlpha2(iso) {
		return iso
	}
	return ""
}

// DisplayName returns the English name for a language code. Empty input is
// "Unknown"; input that is not a language is echoed upper-cased.
func DisplayName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "Unknown"
	}
	iso := Normalize(code)
	if name, ok := names[iso]; ok {
		return name
	}
	if iso != "" {
		if base, err := xlanguage.ParseBase(iso); err == nil {
			if name := display.English.Languages().Name(base); name != "" {
				return name
			}
		}
	}
	return strings.ToUpper(code)
}

// Detect returns the ISO 639-1 code most of texts are written in, or "" when
// none is recognized. Earlier texts win ties.
func Detect(texts []string) string {
	votes := make(map[string]int)
	winner, top := "", 0
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		iso := whatlanggo.DetectLang(text).Iso6391()
		if iso == "" {
			continue
		}
		votes[iso]++
		if votes[iso] > top {
			winner, top = iso, votes[iso]
		}
	}
	return winner
}

func isAlpha2(code string) bool {
	return len(code) == 2 && code[0] >= 'a' && code[0] <= 'z' && code[1] >= 'a' && code[1] <= 'z'
}
