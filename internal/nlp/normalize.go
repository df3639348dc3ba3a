package nlp

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// writtenNumbers maps Portuguese spelled-out small numbers to digits. Keys
// are accent-free because normalization strips diacritics first.
var writtenNumbers = map[string]string{
	"zero":   "0",
	"um":     "1",
	"uma":    "1",
	"dois":   "2",
	"duas":   "2",
	"tres":   "3",
	"quatro": "4",
	"cinco":  "5",
	"seis":   "6",
	"sete":   "7",
	"oito":   "8",
	"nove":   "9",
	"dez":    "10",
}

var writtenNumberRe = regexp.MustCompile(`\b(zero|uma?|d(?:ois|uas)|tres|quatro|cinco|seis|sete|oito|nove|dez)\b`)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// RemoveAccents strips diacritical marks ("nao iniciada" from "não iniciada").
func RemoveAccents(text string) string {
	out, _, err := transform.String(stripMarks, text)
	if err != nil {
		return text
	}
	return out
}

// Normalize prepares raw user text for pattern matching: lower-case, strip
// diacritics, rewrite spelled-out small numbers to digits.
func Normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = RemoveAccents(text)
	text = writtenNumberRe.ReplaceAllStringFunc(text, func(word string) string {
		if digit, ok := writtenNumbers[word]; ok {
			return digit
		}
		return word
	})
	return text
}
