package credential

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Ordered pattern fallbacks per field; the first matching pattern wins. They
// run over the page's plain text with whitespace collapsed, so label and
// value sit on one line regardless of the markup around them.
var (
	boletaPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)no\.?\s*de\s*boleta[^0-9]{0,40}?(\d{8,10})`),
		regexp.MustCompile(`(?i)boleta[^0-9]{0,40}?(\d{8,10})`),
		regexp.MustCompile(`\b(\d{10})\b`),
	}
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)nombre(?:\s+del\s+alumno)?\s*:\s*(.{2,90}?)(?:\s+(?:boleta|carrera|escuela|programa|curp|unidad|vigencia)\s*:|$)`),
		regexp.MustCompile(`(?i)nombre(?:\s+del\s+alumno)?\s+(.{2,90}?)(?:\s+(?:boleta|carrera|escuela|programa|curp|unidad|vigencia)\b|$)`),
	}
	programPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)carrera\s*:\s*(.{2,90}?)(?:\s+(?:boleta|nombre|escuela|curp|unidad|vigencia)\s*:|$)`),
		regexp.MustCompile(`(?i)programa\s+acad[eé]mico\s*:\s*(.{2,90}?)(?:\s+(?:boleta|nombre|escuela|curp|unidad|vigencia)\s*:|$)`),
	}
	schoolPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)escuela\s*:\s*(.{2,90}?)(?:\s+(?:boleta|nombre|carrera|curp|programa|vigencia)\s*:|$)`),
		regexp.MustCompile(`(?i)unidad\s+acad[eé]mica\s*:\s*(.{2,90}?)(?:\s+(?:boleta|nombre|carrera|curp|programa|vigencia)\s*:|$)`),
	}
)

var whitespaceRe = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Fixed entity table: the credential page escapes Spanish accented letters.
var entityReplacer = strings.NewReplacer(
	"&aacute;", "á", "&eacute;", "é", "&iacute;", "í", "&oacute;", "ó", "&uacute;", "ú",
	"&Aacute;", "Á", "&Eacute;", "É", "&Iacute;", "Í", "&Oacute;", "Ó", "&Uacute;", "Ú",
	"&ntilde;", "ñ", "&Ntilde;", "Ñ", "&uuml;", "ü", "&Uuml;", "Ü",
	"&nbsp;", " ", "&quot;", `"`, "&lt;", "<", "&gt;", ">", "&amp;", "&",
)

var numericEntityRe = regexp.MustCompile(`&#(\d{1,6});`)

func decodeEntities(s string) string {
	s = numericEntityRe.ReplaceAllStringFunc(s, func(m string) string {
		code, err := strconv.Atoi(m[2 : len(m)-1])
		if err != nil || code <= 0 || code > 0x10FFFF {
			return m
		}
		return string(rune(code))
	})
	return entityReplacer.Replace(s)
}

func firstMatch(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimRight(strings.TrimSpace(m[1]), ".,;")
		}
	}
	return ""
}

// SplitName splits a full name into given and family parts. With three or
// more tokens the last two are the family name, everything before them the
// given name.
func SplitName(full string) (given, family string) {
	tokens := strings.Fields(full)
	switch len(tokens) {
	case 0:
		return "", ""
	case 1:
		return tokens[0], ""
	case 2:
		return tokens[0], tokens[1]
	default:
		return strings.Join(tokens[:len(tokens)-2], " "), strings.Join(tokens[len(tokens)-2:], " ")
	}
}

// parsePage extracts the student profile from credential page markup.
func parsePage(markup, institutionTag string) (*Profile, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(decodeEntities(markup)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	text := collapseWhitespace(decodeEntities(doc.Text()))

	boleta := firstMatch(text, boletaPatterns)
	fullName := firstMatch(text, namePatterns)
	if boleta == "" || fullName == "" {
		return nil, fmt.Errorf("%w: faltan boleta o nombre", ErrUnparsable)
	}

	school := firstMatch(text, schoolPatterns)
	if school != "" && institutionTag != "" && !strings.Contains(school, institutionTag) {
		school += " " + institutionTag
	}

	p := &Profile{
		Boleta:   boleta,
		FullName: fullName,
		Program:  firstMatch(text, programPatterns),
		School:   school,
	}
	p.GivenName, p.FamilyName = SplitName(fullName)
	return p, nil
}
