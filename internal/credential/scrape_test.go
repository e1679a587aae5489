package credential

import (
	"errors"
	"strings"
	"testing"
)

func TestSplitName(t *testing.T) {
	tests := []struct {
		name   string
		full   string
		given  string
		family string
	}{
		{name: "empty", full: "", given: "", family: ""},
		{name: "single token", full: "Ana", given: "Ana", family: ""},
		{name: "two tokens", full: "Ana Torres", given: "Ana", family: "Torres"},
		{name: "three tokens", full: "Ana Torres Lopez", given: "Ana", family: "Torres Lopez"},
		{name: "four tokens", full: "Ana Maria Torres Lopez", given: "Ana Maria", family: "Torres Lopez"},
		{name: "five tokens", full: "Jose Luis de la Cruz", given: "Jose Luis de", family: "la Cruz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			given, family := SplitName(tt.full)
			if given != tt.given || family != tt.family {
				t.Errorf("SplitName(%q) = (%q, %q), want (%q, %q)", tt.full, given, family, tt.given, tt.family)
			}
		})
	}
}

func TestDecodeEntities(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Mart&iacute;nez", "Martínez"},
		{"MU&Ntilde;OZ", "MUÑOZ"},
		{"Computaci&oacute;n", "Computación"},
		{"a&nbsp;b", "a b"},
		{"x &amp; y", "x & y"},
		{"&quot;ok&quot;", `"ok"`},
		{"&#243;", "ó"},
		{"&#209;", "Ñ"},
		{"sin entidades", "sin entidades"},
	}
	for _, tt := range tests {
		if got := decodeEntities(tt.in); got != tt.want {
			t.Errorf("decodeEntities(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParsePage(t *testing.T) {
	markup := `<html><body>
		<table>
			<tr><td>Boleta:</td><td>2023123456</td></tr>
			<tr><td>Nombre:</td><td>Ana Torres Lopez</td></tr>
			<tr><td>Carrera:</td><td>Ingenier&iacute;a en Sistemas</td></tr>
			<tr><td>Escuela:</td><td>ESCOM</td></tr>
		</table>
	</body></html>`

	p, err := parsePage(markup, "IPN")
	if err != nil {
		t.Fatalf("parsePage: %v", err)
	}
	if p.Boleta != "2023123456" {
		t.Errorf("boleta = %q, want 2023123456", p.Boleta)
	}
	if p.FullName != "Ana Torres Lopez" {
		t.Errorf("full name = %q", p.FullName)
	}
	if p.GivenName != "Ana" || p.FamilyName != "Torres Lopez" {
		t.Errorf("name split = (%q, %q), want (Ana, Torres Lopez)", p.GivenName, p.FamilyName)
	}
	if p.Program != "Ingeniería en Sistemas" {
		t.Errorf("program = %q", p.Program)
	}
	if p.School != "ESCOM IPN" {
		t.Errorf("school = %q, want ESCOM IPN", p.School)
	}
}

func TestParsePageSchoolAlreadyTagged(t *testing.T) {
	markup := `<html><body>
		Boleta: 2020111122 Nombre: Luis Perez Gomez Escuela: ESCOM IPN
	</body></html>`
	p, err := parsePage(markup, "IPN")
	if err != nil {
		t.Fatalf("parsePage: %v", err)
	}
	if p.School != "ESCOM IPN" {
		t.Errorf("school = %q, tag must not be appended twice", p.School)
	}
}

func TestParsePageShortBoleta(t *testing.T) {
	markup := "<html><body>Boleta: 93123456 Nombre: Luis Perez</body></html>"
	p, err := parsePage(markup, "IPN")
	if err != nil {
		t.Fatalf("parsePage: %v", err)
	}
	// Legacy credentials carry 8-digit boletas; the page parser accepts them
	// and final validation decides.
	if p.Boleta != "93123456" {
		t.Errorf("boleta = %q, want 93123456", p.Boleta)
	}
}

func TestParsePageMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		markup string
	}{
		{name: "no boleta", markup: "<html><body>Nombre: Ana Torres Lopez</body></html>"},
		{name: "no name", markup: "<html><body>Boleta: 2023123456</body></html>"},
		{name: "empty page", markup: "<html><body></body></html>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parsePage(tt.markup, "IPN"); !errors.Is(err, ErrUnparsable) {
				t.Errorf("parsePage = %v, want ErrUnparsable", err)
			}
		})
	}
}

func TestCollapseWhitespace(t *testing.T) {
	in := "  Ana \n\t Torres\r\nLopez  "
	if got := collapseWhitespace(in); got != "Ana Torres Lopez" {
		t.Errorf("collapseWhitespace = %q", got)
	}
}

func TestParsePageLabelRuns(t *testing.T) {
	// Name capture must stop at the next label, not swallow it.
	markup := "<html><body>Nombre: Ana Torres Lopez Carrera: ISC Boleta: 2023123456 mas relleno para la pagina</body></html>"
	p, err := parsePage(markup, "IPN")
	if err != nil {
		t.Fatalf("parsePage: %v", err)
	}
	if strings.Contains(p.FullName, "Carrera") {
		t.Errorf("full name captured past the next label: %q", p.FullName)
	}
	if p.Program != "ISC" {
		t.Errorf("program = %q, want ISC", p.Program)
	}
}
