// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sanitize

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestString(t *testing.T) {
	var tests = []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"plain", "  hola  ", 100, "hola"},
		{"html", "<b>hi</b>", 100, "&lt;b&gt;hi&lt;/b&gt;"},
		{"control chars", "a\x00b\x07c\x7f", 100, "abc"},
		{"truncate", "abcdef", 3, "abc"},
		{"truncate runes", "ñañaña", 2, "ña"},
		{"newline kept", "a\nb", 100, "a\nb"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := String(tc.in, tc.max)
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTextArea(t *testing.T) {
	got := TextArea(" linea 1\r\nlinea 2\rlinea 3 <i> ", 0)
	want := "linea 1\nlinea 2\nlinea 3 &lt;i&gt;"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEmail(t *testing.T) {
	var tests = []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"valid", "ana@example.com", "ana@example.com", false},
		{"lowercase and trim", "  Ana@Example.COM ", "ana@example.com", false},
		{"idn domain", "ana@bücher.de", "ana@xn--bcher-kva.de", false},
		{"empty", "", "", true},
		{"no at", "not-an-email", "", true},
		{"no tld", "ana@localhost", "", true},
		{"too long", "a@" + longDomain(), "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Email(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("got err %v, want err %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func longDomain() string {
	b := make([]byte, 0, 260)
	for len(b) < 250 {
		b = append(b, "abcdefghi."...)
	}
	return string(b) + "com"
}

func TestURL(t *testing.T) {
	if _, err := URL("javascript:alert(1)"); err == nil {
		t.Errorf("javascript url accepted")
	}
	got, err := URL(" https://agromarket.mx/x ")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://agromarket.mx/x" {
		t.Errorf("got %q", got)
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(""); got != "file" {
		t.Errorf("empty: got %q", got)
	}
	if got := Filename("foto.png"); got != "foto.png" {
		t.Errorf("got %q", got)
	}
}

func TestName(t *testing.T) {
	var tests = []struct {
		in      string
		wantErr bool
	}{
		{"José Ñúñez", false},
		{"Mary-Ann O'Neil", false},
		{"A", true},
		{"R2D2", true},
		{"<script>", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			_, err := Name(tc.in, 0, 0)
			if (err != nil) != tc.wantErr {
				t.Errorf("got err %v, want err %v", err, tc.wantErr)
			}
		})
	}
}

func TestPhone(t *testing.T) {
	var tests = []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"(555) 123-4567", "5551234567", false},
		{"+52 555 123 4567", "", true},
		{"123", "", true},
		{"555-123-456a", "", true},
		{"1234567890123456", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Phone(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("got err %v, want err %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPrice(t *testing.T) {
	var tests = []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"10", 10, false},
		{"$1,234.567", 1234.57, false},
		{"0", 0, false},
		{"abc", 0, true},
		{"1.2.3", 0, true},
		{"2000000", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Price(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("got err %v, want err %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestInteger(t *testing.T) {
	min, max := int64(1), int64(10)
	if _, err := Integer("-1", nil, nil); err == nil {
		t.Errorf("negative accepted")
	}
	if _, err := Integer("11", &min, &max); err == nil {
		t.Errorf("out of range accepted")
	}
	i, err := Integer("7", &min, &max)
	if err != nil {
		t.Fatal(err)
	}
	if i != 7 {
		t.Errorf("got %v", i)
	}
}

func TestDetectXSS(t *testing.T) {
	var tests = []struct {
		in   string
		want bool
	}{
		{"", false},
		{"hola mundo", false},
		{"Quiero 5 kg de tomate", false},
		{"<SCRIPT>alert(1)</SCRIPT>", true},
		{`<img src=x onerror=alert(1)>`, true},
		{"JavaScript:alert(1)", true},
		{"<iframe src='x'>", true},
		{"width: expression (alert(1))", true},
		{"data:text/html;base64,xx", true},
		{"vbscript:msgbox", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := DetectXSS(tc.in); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDetectXSSFields(t *testing.T) {
	got := DetectXSSFields(map[string]string{
		"nombre":  "Ana",
		"mensaje": "<script>x</script>",
		"asunto":  "javascript:void(0)",
	})
	want := []string{"asunto", "mensaje"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%v", diff)
	}
}

func TestFormData(t *testing.T) {
	minAge := int64(18)
	schema := Schema{
		"nombre": {Type: TypeName, Required: true},
		"email":  {Type: TypeEmail, Required: true},
		"edad":   {Type: TypeInt, MinValue: &minAge, Default: int64(18)},
		"precio": {Type: TypeFloat},
		"nota":   {Type: TypeTextArea},
		"ciudad": {Type: TypeString, MaxLength: 5, Default: "CDMX"},
	}

	t.Run("valid", func(t *testing.T) {
		got, err := FormData(map[string]interface{}{
			"nombre": "  Ana ",
			"email":  "ANA@Example.com",
			"edad":   "30",
			"precio": 12.3456,
			"nota":   "a\r\nb",
			"extra":  "dropped",
		}, schema)
		if err != nil {
			t.Fatal(err)
		}
		want := map[string]interface{}{
			"nombre": "Ana",
			"email":  "ana@example.com",
			"edad":   int64(30),
			"precio": 12.35,
			"nota":   "a\nb",
			"ciudad": "CDMX",
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("(-want +got):\n%v", diff)
		}
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := FormData(map[string]interface{}{
			"nombre": "Ana",
			"email":  "",
		}, schema)
		var fe FieldError
		if !errors.As(err, &fe) {
			t.Fatalf("got %v, want FieldError", err)
		}
		if fe.Field != "email" || fe.Reason != reasonRequired {
			t.Errorf("got %+v", fe)
		}
		if fe.Error() != "El campo 'email' es requerido" {
			t.Errorf("got message %q", fe.Error())
		}
	})

	t.Run("invalid required", func(t *testing.T) {
		_, err := FormData(map[string]interface{}{
			"nombre": "Ana",
			"email":  "nope",
		}, schema)
		var fe FieldError
		if !errors.As(err, &fe) {
			t.Fatalf("got %v, want FieldError", err)
		}
		if fe.Error() != "El campo 'email' tiene un valor inválido" {
			t.Errorf("got message %q", fe.Error())
		}
	})

	t.Run("invalid optional uses default", func(t *testing.T) {
		got, err := FormData(map[string]interface{}{
			"nombre": "Ana",
			"email":  "ana@example.com",
			"edad":   "12",
			"precio": "abc",
		}, schema)
		if err != nil {
			t.Fatal(err)
		}
		if got["edad"] != int64(18) {
			t.Errorf("edad: got %v", got["edad"])
		}
		if _, ok := got["precio"]; ok {
			t.Errorf("precio should have been dropped")
		}
	})
}

func TestImageUpload(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	svgData := []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>x</script></svg>`)

	var tests = []struct {
		name     string
		filename string
		data     []byte
		wantErr  bool
	}{
		{"png", "foto.PNG", png, false},
		{"bad extension", "foto.exe", png, true},
		{"svg extension", "foto.svg", svgData, true},
		{"svg disguised", "foto.png", svgData, true},
		{"mismatched", "foto.gif", png, true},
		{"empty", "foto.png", nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ImageUpload(tc.filename, tc.data)
			if (err != nil) != tc.wantErr {
				t.Errorf("got err %v, want err %v", err, tc.wantErr)
			}
		})
	}
}
