package security

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClean(t *testing.T) {
	sanitizer := NewNameSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "プレーンな名前はそのまま", input: "Marco", want: "Marco"},
		{name: "前後の空白を除去", input: "  Anna  ", want: "Anna"},
		{name: "タグを除去", input: "<b>Marco</b>", want: "Marco"},
		{name: "scriptは中身ごと除去", input: "<script>alert(1)</script>Luca", want: "Luca"},
		{name: "アポストロフィは保持", input: "D'Angelo", want: "D'Angelo"},
		{name: "アンパサンドは保持", input: "Tom & Jerry", want: "Tom & Jerry"},
		{name: "改行は空白に", input: "Gian\nLuca", want: "Gian Luca"},
		{name: "連続空白を1つに", input: "Gian    Luca", want: "Gian Luca"},
		{name: "絵文字は保持", input: "Bestia 💪", want: "Bestia 💪"},
		{name: "空文字列", input: "", want: ""},
		{name: "タグだけなら空", input: "<i></i>", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.Clean(tt.input); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestClean_TruncatesLongNames(t *testing.T) {
	sanitizer := NewNameSanitizer()

	got := sanitizer.Clean(strings.Repeat("à", MaxNameLength+10))
	if n := utf8.RuneCountInString(got); n != MaxNameLength {
		t.Errorf("rune count = %d, want %d", n, MaxNameLength)
	}
}

func TestClean_Idempotent(t *testing.T) {
	sanitizer := NewNameSanitizer()

	inputs := []string{"Marco", "<b>Tom</b> & Jerry", "D'Angelo"}
	for _, in := range inputs {
		once := sanitizer.Clean(in)
		if twice := sanitizer.Clean(once); twice != once {
			t.Errorf("Clean not idempotent for %q: %q → %q", in, once, twice)
		}
	}
}

func TestNameSanitizer_ImplementsInterface(t *testing.T) {
	var _ NameSanitizer = NewNameSanitizer()
}
