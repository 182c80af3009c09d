package formatting_test

import (
	"errors"
	"testing"

	"github.com/JaimeStill/gather/pkg/formatting"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    formatting.Size
		wantErr bool
	}{
		{"bare bytes", "1024", 1024, false},
		{"bytes unit", "512B", 512, false},
		{"megabytes", "50MB", 50 * 1024 * 1024, false},
		{"lowercase unit", "10mb", 10 * 1024 * 1024, false},
		{"with space", "100 MB", 100 * 1024 * 1024, false},
		{"fractional", "1.5KB", 1536, false},
		{"zero", "0", 0, false},
		{"empty string", "", 0, true},
		{"unknown unit", "50XX", 0, true},
		{"negative", "-5MB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.ParseSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestSizeText(t *testing.T) {
	tests := []struct {
		size formatting.Size
		want string
	}{
		{0, "0B"},
		{500, "500B"},
		{1024, "1KB"},
		{20 * 1024 * 1024, "20MB"},
		{1536 * 1024, "1.5MB"},
	}

	for _, tt := range tests {
		text, _ := tt.size.MarshalText()
		if string(text) != tt.want {
			t.Errorf("MarshalText(%d) = %s, want %s", tt.size, text, tt.want)
		}

		var back formatting.Size
		if err := back.UnmarshalText(text); err != nil {
			t.Fatal(err)
		}
		if back != tt.size {
			t.Errorf("UnmarshalText(%s) = %d, want %d", text, back, tt.size)
		}
	}
}

type sample struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  sample
	}{
		{"direct", `{"name":"test","value":42}`, sample{"test", 42}},
		{"padded", "  {\"name\":\"padded\",\"value\":1}  ", sample{"padded", 1}},
		{"fenced", "```json\n{\"name\":\"fenced\",\"value\":2}\n```", sample{"fenced", 2}},
		{"bare fence", "```\n{\"name\":\"bare\",\"value\":3}\n```", sample{"bare", 3}},
		{"prose", "Here is the result: {\"name\":\"prose\",\"value\":4} hope it helps", sample{"prose", 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.Parse[sample](tt.input)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}

	for _, bad := range []string{"", "not json at all", "{broken"} {
		if _, err := formatting.Parse[sample](bad); !errors.Is(err, formatting.ErrParseFailed) {
			t.Errorf("Parse(%q): got %v", bad, err)
		}
	}
}
