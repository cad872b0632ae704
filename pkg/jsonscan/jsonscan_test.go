package jsonscan

import "testing"

func TestFirstObject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bare object",
			input: `{"a":1}`,
			want:  `{"a":1}`,
		},
		{
			name:  "object wrapped in prose",
			input: `Sure! {"steps":[],"message":"Too vague to diagram."} Hope that helps!`,
			want:  `{"steps":[],"message":"Too vague to diagram."}`,
		},
		{
			name:  "nested objects",
			input: `x {"a":{"b":{"c":3}}} y`,
			want:  `{"a":{"b":{"c":3}}}`,
		},
		{
			name:  "braces inside string literal",
			input: `{"label":"if {x} then {y}"}`,
			want:  `{"label":"if {x} then {y}"}`,
		},
		{
			name:  "escaped quote inside string",
			input: `{"label":"she said \"hi {there}\""} trailing`,
			want:  `{"label":"she said \"hi {there}\""}`,
		},
		{
			name:  "escaped backslash before closing quote",
			input: `{"path":"C:\\"} rest`,
			want:  `{"path":"C:\\"}`,
		},
		{
			name:  "truncated object",
			input: `{"steps":[{"from":`,
			want:  "",
		},
		{
			name:  "no object at all",
			input: "just a plain sentence",
			want:  "",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "only first balanced object returned",
			input: `{"a":1} {"b":2}`,
			want:  `{"a":1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FirstObject(tt.input); got != tt.want {
				t.Errorf("FirstObject(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFirstArray(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare array", `[1,2,3]`, `[1,2,3]`},
		{"array in prose", `Here: [{"id":"a"}] done`, `[{"id":"a"}]`},
		{"brackets inside string", `["a[b]c"]`, `["a[b]c"]`},
		{"truncated array", `[1,2`, ""},
		{"no array", "nothing here", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FirstArray(tt.input); got != tt.want {
				t.Errorf("FirstArray(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFirstValue(t *testing.T) {
	t.Parallel()

	if got := FirstValue(`text [1,2] then {"a":1}`); got != `[1,2]` {
		t.Errorf("expected array picked when it opens first, got %q", got)
	}
	if got := FirstValue(`{"a":[1,2]} tail`); got != `{"a":[1,2]}` {
		t.Errorf("expected object picked when it opens first, got %q", got)
	}
	if got := FirstValue("none"); got != "" {
		t.Errorf("expected empty result, got %q", got)
	}
}
