package summary

import "testing"

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{
			name: "bare object",
			text: `{"title": "Small Wins"}`,
			want: `{"title": "Small Wins"}`,
			ok:   true,
		},
		{
			name: "surrounded by prose",
			text: "Sure! Here is your summary:\n{\"summary\": \"You talked about work.\"}\nHope that helps.",
			want: `{"summary": "You talked about work."}`,
			ok:   true,
		},
		{
			name: "fenced code block",
			text: "```json\n{\"title\": \"Fenced\"}\n```",
			want: `{"title": "Fenced"}`,
			ok:   true,
		},
		{
			name: "nested object",
			text: `prefix {"a": {"b": "c"}} suffix`,
			want: `{"a": {"b": "c"}}`,
			ok:   true,
		},
		{
			name: "braces inside strings",
			text: `{"text": "a } inside"} trailing`,
			want: `{"text": "a } inside"}`,
			ok:   true,
		},
		{
			name: "escaped quotes",
			text: `{"text": "she said \"}\" loudly"}`,
			want: `{"text": "she said \"}\" loudly"}`,
			ok:   true,
		},
		{
			name: "no object",
			text: "just plain prose with no json at all",
			ok:   false,
		},
		{
			name: "unbalanced",
			text: `{"title": "never closed`,
			ok:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tc.text)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
