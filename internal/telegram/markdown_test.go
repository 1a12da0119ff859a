package telegram

import "testing"

func TestEscapeMarkdownV2(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain_identifier",
			in:   "new_york",
			want: "new\\_york",
		},
		{
			name: "special_chars",
			in:   "_*[]()~`>#+-=|{}.!\\",
			want: "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!\\\\",
		},
		{
			name: "non_specials",
			in:   "hello world",
			want: "hello world",
		},
		{
			name: "escaped_once_not_twice",
			in:   "a.b",
			want: "a\\.b",
		},
		{
			name: "unicode_untouched",
			in:   "नमस्ते 🙏",
			want: "नमस्ते 🙏",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := EscapeMarkdownV2(tt.in); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
