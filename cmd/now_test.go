package cmd

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"github.com/stylus/stylus/internal/session"
)

func TestPadToWidth(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		expected string
	}{
		{
			name:     "no padding when width is 0",
			input:    "Hello",
			width:    0,
			expected: "Hello",
		},
		{
			name:     "no padding when width is negative",
			input:    "Hello",
			width:    -1,
			expected: "Hello",
		},
		{
			name:     "pad short text with spaces",
			input:    "Hi",
			width:    10,
			expected: "Hi        ",
		},
		{
			name:     "exact width unchanged",
			input:    "Hello",
			width:    5,
			expected: "Hello",
		},
		{
			name:     "truncate long text with ellipsis",
			input:    "This is a very long string that needs truncation",
			width:    20,
			expected: "This is a very lo...",
		},
		{
			name:     "handle emoji correctly",
			input:    "🎵 Music",
			width:    15,
			expected: "🎵 Music       ", // emoji is 2 columns wide, so 8 total + 7 spaces
		},
		{
			name:     "truncate emoji text",
			input:    "🎵 This is a very long song title",
			width:    15,
			expected: "🎵 This is a...",
		},
		{
			name:     "handle unicode characters",
			input:    "日本語",
			width:    10,
			expected: "日本語    ",
		},
		{
			name:     "truncate unicode text",
			input:    "日本語とても長いテキスト",
			width:    10,
			expected: "日本語... ", // 日本語 is 6 columns, ... is 3, need 1 space
		},
		{
			name:     "empty string padding",
			input:    "",
			width:    5,
			expected: "     ",
		},
		{
			name:     "minimum width for truncation",
			input:    "Hello",
			width:    3,
			expected: "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := padToWidth(tt.input, tt.width)
			if result != tt.expected {
				t.Errorf("padToWidth(%q, %d) = %q, expected %q",
					tt.input, tt.width, result, tt.expected)
			}

			// Verify the result has the expected display width (if width > 0)
			if tt.width > 0 {
				resultWidth := runewidth.StringWidth(result)
				if resultWidth != tt.width {
					t.Errorf("padToWidth(%q, %d) produced width %d, expected %d",
						tt.input, tt.width, resultWidth, tt.width)
				}
			}
		})
	}
}

func TestMarqueeText(t *testing.T) {
	t.Run("short text is padded, not scrolled", func(t *testing.T) {
		got := marqueeText("Hi", 5, 2, "   ")
		if got != "Hi   " {
			t.Errorf("marqueeText = %q, expected %q", got, "Hi   ")
		}
	})

	t.Run("overlong text yields exact window width", func(t *testing.T) {
		// The window position depends on the clock, so assert the
		// invariant that holds for every position.
		text := "A very long title that does not fit anywhere"
		for _, width := range []int{8, 12, 30} {
			got := marqueeText(text, width, 2, "   ")
			if w := runewidth.StringWidth(got); w != width {
				t.Errorf("marqueeText width %d produced %d columns: %q", width, w, got)
			}
		}
	})

	t.Run("window content comes from the extended text", func(t *testing.T) {
		text := "abcdef"
		got := marqueeText(text, 4, 1, "|")
		extended := text + "|" + text
		if !strings.Contains(extended+extended, got) {
			t.Errorf("marqueeText window %q not part of %q", got, extended)
		}
	})
}

func TestFormatSong(t *testing.T) {
	view := session.SongView{
		Artist:   "Queen",
		Track:    "Bohemian Rhapsody",
		Album:    "A Night at the Opera",
		Duration: 354,
	}

	tests := []struct {
		name     string
		format   string
		expected string
		wantErr  bool
	}{
		{
			name:     "default format",
			format:   "{{.Artist}} - {{.Track}}",
			expected: "Queen - Bohemian Rhapsody",
		},
		{
			name:     "album format",
			format:   "{{.Track}} ({{.Album}})",
			expected: "Bohemian Rhapsody (A Night at the Opera)",
		},
		{
			name:    "invalid template",
			format:  "{{.Artist",
			wantErr: true,
		},
		{
			name:    "unknown field",
			format:  "{{.Nope}}",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatSong(view, tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("formatSong(%q) expected error, got %q", tt.format, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("formatSong(%q) failed: %v", tt.format, err)
			}
			if got != tt.expected {
				t.Errorf("formatSong(%q) = %q, expected %q", tt.format, got, tt.expected)
			}
		})
	}
}
