package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		input string
		want  Reference
		str   string
	}{
		{"John 3:16", Reference{Book: "John", Chapter: 3, Verse: 16}, "John 3:16"},
		{"1 John 1:5", Reference{Book: "1 John", Chapter: 1, Verse: 5}, "1 John 1:5"},
		{"1John 1:5", Reference{Book: "1 John", Chapter: 1, Verse: 5}, "1 John 1:5"},
		{"John 3:16-18", Reference{Book: "John", Chapter: 3, Verse: 16, EndVerse: 18}, "John 3:16-18"},
		{"  Song of Solomon 2 : 1 ", Reference{Book: "Song of Solomon", Chapter: 2, Verse: 1}, "Song of Solomon 2:1"},
		{"Psalm 23", Reference{Book: "Psalm", Chapter: 23}, "Psalm 23"},
		{"John 3:16-16", Reference{Book: "John", Chapter: 3, Verse: 16}, "John 3:16"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseReference(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.str, got.String())
		})
	}
}

func TestParseReference_Invalid(t *testing.T) {
	for _, input := range []string{"", "John", "3:16", "John 0:1", "John 3:0", "John three"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseReference(input)
			assert.ErrorIs(t, err, ErrInvalidReference)
		})
	}
}

func TestReference_Stepping(t *testing.T) {
	t.Run("next verse", func(t *testing.T) {
		ref, _ := ParseReference("John 3:16")
		assert.Equal(t, "John 3:17", ref.Next().String())
	})

	t.Run("next after a range", func(t *testing.T) {
		ref, _ := ParseReference("John 3:16-18")
		assert.Equal(t, "John 3:19", ref.Next().String())
	})

	t.Run("prev verse", func(t *testing.T) {
		ref, _ := ParseReference("John 3:16")
		assert.Equal(t, "John 3:15", ref.Prev().String())
	})

	t.Run("prev floors at verse 1", func(t *testing.T) {
		ref, _ := ParseReference("Genesis 1:1")
		assert.Equal(t, "Genesis 1:1", ref.Prev().String())
	})

	t.Run("whole chapters step by chapter", func(t *testing.T) {
		ref, _ := ParseReference("Psalm 23")
		assert.Equal(t, "Psalm 24", ref.Next().String())
		assert.Equal(t, "Psalm 22", ref.Prev().String())

		first, _ := ParseReference("Psalm 1")
		assert.Equal(t, "Psalm 1", first.Prev().String())
	})
}
