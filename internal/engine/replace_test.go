package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/textveil/textveil/internal/rules"
)

func TestFormatPreservingMask(t *testing.T) {
	cases := map[string]string{
		"123-45-6789":         "XXX-XX-XXXX",
		"4111 2222 3333 4444": "XXXX XXXX XXXX XXXX",
		"DE89370400440532013": "XXXXXXXXXXXXXXXXXXX",
		"abc.DEF-12":          "xxx.XXX-XX",
		"":                    "",
	}
	for input, want := range cases {
		assert.Equal(t, want, formatPreservingMask(input), "input %q", input)
	}
}

func TestAssemble(t *testing.T) {
	t.Run("NoMatches", func(t *testing.T) {
		assert.Equal(t, "unchanged", assemble("unchanged", nil))
	})

	t.Run("SinglePass", func(t *testing.T) {
		text := "aa SECRET bb SECRET cc"
		matches := []SelectedMatch{
			{Replacement: "[X]", byteStart: 3, byteEnd: 9},
			{Replacement: "[Y]", byteStart: 13, byteEnd: 19},
		}
		assert.Equal(t, "aa [X] bb [Y] cc", assemble(text, matches))
	})

	t.Run("MatchAtBoundaries", func(t *testing.T) {
		text := "SECRET middle SECRET"
		matches := []SelectedMatch{
			{Replacement: "[A]", byteStart: 0, byteEnd: 6},
			{Replacement: "[B]", byteStart: 14, byteEnd: 20},
		}
		assert.Equal(t, "[A] middle [B]", assemble(text, matches))
	})

	t.Run("MultiByteNeighborsPreserved", func(t *testing.T) {
		text := "héllo SECRET wörld"
		matches := []SelectedMatch{
			{Replacement: "[X]", byteStart: 7, byteEnd: 13},
		}
		assert.Equal(t, "héllo [X] wörld", assemble(text, matches))
	})
}

func TestRuneOffsets(t *testing.T) {
	t.Run("ASCII", func(t *testing.T) {
		offsets := newRuneOffsets("abc")
		assert.Equal(t, 0, offsets.at(0))
		assert.Equal(t, 2, offsets.at(2))
		assert.Equal(t, 3, offsets.at(3))
	})

	t.Run("MultiByte", func(t *testing.T) {
		// "héllo": h=1 byte, é=2 bytes, llo=3 bytes.
		offsets := newRuneOffsets("héllo")
		assert.Equal(t, 0, offsets.at(0))
		assert.Equal(t, 1, offsets.at(1))
		assert.Equal(t, 2, offsets.at(3))
		assert.Equal(t, 5, offsets.at(6))
	})

	t.Run("Empty", func(t *testing.T) {
		offsets := newRuneOffsets("")
		assert.Equal(t, 0, offsets.at(0))
	})
}

func TestMaskCountsRunesNotBytes(t *testing.T) {
	eng := newTestEngine()
	got := eng.renderReplacement(context.Background(), rules.CharacterMask('*'), "héllo", nil)
	assert.Equal(t, "*****", got)
}
