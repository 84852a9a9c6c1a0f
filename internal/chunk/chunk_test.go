package chunk

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/common"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/entity"
)

func reconstruct(chunks []entity.TextChunk, opts Options) string {
	var b strings.Builder
	step := opts.Size - opts.Overlap
	for i, c := range chunks {
		r := []rune(c.Text)
		if i < len(chunks)-1 {
			r = r[:step]
		}
		b.WriteString(string(r))
	}
	return b.String()
}

func TestSplit_Reconstructs(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("abcdé€ 1AJ\n")
	for n := 0; n < 200; n++ {
		runes := make([]rune, rng.Intn(500))
		for i := range runes {
			runes[i] = alphabet[rng.Intn(len(alphabet))]
		}
		text := string(runes)
		size := 1 + rng.Intn(60)
		opts := Options{Size: size, Overlap: rng.Intn(size)}

		chunks, err := Split("f.txt", text, opts)
		require.NoError(t, err)
		assert.Equal(t, text, reconstruct(chunks, opts), "size=%d overlap=%d", opts.Size, opts.Overlap)
		for i, c := range chunks {
			assert.Equal(t, i, c.Index)
			assert.Equal(t, "f.txt", c.SourceFilename)
			assert.LessOrEqual(t, len([]rune(c.Text)), opts.Size)
		}
	}
}

func TestSplit_Offsets(t *testing.T) {
	chunks, err := Split("s", "abcdefghij", Options{Size: 4, Overlap: 1})
	require.NoError(t, err)
	got := make([]string, len(chunks))
	for i, c := range chunks {
		got[i] = c.Text
	}
	assert.Equal(t, []string{"abcd", "defg", "ghij"}, got)
}

func TestSplit_ShortAndEmpty(t *testing.T) {
	chunks, err := Split("s", "1AJ: 12000", DefaultOptions())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "1AJ: 12000", chunks[0].Text)

	chunks, err = Split("s", "", DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestWindows_InvalidOptions(t *testing.T) {
	for _, opts := range []Options{{Size: 10, Overlap: 10}, {Size: 10, Overlap: 11}, {Size: 0}, {Size: 5, Overlap: -1}} {
		_, err := Windows("s", "text", opts)
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrInvalidInput))
	}
}

func TestWindows_Restartable(t *testing.T) {
	seq, err := Windows("s", strings.Repeat("x", 25), Options{Size: 10, Overlap: 2})
	require.NoError(t, err)

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	assert.Equal(t, 3, count())
	assert.Equal(t, 3, count())

	for c := range seq {
		assert.Equal(t, 0, c.Index)
		break
	}
}
