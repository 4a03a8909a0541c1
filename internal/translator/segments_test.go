package translator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShield_RoundTrip(t *testing.T) {
	text := "Use `ansible.builtin.package` to install <b>nginx</b>.\n\n```yaml\n- name: x\n```\nDone."

	shielded, kept := shield(text)
	require.Len(t, kept, 4)
	assert.NotContains(t, shielded, "ansible.builtin.package")
	assert.NotContains(t, shielded, "```")
	assert.Equal(t, "```yaml\n- name: x\n```", kept[0])

	restored, lost := unshield(shielded, kept)
	assert.Equal(t, text, restored)
	assert.Zero(t, lost)
}

func TestUnshield_CountsLostMarkers(t *testing.T) {
	_, kept := shield("`a` and `b`")
	restored, lost := unshield("only [PC1] and [PC9]", kept)
	assert.Equal(t, "only `b` and [PC9]", restored)
	assert.Equal(t, 1, lost)
}

func TestSplit(t *testing.T) {
	t.Run("fits", func(t *testing.T) {
		segs := split("short", 100)
		require.Len(t, segs, 1)
		assert.Equal(t, "short", segs[0].text)
	})

	t.Run("paragraph boundary", func(t *testing.T) {
		text := strings.Repeat("a", 30) + "\n\n" + strings.Repeat("b", 30)
		segs := split(text, 40)
		require.Len(t, segs, 2)
		assert.Equal(t, strings.Repeat("a", 30), segs[0].text)
		assert.Equal(t, "\n\n", segs[0].sep)
		assert.Equal(t, text, join(segs, []string{segs[0].text, segs[1].text}))
	})

	t.Run("word boundary", func(t *testing.T) {
		text := "alpha beta gamma delta"
		segs := split(text, 12)
		for _, s := range segs {
			assert.LessOrEqual(t, len([]rune(s.text)), 12)
		}
		texts := make([]string, len(segs))
		for i, s := range segs {
			texts[i] = s.text
		}
		assert.Equal(t, text, join(segs, texts))
	})

	t.Run("hard cut", func(t *testing.T) {
		segs := split(strings.Repeat("ж", 25), 10)
		require.Len(t, segs, 3)
		assert.Equal(t, strings.Repeat("ж", 10), segs[0].text)
		assert.Equal(t, strings.Repeat("ж", 5), segs[2].text)
	})
}
