package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand_BraceStyle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		vars     map[string]any
		expected string
	}{
		{
			name:     "simple variable",
			input:    "<h1>${title}</h1>",
			vars:     map[string]any{"title": "Products"},
			expected: "<h1>Products</h1>",
		},
		{
			name:     "adjacent variables",
			input:    "${a}${b}${c}",
			vars:     map[string]any{"a": "1", "b": "2", "c": "3"},
			expected: "123",
		},
		{
			name:     "numeric value",
			input:    `<a href="/product/${id}">`,
			vars:     map[string]any{"id": 42},
			expected: `<a href="/product/42">`,
		},
		{
			name:     "spaces inside braces",
			input:    "${ name }",
			vars:     map[string]any{"name": "x"},
			expected: "x",
		},
		{
			name:     "dotted path",
			input:    "Hi ${user.name}",
			vars:     map[string]any{"user": map[string]any{"name": "Ada"}},
			expected: "Hi Ada",
		},
		{
			name:     "dotted path through string map",
			input:    "${params.id}",
			vars:     map[string]any{"params": map[string]string{"id": "7"}},
			expected: "7",
		},
		{
			name:     "nil value renders empty",
			input:    "[${v}]",
			vars:     map[string]any{"v": nil},
			expected: "[]",
		},
		{
			name:     "missing kept",
			input:    "${missing}",
			vars:     nil,
			expected: "${missing}",
		},
		{
			name:     "dollar style off by default",
			input:    "$price is $5",
			vars:     map[string]any{"price": "ignored"},
			expected: "$price is $5",
		},
		{
			name:     "empty input",
			input:    "",
			vars:     map[string]any{"a": 1},
			expected: "",
		},
	}

	exp := NewExpander()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := exp.Expand(tt.input, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExpand_Escaping(t *testing.T) {
	vars := map[string]any{
		"q":    `<script>"x" & 'y'</script>`,
		"html": Raw("<b>bold</b>"),
	}

	got := Expand("${q}|${html}", vars)
	assert.Equal(t, "&lt;script&gt;&#34;x&#34; &amp; &#39;y&#39;&lt;/script&gt;|<b>bold</b>", got)

	raw := NewExpander(WithEscape(false))
	got, err := raw.Expand("${q}", vars)
	require.NoError(t, err)
	assert.Equal(t, `<script>"x" & 'y'</script>`, got)
}

func TestExpand_MissingActions(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		exp := NewExpander(WithMissingAction(MissingEmpty))
		got, err := exp.Expand("a${x}b", nil)
		require.NoError(t, err)
		assert.Equal(t, "ab", got)
	})

	t.Run("error lists every name", func(t *testing.T) {
		exp := NewExpander(WithMissingAction(MissingError))
		got, err := exp.Expand("${x} ${y.z} ${ok}", map[string]any{"ok": 1})
		var uerr *UndefinedVariableError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, []string{"x", "y.z"}, uerr.Names)
		assert.Equal(t, "undefined variables: x, y.z", err.Error())
		assert.Equal(t, "${x} ${y.z} 1", got)
	})

	t.Run("single name message", func(t *testing.T) {
		exp := NewExpander(WithMissingAction(MissingError))
		_, err := exp.Expand("${x}", nil)
		assert.EqualError(t, err, "undefined variable: x")
	})

	t.Run("must expand panics", func(t *testing.T) {
		exp := NewExpander(WithMissingAction(MissingError))
		assert.Panics(t, func() { exp.MustExpand("${x}", nil) })
		assert.Equal(t, "1", exp.MustExpand("${x}", map[string]any{"x": 1}))
	})
}

func TestExpand_DollarStyle(t *testing.T) {
	exp := NewExpander(WithDollarStyle(true))
	got, err := exp.Expand("$name costs $5 and $nameX", map[string]any{"name": "tea"})
	require.NoError(t, err)
	assert.Equal(t, "tea costs $5 and $nameX", got)
}

func TestParseMissingAction(t *testing.T) {
	for in, want := range map[string]MissingAction{
		"":      MissingKeep,
		"keep":  MissingKeep,
		"empty": MissingEmpty,
		"error": MissingError,
	} {
		got, ok := ParseMissingAction(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseMissingAction("explode")
	assert.False(t, ok)
}

func TestVars(t *testing.T) {
	assert.Empty(t, Vars(nil))
	assert.Equal(t, map[string]any{"id": "7"}, Vars(map[string]string{"id": "7"}))

	in := map[string]any{"a": 1}
	out := Vars(in)
	out["b"] = 2
	assert.NotContains(t, in, "b", "input is copied")

	assert.Equal(t, map[string]any{"data": 3}, Vars(3))
}

func TestMerge(t *testing.T) {
	defaults := map[string]any{"title": "Home", "lang": "en"}
	vars := map[string]any{"title": "About"}

	got := Merge(defaults, vars)
	assert.Equal(t, map[string]any{"title": "About", "lang": "en"}, got)
	assert.Equal(t, "Home", defaults["title"])
}
