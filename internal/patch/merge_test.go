package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shojbahmed330/OneClickStudio/internal/models"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		blocks         []models.EditBlock
		expected       string
		expectedMisses int
	}{
		{
			name:    "single_replacement",
			content: "const count = 0;",
			blocks: []models.EditBlock{
				{Search: "count = 0", Replace: "count = 10"},
			},
			expected: "const count = 10;",
		},
		{
			name:    "first_occurrence_only",
			content: "a b a b",
			blocks: []models.EditBlock{
				{Search: "a", Replace: "x"},
			},
			expected: "x b a b",
		},
		{
			name:    "blocks_apply_in_order_against_updated_text",
			content: "hello world",
			blocks: []models.EditBlock{
				{Search: "hello", Replace: "goodbye"},
				{Search: "goodbye world", Replace: "goodbye moon"},
			},
			expected: "goodbye moon",
		},
		{
			name:    "missed_search_is_noop",
			content: "function main() {}",
			blocks: []models.EditBlock{
				{Search: "does not exist", Replace: "anything"},
			},
			expected:       "function main() {}",
			expectedMisses: 1,
		},
		{
			name:    "miss_does_not_block_later_blocks",
			content: "one two three",
			blocks: []models.EditBlock{
				{Search: "zero", Replace: "ZERO"},
				{Search: "two", Replace: "TWO"},
			},
			expected:       "one TWO three",
			expectedMisses: 1,
		},
		{
			name:    "empty_search_counts_as_miss",
			content: "body { color: red }",
			blocks: []models.EditBlock{
				{Search: "", Replace: "injected"},
			},
			expected:       "body { color: red }",
			expectedMisses: 1,
		},
		{
			name:    "replace_with_empty_deletes",
			content: "keep drop keep",
			blocks: []models.EditBlock{
				{Search: " drop", Replace: ""},
			},
			expected: "keep keep",
		},
		{
			name:     "no_blocks",
			content:  "unchanged",
			blocks:   nil,
			expected: "unchanged",
		},
		{
			name:    "multiline_search",
			content: "<div>\n  <p>old</p>\n</div>",
			blocks: []models.EditBlock{
				{Search: "<p>old</p>", Replace: "<p>new</p>\n  <p>extra</p>"},
			},
			expected: "<div>\n  <p>new</p>\n  <p>extra</p>\n</div>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, misses := Apply(tt.content, tt.blocks)
			assert.Equal(t, tt.expected, result)
			assert.Equal(t, tt.expectedMisses, misses)
		})
	}
}

func TestApplyIsPure(t *testing.T) {
	content := "x = 1"
	blocks := []models.EditBlock{{Search: "1", Replace: "2"}}

	first, _ := Apply(content, blocks)
	second, _ := Apply(content, blocks)

	assert.Equal(t, first, second)
	assert.Equal(t, "x = 1", content)
}
