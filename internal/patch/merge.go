// Package patch applies search/replace edit blocks onto file content.
//
// Exact-text patches are fragile against content that drifted since the
// backend last saw it, so a search string that no longer matches is a
// soft miss rather than an error. Callers surface misses as warnings.
package patch

import (
	"strings"

	"github.com/shojbahmed330/OneClickStudio/internal/models"
)

// Apply applies blocks to content in list order. Each block replaces the
// first occurrence of its search string in the progressively-updated
// text. Blocks whose search string is not found (or is empty) leave the
// content unchanged and are counted as misses.
//
// Apply is pure: it has no side effects and the same inputs always
// produce the same output.
func Apply(content string, blocks []models.EditBlock) (string, int) {
	misses := 0
	for _, block := range blocks {
		if block.Search == "" {
			misses++
			continue
		}
		idx := strings.Index(content, block.Search)
		if idx < 0 {
			misses++
			continue
		}
		content = content[:idx] + block.Replace + content[idx+len(block.Search):]
	}
	return content, misses
}
