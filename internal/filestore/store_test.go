package filestore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shojbahmed330/OneClickStudio/internal/models"
)

func TestStore_ApplyWholeFiles(t *testing.T) {
	store := New(DefaultGuardPolicy())

	result := store.Apply(Update{
		Files: map[string]string{
			"app/index.html": "<div>hi</div>",
			"app/main.js":    "console.log('x');",
		},
	})

	assert.Len(t, result.Applied, 2)
	assert.Empty(t, result.Rejected)

	content, ok := store.Get("app/index.html")
	require.True(t, ok)
	assert.Equal(t, "<div>hi</div>", content)
}

func TestStore_ApplyDiffs(t *testing.T) {
	store := New(DefaultGuardPolicy())
	store.Write("app/main.js", "const x = 1;\nconst y = 2;")

	result := store.Apply(Update{
		Diffs: map[string][]models.EditBlock{
			"app/main.js": {
				{Search: "const x = 1;", Replace: "const x = 100;"},
			},
		},
	})

	assert.Contains(t, result.Applied, "app/main.js")
	content, _ := store.Get("app/main.js")
	assert.Equal(t, "const x = 100;\nconst y = 2;", content)
}

func TestStore_PatchMissIsSoftWarning(t *testing.T) {
	store := New(DefaultGuardPolicy())
	store.Write("app/main.js", "const x = 1;")

	result := store.Apply(Update{
		Diffs: map[string][]models.EditBlock{
			"app/main.js": {
				{Search: "not present anywhere", Replace: "ignored"},
			},
		},
	})

	assert.Empty(t, result.Applied)
	assert.Equal(t, 1, result.PatchMisses["app/main.js"])

	content, _ := store.Get("app/main.js")
	assert.Equal(t, "const x = 1;", content)
}

func TestStore_GuardRejectsSuspectedTruncation(t *testing.T) {
	store := New(DefaultGuardPolicy())
	existing := strings.Repeat("function handler() { /* real logic */ }\n", 20)
	store.Write("app/main.js", existing)

	result := store.Apply(Update{
		Files: map[string]string{
			"app/main.js": "// TODO: rest of the file",
		},
		Automatic: true,
	})

	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "app/main.js", result.Rejected[0].Path)
	assert.True(t, result.AllRejected())

	// Pre-update content must be retained.
	content, _ := store.Get("app/main.js")
	assert.Equal(t, existing, content)
}

func TestStore_GuardAllowsManualOverwrite(t *testing.T) {
	store := New(DefaultGuardPolicy())
	store.Write("app/main.js", strings.Repeat("x", 500))

	result := store.Apply(Update{
		Files:     map[string]string{"app/main.js": "short"},
		Automatic: false,
	})

	assert.Empty(t, result.Rejected)
	content, _ := store.Get("app/main.js")
	assert.Equal(t, "short", content)
}

func TestStore_GuardAllowsSmallExistingFiles(t *testing.T) {
	store := New(DefaultGuardPolicy())
	store.Write("app/style.css", "body{}")

	result := store.Apply(Update{
		Files:     map[string]string{"app/style.css": "body{color:red}"},
		Automatic: true,
	})

	assert.Empty(t, result.Rejected)
	content, _ := store.Get("app/style.css")
	assert.Equal(t, "body{color:red}", content)
}

func TestStore_GuardRejectionDoesNotBlockBatch(t *testing.T) {
	store := New(DefaultGuardPolicy())
	store.Write("app/main.js", strings.Repeat("x", 500))

	result := store.Apply(Update{
		Files: map[string]string{
			"app/main.js":    "truncated",
			"app/style.css":  "body{color:blue}",
			"app/index.html": "<html></html>",
		},
		Automatic: true,
	})

	assert.Len(t, result.Rejected, 1)
	assert.Len(t, result.Applied, 2)
	assert.False(t, result.AllRejected())
}

func TestStore_GuardPolicyConfigurable(t *testing.T) {
	store := New(GuardPolicy{MinProtectedLen: 10, MaxSuspectLen: 5})
	store.Write("a.js", "0123456789abc")

	result := store.Apply(Update{
		Files:     map[string]string{"a.js": "tiny"},
		Automatic: true,
	})

	assert.Len(t, result.Rejected, 1)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	store := New(DefaultGuardPolicy())
	store.Write("a.js", "original")

	snapshot := store.Snapshot()
	snapshot["a.js"] = "mutated"
	snapshot["b.js"] = "new"

	content, _ := store.Get("a.js")
	assert.Equal(t, "original", content)
	assert.Equal(t, 1, store.Len())
}

func TestStore_RenameAndDelete(t *testing.T) {
	store := New(DefaultGuardPolicy())
	store.Write("old.js", "content")

	require.True(t, store.Rename("old.js", "new.js"))
	_, ok := store.Get("old.js")
	assert.False(t, ok)
	content, ok := store.Get("new.js")
	require.True(t, ok)
	assert.Equal(t, "content", content)

	assert.False(t, store.Rename("missing.js", "x.js"))

	store.Delete("new.js")
	assert.Equal(t, 0, store.Len())
}

func TestStore_Restore(t *testing.T) {
	store := New(DefaultGuardPolicy())
	store.Write("a.js", "current")

	store.Restore(map[string]string{"b.js": "rolled back"})

	_, ok := store.Get("a.js")
	assert.False(t, ok)
	content, _ := store.Get("b.js")
	assert.Equal(t, "rolled back", content)
}
