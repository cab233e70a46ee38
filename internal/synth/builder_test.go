package synth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shojbahmed330/OneClickStudio/internal/models"
)

func TestBuild_EmptyStoreYieldsPlaceholder(t *testing.T) {
	doc := Build(map[string]string{}, "app/index.html", models.ProjectConfig{})

	assert.Contains(t, doc, "<!DOCTYPE html>")
	assert.Contains(t, doc, "System Initializing...")
	assert.Contains(t, doc, "</html>")
}

func TestBuild_InlinesStylesAndBody(t *testing.T) {
	files := map[string]string{
		"app/index.html": "<div>hi</div>",
		"app/style.css":  "body{color:red}",
	}

	doc := Build(files, "app/index.html", models.ProjectConfig{})

	assert.Contains(t, doc, "color:red")
	assert.Contains(t, doc, "/* app/style.css */")
	assert.Contains(t, doc, "<div>hi</div>")
}

func TestBuild_WrapsScriptsInAttributableTryCatch(t *testing.T) {
	files := map[string]string{
		"app/index.html": "<div id=\"root\"></div>",
		"app/main.js":    "console.log('main');",
		"app/util.js":    "console.log('util');",
	}

	doc := Build(files, "app/index.html", models.ProjectConfig{})

	assert.Contains(t, doc, "// --- FILE: app/main.js ---")
	assert.Contains(t, doc, "// --- FILE: app/util.js ---")
	assert.Contains(t, doc, `console.error("Error in app/main.js:", e); throw e;`)
	// Sorted order keeps the output stable.
	assert.Less(t, strings.Index(doc, "app/main.js ---"), strings.Index(doc, "app/util.js ---"))
}

func TestBuild_StripsLocalRefsKeepsAbsolute(t *testing.T) {
	files := map[string]string{
		"app/index.html": `<html><head>
			<link rel="stylesheet" href="style.css">
			<link rel="stylesheet" href="https://fonts.example.com/f.css">
			<script src="main.js"></script>
			<script src="https://cdn.example.com/lib.js"></script>
		</head><body></body></html>`,
	}

	doc := Build(files, "app/index.html", models.ProjectConfig{})

	assert.NotContains(t, doc, `href="style.css"`)
	assert.NotContains(t, doc, `src="main.js"`)
	assert.Contains(t, doc, "https://fonts.example.com/f.css")
	assert.Contains(t, doc, "https://cdn.example.com/lib.js")
}

func TestBuild_SplicesIntoExistingShell(t *testing.T) {
	files := map[string]string{
		"app/index.html": "<html><head><title>x</title></head><body><p>app</p></body></html>",
		"app/main.js":    "let a = 1;",
	}

	doc := Build(files, "app/index.html", models.ProjectConfig{})

	// Head injected before </head>, script before </body>.
	assert.Less(t, strings.Index(doc, "viewport"), strings.Index(doc, "</head>"))
	assert.Less(t, strings.Index(doc, "let a = 1;"), strings.Index(doc, "</body>"))
	// Placeholder wrapper must not appear when a shell exists.
	assert.NotContains(t, doc, `<div id="app-root">`)
}

func TestBuild_SynthesizesHeadWhenMissing(t *testing.T) {
	files := map[string]string{
		"app/index.html": "<html><body><p>no head</p></body></html>",
	}

	doc := Build(files, "app/index.html", models.ProjectConfig{})

	assert.Contains(t, doc, "<head>")
	assert.Contains(t, doc, "viewport")
	assert.Contains(t, doc, "<p>no head</p>")
}

func TestBuild_SynthesizedHeadInjectedOnceBeforeFirstBody(t *testing.T) {
	files := map[string]string{
		"app/index.html": `<html><body><script>document.write("<body>");</script><p>app</p></body></html>`,
	}

	doc := Build(files, "app/index.html", models.ProjectConfig{})

	// The literal "<body>" inside the script must not attract a second
	// injection.
	assert.Equal(t, 1, strings.Count(doc, "<head>"))
	assert.Equal(t, 1, strings.Count(doc, "</head>"))
	assert.Less(t, strings.Index(doc, "<head>"), strings.Index(doc, "<body>"))
}

func TestBuild_AppendsScriptWhenBodyCloseMissing(t *testing.T) {
	files := map[string]string{
		"app/index.html": "<html><head></head><body><p>open ended</p>",
		"app/main.js":    "let b = 2;",
	}

	doc := Build(files, "app/index.html", models.ProjectConfig{})

	assert.Contains(t, doc, "let b = 2;")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(doc), "</script>"))
}

func TestBuild_BackendDescriptor(t *testing.T) {
	files := map[string]string{"app/index.html": "<div></div>"}

	t.Run("absent", func(t *testing.T) {
		doc := Build(files, "app/index.html", models.ProjectConfig{})
		assert.Contains(t, doc, "window.StudioDatabase = null")
	})

	t.Run("present", func(t *testing.T) {
		cfg := models.ProjectConfig{BackendURL: "https://db.example.com", BackendKey: "anon-key"}
		doc := Build(files, "app/index.html", cfg)
		assert.Contains(t, doc, `"https://db.example.com"`)
		assert.Contains(t, doc, `"anon-key"`)
		assert.Contains(t, doc, "Database Bridge: Active")
	})
}

func TestBuild_RuntimeBridgeAlwaysPresent(t *testing.T) {
	doc := Build(map[string]string{"app/index.html": "<div></div>"}, "app/index.html", models.ProjectConfig{})

	assert.Contains(t, doc, "RUNTIME_ERROR")
	assert.Contains(t, doc, "window.parent.postMessage")
	assert.Contains(t, doc, "window.NativeBridge")
	assert.Contains(t, doc, "getUsageStats")
}

func TestBuild_Idempotent(t *testing.T) {
	files := map[string]string{
		"app/index.html": "<div>stable</div>",
		"app/a.css":      "p{margin:0}",
		"app/b.css":      "h1{padding:0}",
		"app/z.js":       "void 0;",
		"app/a.js":       "void 1;",
	}

	first := Build(files, "app/index.html", models.ProjectConfig{})
	second := Build(files, "app/index.html", models.ProjectConfig{})

	assert.Equal(t, first, second)
}
