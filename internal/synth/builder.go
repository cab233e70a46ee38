// Package synth assembles a project's file store into one self-contained
// HTML document for an isolated preview frame.
//
// Build is deterministic and never fails: missing entry files produce a
// placeholder shell and missing stylesheets or scripts simply yield empty
// blocks. The output needs no bundler; it is dropped directly into an
// embedded frame.
package synth

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shojbahmed330/OneClickStudio/internal/models"
)

var (
	linkTagPattern   = regexp.MustCompile(`(?i)<link[^>]+href=["']([^"']+)["'][^>]*>`)
	scriptTagPattern = regexp.MustCompile(`(?i)<script[^>]+src=["']([^"']+)["'][^>]*>\s*</script>`)
	absoluteURL      = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.-]*://`)
	htmlTagPresent   = regexp.MustCompile(`(?i)<html`)
	bodyTagOpen      = regexp.MustCompile(`(?i)<body`)
)

const placeholderBody = `<div id="app" style="color: #52525b; font-size: 10px; font-weight: 900; text-transform: uppercase; letter-spacing: 0.3em; display: flex; align-items: center; justify-content: center; height: 100vh; background: #09090b;">System Initializing...</div>`

const tailwindCDN = `<script src="https://cdn.tailwindcss.com"></script>`

// Build assembles the final document from the project files. Local asset
// references in the entry document are stripped because every local
// stylesheet and script is inlined; cross-origin absolute URLs are kept.
func Build(files map[string]string, entryPath string, cfg models.ProjectConfig) string {
	entry, ok := files[entryPath]
	if !ok || entry == "" {
		entry = placeholderBody
	}

	processed := stripLocalRefs(entry)

	head := headInjection(concatStylesheets(files), cfg)
	script := fmt.Sprintf("<script>\n%s\n</script>", concatScripts(files))

	if !htmlTagPresent.MatchString(processed) {
		return fmt.Sprintf(`<!DOCTYPE html><html lang="en"><head>%s</head><body><div id="app-root">%s</div>%s</body></html>`,
			head, processed, script)
	}

	if strings.Contains(processed, "</head>") {
		processed = strings.Replace(processed, "</head>", head+"</head>", 1)
	} else if loc := bodyTagOpen.FindStringIndex(processed); loc != nil {
		// Synthesize a head before the first body tag only; later matches
		// may be literal strings inside scripts or attributes.
		processed = processed[:loc[0]] + "<head>" + head + "</head>" + processed[loc[0]:]
	}

	if strings.Contains(processed, "</body>") {
		processed = strings.Replace(processed, "</body>", script+"</body>", 1)
	} else {
		processed = processed + script
	}

	return processed
}

// stripLocalRefs removes link and script tags referencing local project
// paths. Absolute (schemed) URLs are external resources and survive.
func stripLocalRefs(html string) string {
	html = linkTagPattern.ReplaceAllStringFunc(html, func(tag string) string {
		if m := linkTagPattern.FindStringSubmatch(tag); len(m) > 1 && absoluteURL.MatchString(m[1]) {
			return tag
		}
		return ""
	})
	return scriptTagPattern.ReplaceAllStringFunc(html, func(tag string) string {
		if m := scriptTagPattern.FindStringSubmatch(tag); len(m) > 1 && absoluteURL.MatchString(m[1]) {
			return tag
		}
		return ""
	})
}

// concatStylesheets joins every .css file into one block, each prefixed
// with a path comment for traceability. Paths are sorted so the output is
// stable across runs.
func concatStylesheets(files map[string]string) string {
	var parts []string
	for _, path := range sortedPathsWithSuffix(files, ".css") {
		parts = append(parts, fmt.Sprintf("/* %s */\n%s", path, files[path]))
	}
	return strings.Join(parts, "\n")
}

// concatScripts joins every .js file into one block. Each file's code is
// wrapped in a try/catch that logs the originating path and rethrows, so
// a fault is attributable to its source file. The rethrow still aborts
// the shared block; entries after a failing file will not execute.
func concatScripts(files map[string]string) string {
	var parts []string
	for _, path := range sortedPathsWithSuffix(files, ".js") {
		parts = append(parts, fmt.Sprintf("// --- FILE: %s ---\ntry {\n%s\n} catch(e) { console.error(\"Error in %s:\", e); throw e; }\n",
			path, files[path], path))
	}
	return strings.Join(parts, "\n")
}

func sortedPathsWithSuffix(files map[string]string, suffix string) []string {
	var paths []string
	for path := range files {
		if strings.HasSuffix(path, suffix) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

// headInjection builds the fixed runtime head: viewport and charset
// metas, the dark-baseline CSS reset, the inlined project styles, and the
// runtime bridge script.
func headInjection(css string, cfg models.ProjectConfig) string {
	return fmt.Sprintf(`
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0, maximum-scale=1.0, user-scalable=no, viewport-fit=cover">
    %s
    <style>
      * { box-sizing: border-box; -webkit-tap-highlight-color: transparent; }
      :root { --safe-top: env(safe-area-inset-top); --safe-bottom: env(safe-area-inset-bottom); }
      html, body { height: 100dvh; width: 100vw; margin: 0; padding: 0; overflow-x: hidden; background-color: #09090b !important; color: #f4f4f5; }
      body { font-family: sans-serif; display: flex; flex-direction: column; padding-top: var(--safe-top); padding-bottom: var(--safe-bottom); }
      #app-root, #root, #app { flex: 1; display: flex; flex-direction: column; height: 100%%; overflow-y: auto; overflow-x: hidden; position: relative; }
      ::-webkit-scrollbar { display: none; }
      %s
    </style>
    %s
  `, tailwindCDN, css, bridgeScript(cfg))
}

// bridgeScript builds the runtime bridge injected before application
// code: error forwarding to the host frame, the mock native capability
// surface, and the backend connectivity descriptor. Credentials from the
// config are forwarded as-is, never validated here.
func bridgeScript(cfg models.ProjectConfig) string {
	database := `window.StudioDatabase = null; console.log('OneClick Database Bridge: Offline');`
	if cfg.BackendURL != "" {
		database = fmt.Sprintf(`
      window.StudioDatabase = {
        url: %q,
        key: %q
      };
      console.log('OneClick Database Bridge: Active');`, cfg.BackendURL, cfg.BackendKey)
	}

	return fmt.Sprintf(`
    <script>
      // Database Bridge Injection
      %s

      // Advanced Error Reporting System for Self-Healing
      window.onerror = function(message, source, lineno, colno, error) {
        window.parent.postMessage({
          type: 'RUNTIME_ERROR',
          error: {
            message: message,
            line: lineno,
            column: colno,
            stack: error && error.stack ? error.stack : '',
            source: source ? source.split('/').pop() : 'index.html'
          }
        }, '*');
        return false;
      };

      // Native Bridge Simulation
      window.NativeBridge = {
        getUsageStats: () => Promise.resolve({ screenTime: '4h 20m', topApp: 'Social Media' }),
        requestPermission: async (p) => {
           console.log('Requesting Permission:', p);
           return Promise.resolve(true);
        },
        showToast: (m) => { alert('App Message: ' + m); },
        vibrate: (pattern = 200) => { if (window.navigator.vibrate) window.navigator.vibrate(pattern); }
      };
    </script>
  `, database)
}
