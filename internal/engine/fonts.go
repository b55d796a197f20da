package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// fontExtensions maps registrable font files to their CSS format() hint.
var fontExtensions = map[string]string{
	".ttf":   "truetype",
	".otf":   "opentype",
	".woff":  "woff",
	".woff2": "woff2",
}

// genericFamilies are always resolvable by the browser.
var genericFamilies = map[string]bool{
	"serif": true, "sans-serif": true, "monospace": true, "cursive": true,
	"fantasy": true, "system-ui": true, "ui-serif": true, "ui-sans-serif": true,
	"ui-monospace": true, "ui-rounded": true, "emoji": true, "math": true,
	"fangsong": true, "inherit": true, "initial": true, "unset": true,
	"revert": true,
}

// defaultFallback is the family Chrome falls back to for unknown names.
const defaultFallback = "sans-serif"

type fontFace struct {
	family string
	path   string
	format string
}

// fontSet is the set of fonts registered from the configured directories.
type fontSet struct {
	faces  []fontFace
	byName map[string]bool // lower-cased family names
}

// loadFonts scans dirs (non-recursively) for font files. Missing or
// unreadable directories are reported on diag and skipped.
func loadFonts(dirs []string, diag io.Writer) *fontSet {
	fs := &fontSet{byName: map[string]bool{}}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			fmt.Fprintf(diag, "warning: font directory not found: %s\n", dir)
			continue
		}
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			format, ok := fontExtensions[ext]
			if e.IsDir() || !ok {
				continue
			}
			stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
			path, err := filepath.Abs(filepath.Join(dir, e.Name()))
			if err != nil {
				continue
			}
			// "Inter-Bold.ttf" answers to both "Inter-Bold" and "Inter".
			names := []string{stem}
			if family, _, found := strings.Cut(stem, "-"); found && family != "" {
				names = append(names, family)
			}
			for _, name := range names {
				fs.faces = append(fs.faces, fontFace{family: name, path: path, format: format})
				fs.byName[strings.ToLower(name)] = true
			}
		}
	}
	return fs
}

// has reports whether family is registered or generic.
func (fs *fontSet) has(family string) bool {
	key := strings.ToLower(family)
	return genericFamilies[key] || fs.byName[key]
}

// css returns one @font-face rule per registered name.
func (fs *fontSet) css() string {
	var b strings.Builder
	for _, f := range fs.faces {
		fmt.Fprintf(&b, "@font-face { font-family: %q; src: url(%q) format(%q); }\n",
			f.family, fileURL(f.path), f.format)
	}
	return b.String()
}

// reportMissing writes one substitution line per family in declarations
// that cannot be resolved. The substitute is the next resolvable family in
// the same declaration, or the browser default.
func (fs *fontSet) reportMissing(declarations [][]string, diag io.Writer) {
	var reported []string
	for _, decl := range declarations {
		for i, family := range decl {
			key := strings.ToLower(family)
			if fs.has(family) || slices.Contains(reported, key) {
				continue
			}
			reported = append(reported, key)
			substitute := defaultFallback
			for _, next := range decl[i+1:] {
				if fs.has(next) {
					substitute = next
					break
				}
			}
			fmt.Fprintf(diag, "warning: font %q not found, substituting %q\n", family, substitute)
		}
	}
}
