package analysis

import (
	"path"
	"strings"
)

// allowedExtensions lists file extensions considered during analysis:
// common source, manifest, markup, and documentation types.
var allowedExtensions = map[string]bool{
	".go":     true,
	".py":     true,
	".js":     true,
	".jsx":    true,
	".ts":     true,
	".tsx":    true,
	".java":   true,
	".kt":     true,
	".rs":     true,
	".rb":     true,
	".php":    true,
	".c":      true,
	".h":      true,
	".cc":     true,
	".cpp":    true,
	".hpp":    true,
	".cs":     true,
	".swift":  true,
	".scala":  true,
	".sh":     true,
	".sql":    true,
	".proto":  true,
	".html":   true,
	".css":    true,
	".scss":   true,
	".vue":    true,
	".svelte": true,
	".md":     true,
	".rst":    true,
	".txt":    true,
	".json":   true,
	".yaml":   true,
	".yml":    true,
	".toml":   true,
	".xml":    true,
	".cfg":    true,
	".ini":    true,
}

// allowedFilenames lists exact names accepted regardless of extension,
// mostly extensionless manifests and build files.
var allowedFilenames = map[string]bool{
	"dockerfile":     true,
	"makefile":       true,
	"rakefile":       true,
	"gemfile":        true,
	"procfile":       true,
	"vagrantfile":    true,
	"jenkinsfile":    true,
	"license":        true,
	"readme":         true,
	"cmakelists.txt": true,
	".gitignore":     true,
	".dockerignore":  true,
	".editorconfig":  true,
}

// skipDirs contains directory names whose contents are excluded from
// analysis regardless of extension: build output, dependency caches,
// version-control metadata, and compiled artifact directories.
var skipDirs = map[string]bool{
	".git":             true,
	".hg":              true,
	".svn":             true,
	"node_modules":     true,
	"vendor":           true,
	"bower_components": true,
	"__pycache__":      true,
	".venv":            true,
	"venv":             true,
	"env":              true,
	"build":            true,
	"dist":             true,
	"out":              true,
	"target":           true,
	"bin":              true,
	"obj":              true,
	".idea":            true,
	".vscode":          true,
	".next":            true,
	".nuxt":            true,
	"coverage":         true,
	".cache":           true,
	".gradle":          true,
	".terraform":       true,
}

// RelevantFile reports whether a repository path should be considered
// during analysis. It is a pure predicate over the path string: a path
// under any denylisted directory segment is always rejected, otherwise the
// file is accepted only on an exact filename or extension match. Default
// is reject.
func RelevantFile(p string) bool {
	p = strings.Trim(strings.ReplaceAll(p, "\\", "/"), "/")
	if p == "" {
		return false
	}

	segments := strings.Split(p, "/")
	for _, seg := range segments[:len(segments)-1] {
		if skipDirs[strings.ToLower(seg)] {
			return false
		}
	}

	base := strings.ToLower(path.Base(p))
	if allowedFilenames[base] {
		return true
	}
	return allowedExtensions[path.Ext(base)]
}
