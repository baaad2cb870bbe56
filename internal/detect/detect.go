// Package detect classifies a cloned workspace: languages, frameworks,
// test frameworks, and build systems. Classification is best-effort and
// never fatal: on any error it degrades to the unknown classification.
package detect

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/autocodit-io/runner/internal/models"
)

// ExcludedDirs are skipped during any workspace walk: VCS, build output,
// and dependency directories.
var ExcludedDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	".idea":        true,
	".vscode":      true,
}

// languageByExt maps file extensions to language names.
var languageByExt = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".rs":    "rust",
	".rb":    "ruby",
	".php":   "php",
	".c":     "c",
	".cpp":   "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".kt":    "kotlin",
}

// Detector inspects a workspace directory.
type Detector struct{}

// NewDetector creates a workspace detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect classifies the repository rooted at dir. Errors during the walk
// reduce the result, they never abort it: a missing or unreadable tree
// yields the zero ("unknown") classification.
func (d *Detector) Detect(dir string) *models.ProjectInfo {
	info := &models.ProjectInfo{}

	counts := map[string]int{}
	_ = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if entry.IsDir() {
			if ExcludedDirs[entry.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		info.FileCount++

		if lang, ok := languageByExt[filepath.Ext(entry.Name())]; ok {
			counts[lang]++
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr == nil {
			lower := strings.ToLower(rel)
			if strings.Contains(lower, "test") || strings.Contains(lower, "spec") {
				info.HasTests = true
			}
			if strings.HasPrefix(rel, filepath.Join(".github", "workflows")) ||
				rel == ".gitlab-ci.yml" || rel == "Jenkinsfile" ||
				strings.HasPrefix(rel, ".circleci"+string(filepath.Separator)) {
				info.HasCI = true
			}
		}
		return nil
	})

	info.Languages = sortedByCount(counts)
	d.detectManifests(dir, info)

	return info
}

// detectManifests inspects dependency manifests for frameworks, test
// frameworks, and build systems.
func (d *Detector) detectManifests(dir string, info *models.ProjectInfo) {
	if pkg := readPackageJSON(filepath.Join(dir, "package.json")); pkg != nil {
		info.BuildSystems = append(info.BuildSystems, "npm")
		if exists(filepath.Join(dir, "yarn.lock")) {
			info.BuildSystems = append(info.BuildSystems, "yarn")
		}
		if exists(filepath.Join(dir, "pnpm-lock.yaml")) {
			info.BuildSystems = append(info.BuildSystems, "pnpm")
		}

		for dep, fw := range map[string]string{
			"react":   "react",
			"vue":     "vue",
			"next":    "nextjs",
			"express": "express",
			"svelte":  "svelte",
		} {
			if pkg.hasDep(dep) {
				info.Frameworks = append(info.Frameworks, fw)
			}
		}
		for dep, fw := range map[string]string{
			"jest":    "jest",
			"vitest":  "vitest",
			"mocha":   "mocha",
			"ava":     "ava",
			"cypress": "cypress",
		} {
			if pkg.hasDep(dep) {
				info.TestFrameworks = append(info.TestFrameworks, fw)
			}
		}
		// A test script counts as a recognized runner even without a known
		// framework dependency.
		if pkg.Scripts["test"] != "" && len(info.TestFrameworks) == 0 {
			info.TestFrameworks = append(info.TestFrameworks, "npm-test")
		}
	}

	if exists(filepath.Join(dir, "go.mod")) {
		info.BuildSystems = append(info.BuildSystems, "go")
		info.TestFrameworks = append(info.TestFrameworks, "go-test")
	}

	if exists(filepath.Join(dir, "pyproject.toml")) || exists(filepath.Join(dir, "requirements.txt")) || exists(filepath.Join(dir, "setup.py")) {
		info.BuildSystems = append(info.BuildSystems, "pip")
		if exists(filepath.Join(dir, "pytest.ini")) || exists(filepath.Join(dir, "conftest.py")) || pyprojectMentionsPytest(filepath.Join(dir, "pyproject.toml")) {
			info.TestFrameworks = append(info.TestFrameworks, "pytest")
		}
	}

	if exists(filepath.Join(dir, "Cargo.toml")) {
		info.BuildSystems = append(info.BuildSystems, "cargo")
		info.TestFrameworks = append(info.TestFrameworks, "cargo-test")
	}

	if exists(filepath.Join(dir, "Makefile")) {
		info.BuildSystems = append(info.BuildSystems, "make")
	}

	sort.Strings(info.Frameworks)
}

// packageJSON is the subset of package.json the detector reads.
type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Scripts         map[string]string `json:"scripts"`
}

func (p *packageJSON) hasDep(name string) bool {
	if _, ok := p.Dependencies[name]; ok {
		return true
	}
	_, ok := p.DevDependencies[name]
	return ok
}

func readPackageJSON(path string) *packageJSON {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil
	}
	return &pkg
}

func pyprojectMentionsPytest(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), "pytest")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// sortedByCount returns language names ordered by descending file count,
// ties broken alphabetically for determinism.
func sortedByCount(counts map[string]int) []string {
	langs := make([]string, 0, len(counts))
	for lang := range counts {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		if counts[langs[i]] != counts[langs[j]] {
			return counts[langs[i]] > counts[langs[j]]
		}
		return langs[i] < langs[j]
	})
	return langs
}
