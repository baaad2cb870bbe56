package detect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/autocodit-io/runner/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDetectJavaScriptProject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{
		"dependencies": {"react": "^18.0.0"},
		"devDependencies": {"jest": "^29.0.0"},
		"scripts": {"test": "jest"}
	}`)
	writeFile(t, dir, "src/index.jsx", "export default null\n")
	writeFile(t, dir, "src/app.test.jsx", "test('noop', () => {})\n")
	writeFile(t, dir, ".github/workflows/ci.yml", "on: push\n")

	info := NewDetector().Detect(dir)

	if info.PrimaryLanguage() != "javascript" {
		t.Errorf("PrimaryLanguage() = %s, want javascript", info.PrimaryLanguage())
	}
	if !info.HasTestFramework("jest") {
		t.Errorf("test frameworks = %v, want jest", info.TestFrameworks)
	}
	if len(info.Frameworks) == 0 || info.Frameworks[0] != "react" {
		t.Errorf("frameworks = %v, want [react]", info.Frameworks)
	}
	if !info.HasTests {
		t.Error("HasTests should be true")
	}
	if !info.HasCI {
		t.Error("HasCI should be true")
	}
}

func TestDetectGoProject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/demo\n\ngo 1.22\n")
	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "main_test.go", "package main\n")

	info := NewDetector().Detect(dir)

	if info.PrimaryLanguage() != "go" {
		t.Errorf("PrimaryLanguage() = %s, want go", info.PrimaryLanguage())
	}
	if !info.HasTestFramework("go-test") {
		t.Errorf("test frameworks = %v, want go-test", info.TestFrameworks)
	}
}

func TestDetectExcludesDependencyDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.py", "print('hi')\n")
	writeFile(t, dir, "node_modules/lib/index.js", "module.exports = {}\n")
	writeFile(t, dir, ".git/config", "[core]\n")

	info := NewDetector().Detect(dir)

	if info.HasLanguage("javascript") {
		t.Error("node_modules content should not be classified")
	}
	if info.FileCount != 1 {
		t.Errorf("FileCount = %d, want 1", info.FileCount)
	}
}

func TestDetectMissingDirIsUnknown(t *testing.T) {
	info := NewDetector().Detect(filepath.Join(t.TempDir(), "does-not-exist"))
	if !info.Unknown() {
		t.Errorf("missing dir should classify as unknown, got %+v", info)
	}
}

func TestTestCommands(t *testing.T) {
	tests := []struct {
		name string
		info *models.ProjectInfo
		want string
	}{
		{
			name: "go project",
			info: &models.ProjectInfo{Languages: []string{"go"}, TestFrameworks: []string{"go-test"}},
			want: "go test ./...",
		},
		{
			name: "python project",
			info: &models.ProjectInfo{Languages: []string{"python"}, TestFrameworks: []string{"pytest"}},
			want: "python -m pytest",
		},
		{
			name: "javascript with jest",
			info: &models.ProjectInfo{Languages: []string{"javascript"}, TestFrameworks: []string{"jest"}},
			want: "npm test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := TestCommands(tt.info)
			if len(cmds) != 1 {
				t.Fatalf("TestCommands() returned %d commands, want 1", len(cmds))
			}
			if cmds[0].Display != tt.want {
				t.Errorf("command = %q, want %q", cmds[0].Display, tt.want)
			}
		})
	}
}

func TestTestCommandsUnknownProjectIsEmpty(t *testing.T) {
	if cmds := TestCommands(&models.ProjectInfo{}); len(cmds) != 0 {
		t.Errorf("unknown project should yield no commands, got %v", cmds)
	}
	if cmds := TestCommands(nil); len(cmds) != 0 {
		t.Errorf("nil info should yield no commands, got %v", cmds)
	}
}
