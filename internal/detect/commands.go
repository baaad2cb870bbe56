package detect

import "github.com/autocodit-io/runner/internal/models"

// TestCommand is one shell-free test invocation selected for a workspace.
type TestCommand struct {
	Display string   // human-readable form for logs and events
	Argv    []string // argv[0] is the executable
}

// TestCommands selects the validation commands for a classified workspace.
// A recognized language/runner combination yields a single invocation;
// unsupported combinations yield an empty list, which the executor treats
// as a vacuous pass with a warning, never a failure.
func TestCommands(info *models.ProjectInfo) []TestCommand {
	if info == nil {
		return nil
	}

	var cmds []TestCommand

	switch {
	case info.HasTestFramework("go-test"):
		cmds = append(cmds, TestCommand{
			Display: "go test ./...",
			Argv:    []string{"go", "test", "./..."},
		})
	case info.HasTestFramework("pytest"):
		cmds = append(cmds, TestCommand{
			Display: "python -m pytest",
			Argv:    []string{"python", "-m", "pytest"},
		})
	case info.HasTestFramework("cargo-test"):
		cmds = append(cmds, TestCommand{
			Display: "cargo test",
			Argv:    []string{"cargo", "test"},
		})
	case hasJSRunner(info):
		cmds = append(cmds, TestCommand{
			Display: "npm test",
			Argv:    []string{"npm", "test", "--silent"},
		})
	}

	return cmds
}

// hasJSRunner reports whether a JavaScript/TypeScript project has a
// recognized test runner.
func hasJSRunner(info *models.ProjectInfo) bool {
	if !info.HasLanguage("javascript") && !info.HasLanguage("typescript") {
		return false
	}
	for _, fw := range []string{"jest", "vitest", "mocha", "ava", "npm-test"} {
		if info.HasTestFramework(fw) {
			return true
		}
	}
	return false
}
