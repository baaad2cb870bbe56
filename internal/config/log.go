package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WriteCommandLog writes the captured output of one validation command to
// the workspace logs directory with a YAML header, and returns the file
// path. Log files are artifacts: they survive the task attempt so the
// backend can surface failure diagnostics.
func WriteCommandLog(logsDir, taskID, stepName, command string, exitCode int, startedAt time.Time, stdout, stderr string) (string, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create logs dir: %w", err)
	}

	endedAt := time.Now().UTC()
	timestamp := startedAt.UTC().Format("2006-01-02T15-04-05")
	logID := fmt.Sprintf("%s-%s", sanitizeLogName(stepName), timestamp)

	filePath := filepath.Join(logsDir, logID+".log")
	f, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create log file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "task_id: %s\n", taskID)
	fmt.Fprintf(w, "step: %s\n", stepName)
	fmt.Fprintf(w, "command: %s\n", command)
	fmt.Fprintf(w, "exit_code: %d\n", exitCode)
	fmt.Fprintf(w, "started_at: %s\n", startedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "ended_at: %s\n", endedAt.Format(time.RFC3339))
	fmt.Fprintln(w, "---")

	if stdout != "" {
		fmt.Fprintln(w, "# stdout")
		fmt.Fprintln(w, stdout)
	}
	if stderr != "" {
		fmt.Fprintln(w, "# stderr")
		fmt.Fprintln(w, stderr)
	}

	return filePath, w.Flush()
}

// sanitizeLogName lowercases a step name and replaces spaces for use in a
// file name.
func sanitizeLogName(name string) string {
	name = strings.ToLower(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		}
		return -1
	}, name)
}
