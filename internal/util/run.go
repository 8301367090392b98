package util

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// Run invokes an external command and returns its standard output. A
// single-element argv is not special-cased; callers that want shell
// interpretation should pass ["sh", "-c", command].
func Run(argv []string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("empty command")
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("failed to run [%s]: %s", strings.Join(argv, " "), msg)
	}
	return stdout.String(), nil
}

// ShellCommand wraps a command string for shell interpretation.
func ShellCommand(command string) []string {
	return []string{"sh", "-c", command}
}
