package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestTuiRequiresInteractiveTerminal(t *testing.T) {
	root, _ := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"tui"})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "interactive terminal") {
		t.Fatalf("err = %v, want interactive terminal error", err)
	}
}
