package main

import (
	"os"
	"strings"
	"testing"

	"cargo-fixture/pkg/protocol"

	"github.com/spf13/pflag"
)

func TestREADMEDocumentsFlags(t *testing.T) {
	content, err := os.ReadFile("../../README.md")
	if err != nil {
		t.Fatalf("Failed to read README.md: %v", err)
	}
	readmeText := string(content)

	cmd := newRootCmd(&options{}, nil)
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		if !strings.Contains(readmeText, "--"+f.Name) {
			t.Errorf("README.md does not mention --%s", f.Name)
		}
		if f.Shorthand != "" && !strings.Contains(readmeText, "-"+f.Shorthand) {
			t.Errorf("README.md does not mention -%s", f.Shorthand)
		}
	})
	if !strings.Contains(readmeText, "-Z FLAG") {
		t.Error("README.md does not mention -Z")
	}

	for _, env := range []string{envCargo, envLogLevel, envSocketDir, protocol.EnvSocket, protocol.EnvNested} {
		if !strings.Contains(readmeText, env) {
			t.Errorf("README.md does not mention %s", env)
		}
	}
}
