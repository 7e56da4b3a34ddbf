// SPDX-License-Identifier: MPL-2.0

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// resetFlags restores all flag variables to their defaults.
func resetFlags() {
	debug = false
	details = false
	printCDefine = false
	noValidate = false
	guidsDb = ""
}

// run invokes the tool with a fresh command wired to a capture buffer.
func run(t *testing.T, guid string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	err := runGuidTool(cmd, []string{guid})
	return out.String(), err
}

func TestRunKnownGuid(t *testing.T) {
	resetFlags()

	out, err := run(t, "6dcbd5ed-e82d-4c44-bda1-7194199ad92a")
	if err != nil {
		t.Fatalf("runGuidTool() error = %v", err)
	}
	if strings.TrimSpace(out) != "EFI firmware management capsule" {
		t.Errorf("output = %q, want the FMP capsule description", out)
	}
}

func TestRunUnknownGuid(t *testing.T) {
	resetFlags()

	out, err := run(t, "ce0f7b17-40ae-4a33-afa9-2eb71fa8954e")
	if err != nil {
		t.Fatalf("runGuidTool() error = %v", err)
	}
	if strings.TrimSpace(out) != "Unknown" {
		t.Errorf("output = %q, want Unknown", out)
	}
}

func TestRunInvalidGuid(t *testing.T) {
	resetFlags()

	_, err := run(t, "not-a-guid")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("runGuidTool() error = %v, want *ExitError", err)
	}
	if exitErr.Code != 1 {
		t.Errorf("exit code = %d, want 1", exitErr.Code)
	}
}

func TestRunNonConformantGuid(t *testing.T) {
	resetFlags()

	// Well-formed but with non-RFC 4122 variant bits.
	const g = "12345678-1234-5678-1234-56789abcdef0"

	if _, err := run(t, g); err == nil {
		t.Fatal("runGuidTool() accepted a non-conformant GUID without --no-validate")
	}

	noValidate = true
	out, err := run(t, g)
	if err != nil {
		t.Fatalf("runGuidTool() with --no-validate error = %v", err)
	}
	if strings.TrimSpace(out) != "Unknown" {
		t.Errorf("output = %q, want Unknown", out)
	}
}

func TestRunDetails(t *testing.T) {
	resetFlags()
	details = true

	out, err := run(t, "6dcbd5ed-e82d-4c44-bda1-7194199ad92a")
	if err != nil {
		t.Fatalf("runGuidTool() error = %v", err)
	}
	for _, want := range []string{"TimeLow", "TimeMid", "Node"} {
		if !strings.Contains(out, want) {
			t.Errorf("details output misses %q", want)
		}
	}
}

func TestRunPrintCDefine(t *testing.T) {
	resetFlags()
	printCDefine = true

	out, err := run(t, "6dcbd5ed-e82d-4c44-bda1-7194199ad92a")
	if err != nil {
		t.Fatalf("runGuidTool() error = %v", err)
	}
	if !strings.Contains(out, "#define GUID") {
		t.Errorf("output %q misses the C define", out)
	}
	if !strings.Contains(out, "0x6dcbd5ed") {
		t.Errorf("output %q misses the TimeLow initializer", out)
	}
}

func TestRunCustomDatabase(t *testing.T) {
	resetFlags()

	path := filepath.Join(t.TempDir(), "db.cue")
	db := `
guid_tool_database: true
known_guids: [
	{
		guid:        "6dcbd5ed-e82d-4c44-bda1-7194199ad92a"
		description: "my own capsule"
	},
]
`
	if err := os.WriteFile(path, []byte(db), 0o644); err != nil {
		t.Fatal(err)
	}
	guidsDb = path

	out, err := run(t, "6dcbd5ed-e82d-4c44-bda1-7194199ad92a")
	if err != nil {
		t.Fatalf("runGuidTool() error = %v", err)
	}
	if strings.TrimSpace(out) != "my own capsule" {
		t.Errorf("output = %q, want the custom description", out)
	}
}

func TestRunBrokenDatabase(t *testing.T) {
	resetFlags()

	path := filepath.Join(t.TempDir(), "db.cue")
	if err := os.WriteFile(path, []byte(`known_guids: []`), 0o644); err != nil {
		t.Fatal(err)
	}
	guidsDb = path

	if _, err := run(t, "6dcbd5ed-e82d-4c44-bda1-7194199ad92a"); err == nil {
		t.Fatal("runGuidTool() succeeded with a broken database")
	}
}
