package cmd

import (
	"bytes"
	"testing"
)

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "bidscombine" {
		t.Errorf("Use = %q", cmd.Use)
	}

	want := map[string]bool{"combine": false, "inspect": false, "report": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestCombineRequiresTwoArgs(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"combine", "/only/one"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("combine with one argument should fail")
	}
}

func TestInspectRejectsMissingDataset(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"inspect", t.TempDir()})

	// No dataset_description.json: the catalog refuses to open.
	if err := cmd.Execute(); err == nil {
		t.Fatal("inspect on a non-BIDS directory should fail")
	}
}
