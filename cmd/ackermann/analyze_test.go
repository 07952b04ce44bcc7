package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testScript = `(array A 2 8)
(array B 4 8)
(query
  (concat (read A (const 1 32)) (read A (const 0 32)))
  (read A (const 1 32))
  (read (store B (const 0 32) (const 1 8)) (const 0 32)))
`

func TestAnalyzeCommand_Run(t *testing.T) {
	t.Run("Plain", func(t *testing.T) {
		filename := writeFile(t, "test.ackr", testScript)

		cmd, stdout := newTestAnalyzeCommand()
		if err := cmd.Run(context.Background(), []string{filename}); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(stdout.String(), ""+
			"# "+filename+"\n"+
			"query 1:\n"+
			"A: ackermannizable\n"+
			"  concat [0, 15]\n"+
			"  read (const 1 32)\n"+
			"B: rejected\n",
		); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Terminal", func(t *testing.T) {
		filename := writeFile(t, "test.ackr", testScript)

		cmd, stdout := newTestAnalyzeCommand()
		cmd.Terminal = true
		if err := cmd.Run(context.Background(), []string{filename}); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(stdout.String(), ""+
			"# "+filename+"\n"+
			"QUERY  ARRAY  STATUS           MATCH\n"+
			"1      A      ackermannizable  concat [0, 15]\n"+
			"                               read (const 1 32)\n"+
			"1      B      rejected         -\n",
		); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Archive", func(t *testing.T) {
		filename := filepath.Join("..", "..", "testdata", "scripts", "shared_once.txtar")

		cmd, stdout := newTestAnalyzeCommand()
		if err := cmd.Run(context.Background(), []string{filename}); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(stdout.String(), ""+
			"# "+filename+"/input\n"+
			"query 1:\n"+
			"A: ackermannizable\n"+
			"  read (const 1 32)\n",
		); diff != "" {
			t.Fatal(diff)
		}
	})

	// Output follows argument order regardless of completion order.
	t.Run("Order", func(t *testing.T) {
		var filenames []string
		for _, name := range []string{"a.ackr", "b.ackr", "c.ackr", "d.ackr"} {
			filenames = append(filenames, writeFile(t, name, testScript))
		}

		cmd, stdout := newTestAnalyzeCommand()
		cmd.Config.Jobs = 2
		if err := cmd.Run(context.Background(), filenames); err != nil {
			t.Fatal(err)
		}

		var headers []string
		for _, line := range strings.Split(stdout.String(), "\n") {
			if strings.HasPrefix(line, "# ") {
				headers = append(headers, strings.TrimPrefix(line, "# "))
			}
		}
		if diff := cmp.Diff(headers, filenames); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Verify", func(t *testing.T) {
		filename := filepath.Join("..", "..", "testdata", "scripts", "whole_array.txtar")

		cmd, _ := newTestAnalyzeCommand()
		cmd.Config.Verify = true
		if err := cmd.Run(context.Background(), []string{filename}); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("Dump", func(t *testing.T) {
		filename := writeFile(t, "test.ackr", testScript)

		cmd, stdout := newTestAnalyzeCommand()
		cmd.Dump = true
		if err := cmd.Run(context.Background(), []string{filename}); err != nil {
			t.Fatal(err)
		} else if !strings.Contains(stdout.String(), `Name: (string) (len=1) "B"`) {
			t.Fatalf("unexpected dump: %s", stdout.String())
		}
	})

	t.Run("ErrParse", func(t *testing.T) {
		filename := writeFile(t, "bad.ackr", "(foo)")

		cmd, _ := newTestAnalyzeCommand()
		if err := cmd.Run(context.Background(), []string{filename}); err == nil || err.Error() != filename+": 1:2: unknown declaration: foo" {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("ErrEmptyArchive", func(t *testing.T) {
		filename := writeFile(t, "empty.txtar", "comment only\n-- want --\n")

		cmd, _ := newTestAnalyzeCommand()
		if err := cmd.Run(context.Background(), []string{filename}); err == nil || err.Error() != filename+": archive contains no scripts" {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("ErrNotExist", func(t *testing.T) {
		cmd, _ := newTestAnalyzeCommand()
		if err := cmd.Run(context.Background(), []string{filepath.Join(t.TempDir(), "missing.ackr")}); !os.IsNotExist(err) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestRootCommand(t *testing.T) {
	t.Run("Precedence", func(t *testing.T) {
		config := writeFile(t, "config.yaml", ""+
			"max_array_width: 100\n"+
			"sharing: every-path\n"+
			"verify: true\n"+
			"jobs: 2\n",
		)
		filename := writeFile(t, "test.ackr", testScript)

		t.Setenv(EnvMaxArrayWidth, "200")
		t.Setenv(EnvSharing, "")
		t.Setenv(EnvLogLevel, "warn")

		cmd, stdout := newTestAnalyzeCommand()
		root := newRootCommand(cmd)
		root.SetArgs([]string{"analyze", "--config", config, "--jobs", "3", filename})
		if err := root.ExecuteContext(context.Background()); err != nil {
			t.Fatal(err)
		}

		if diff := cmp.Diff(cmd.Config, Config{
			MaxArrayWidth: 200,
			Sharing:       "every-path",
			Verify:        true,
			Jobs:          3,
			LogLevel:      "warn",
		}); diff != "" {
			t.Fatal(diff)
		}

		// Every-path sharing has no effect on this script's output.
		if !strings.Contains(stdout.String(), "A: ackermannizable\n") {
			t.Fatalf("unexpected output: %s", stdout.String())
		}
	})

	t.Run("Verbose", func(t *testing.T) {
		filename := writeFile(t, "test.ackr", testScript)
		t.Setenv(EnvMaxArrayWidth, "")
		t.Setenv(EnvSharing, "")
		t.Setenv(EnvLogLevel, "")

		cmd, _ := newTestAnalyzeCommand()
		root := newRootCommand(cmd)
		root.SetArgs([]string{"analyze", "-v", "--max-array-width", "16", filename})
		if err := root.ExecuteContext(context.Background()); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(cmd.Config, Config{MaxArrayWidth: 16, Sharing: "once", LogLevel: "debug"}); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("ErrInvalidFlag", func(t *testing.T) {
		filename := writeFile(t, "test.ackr", testScript)
		t.Setenv(EnvMaxArrayWidth, "")
		t.Setenv(EnvSharing, "")
		t.Setenv(EnvLogLevel, "")

		cmd, _ := newTestAnalyzeCommand()
		root := newRootCommand(cmd)
		root.SetArgs([]string{"analyze", "--sharing", "never", filename})
		if err := root.ExecuteContext(context.Background()); err == nil || err.Error() != `invalid config: unknown sharing mode: "never"` {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("ErrNoArgs", func(t *testing.T) {
		cmd, _ := newTestAnalyzeCommand()
		root := newRootCommand(cmd)
		root.SetArgs([]string{"analyze"})
		if err := root.ExecuteContext(context.Background()); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestConfig(t *testing.T) {
	t.Run("ReadFile", func(t *testing.T) {
		filename := writeFile(t, "config.yaml", "sharing: every-path\n")

		config := DefaultConfig()
		if err := config.ReadFile(filename); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(config, Config{MaxArrayWidth: 1024, Sharing: "every-path", LogLevel: "info"}); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("ReadFileEmpty", func(t *testing.T) {
		config := DefaultConfig()
		if err := config.ReadFile(writeFile(t, "config.yaml", "")); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(config, DefaultConfig()); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("ErrUnknownField", func(t *testing.T) {
		config := DefaultConfig()
		if err := config.ReadFile(writeFile(t, "config.yaml", "max_width: 3\n")); err == nil || !strings.Contains(err.Error(), "field max_width not found") {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		env := map[string]string{EnvMaxArrayWidth: "64", EnvLogLevel: "debug"}
		config := DefaultConfig()
		if err := config.ApplyEnv(func(k string) string { return env[k] }); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(config, Config{MaxArrayWidth: 64, Sharing: "once", LogLevel: "debug"}); diff != "" {
			t.Fatal(diff)
		}

		env[EnvMaxArrayWidth] = "wide"
		if err := config.ApplyEnv(func(k string) string { return env[k] }); err == nil || !strings.HasPrefix(err.Error(), EnvMaxArrayWidth+": ") {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		for _, tt := range []struct {
			name   string
			config Config
			err    string
		}{
			{"MaxArrayWidth", Config{Sharing: "once", LogLevel: "info"}, "max array width must be greater than zero"},
			{"Sharing", Config{MaxArrayWidth: 1, Sharing: "twice", LogLevel: "info"}, `invalid config: unknown sharing mode: "twice"`},
			{"Jobs", Config{MaxArrayWidth: 1, Sharing: "once", Jobs: -1, LogLevel: "info"}, "jobs must not be negative: -1"},
			{"LogLevel", Config{MaxArrayWidth: 1, Sharing: "once", LogLevel: "loud"}, `invalid config: not a valid logrus Level: "loud"`},
		} {
			t.Run(tt.name, func(t *testing.T) {
				if err := tt.config.Validate(); err == nil || err.Error() != tt.err {
					t.Fatalf("unexpected error: %v", err)
				}
			})
		}

		if config := DefaultConfig(); config.Validate() != nil {
			t.Fatal("expected default config to be valid")
		}
	})
}

func newTestAnalyzeCommand() (*AnalyzeCommand, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := NewAnalyzeCommand()
	cmd.Stdout = &buf
	cmd.Terminal = false
	return cmd, &buf
}

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(filename, []byte(data), 0666); err != nil {
		t.Fatal(err)
	}
	return filename
}
