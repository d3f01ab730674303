package cli

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	// internal/cli -> repo root
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func goExe() string {
	if runtime.GOOS == "windows" {
		return "go.exe"
	}
	return "go"
}

func buildMigratorBinary(t *testing.T) string {
	t.Helper()

	outPath := filepath.Join(t.TempDir(), "migrator-test")
	if runtime.GOOS == "windows" {
		outPath += ".exe"
	}

	cmd := exec.Command(goExe(), "build", "-o", outPath, "./cmd/migrator")
	cmd.Dir = repoRoot(t)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build migrator binary: %v; output=%s", err, string(out))
	}
	return outPath
}

func exitCode(t *testing.T, err error, out []byte) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %T: %v; output=%s", err, err, string(out))
	}
	return exitErr.ProcessState.ExitCode()
}

func TestMigrate_ExitCode3_WhenCollectionMissing(t *testing.T) {
	binary := buildMigratorBinary(t)
	// Pass a flag to bypass the "print help if no flags" check.
	cmd := exec.Command(binary, "migrate", "--verbose", "--items", "mints.json")
	cmd.Env = append(os.Environ(), "HOME="+t.TempDir())

	out, err := cmd.CombinedOutput()
	if code := exitCode(t, err, out); code != ExitFatal {
		t.Fatalf("expected exit code 3, got %d; output=%s", code, string(out))
	}
	if !strings.Contains(string(out), "--collection is required") {
		t.Fatalf("expected validation message; output=%s", string(out))
	}
}

func TestMigrate_ExitCode3_WhenRelayMissing(t *testing.T) {
	binary := buildMigratorBinary(t)
	cmd := exec.Command(binary, "migrate",
		"--collection", "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL",
		"--items", "mints.json",
	)
	env := []string{"HOME=" + t.TempDir()}
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, "MIGRATOR_") || strings.HasPrefix(e, "HOME=") {
			continue
		}
		env = append(env, e)
	}
	cmd.Env = env

	out, err := cmd.CombinedOutput()
	if code := exitCode(t, err, out); code != ExitFatal {
		t.Fatalf("expected exit code 3, got %d; output=%s", code, string(out))
	}
	if !strings.Contains(string(out), "--relay-url") {
		t.Fatalf("expected relay message; output=%s", string(out))
	}
}

func TestVersion_PrintsBuildInfo(t *testing.T) {
	binary := buildMigratorBinary(t)
	out, err := exec.Command(binary, "version").CombinedOutput()
	if err != nil {
		t.Fatalf("version failed: %v; output=%s", err, string(out))
	}
	if !strings.HasPrefix(string(out), "migrator dev") {
		t.Fatalf("unexpected output: %s", string(out))
	}
}
