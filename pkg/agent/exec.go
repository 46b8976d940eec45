package agent

import (
	"context"
	"os/exec"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// commandRunner runs an external tool and returns its output. Tests substitute fakes.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func execCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// decodeConsole converts legacy Windows console output (OEM code page 850) to UTF-8.
// Output that is already valid UTF-8 is returned unchanged.
func decodeConsole(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	if out, err := charmap.CodePage850.NewDecoder().Bytes(b); err == nil {
		return string(out)
	}
	return string(b)
}
