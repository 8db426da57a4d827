package folder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vidsnatch/internal/testsupport"
)

// stubPath replaces PATH with a directory holding only the given scripts.
func stubPath(t *testing.T, scripts map[string]string) string {
	t.Helper()
	bin := t.TempDir()
	for name, body := range scripts {
		testsupport.WriteScript(t, filepath.Join(bin, name), body)
	}
	t.Setenv("PATH", bin)
	return bin
}

func TestOpenerRunsLauncher(t *testing.T) {
	record := filepath.Join(t.TempDir(), "opened")
	stubPath(t, map[string]string{
		"xdg-open": `printf '%s' "$1" > "` + record + `"` + "\n",
	})
	dir := t.TempDir()

	o := &Opener{goos: "linux", timeout: 5 * time.Second}
	if err := o.Open(dir); err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, err := os.ReadFile(record)
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	if string(data) != dir {
		t.Fatalf("opened %q, want %q", data, dir)
	}
}

func TestOpenerErrors(t *testing.T) {
	stubPath(t, nil)
	o := &Opener{goos: "linux", timeout: time.Second}

	if err := o.Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
	if err := o.Open(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing dir")
	}
	if err := o.Open(t.TempDir()); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported without xdg-open, got %v", err)
	}
}

func TestPickerChoose(t *testing.T) {
	tests := []struct {
		name    string
		scripts map[string]string
		want    string
		wantErr error
	}{
		{
			name:    "zenity answer",
			scripts: map[string]string{"zenity": "echo /home/user/Videos/\n"},
			want:    "/home/user/Videos",
		},
		{
			name:    "kdialog fallback",
			scripts: map[string]string{"kdialog": "echo /srv/media\n"},
			want:    "/srv/media",
		},
		{
			name:    "dismissed",
			scripts: map[string]string{"zenity": "exit 1\n"},
			wantErr: ErrCancelled,
		},
		{
			name:    "empty answer",
			scripts: map[string]string{"zenity": "exit 0\n"},
			wantErr: ErrCancelled,
		},
		{
			name:    "no dialog program",
			wantErr: ErrUnsupported,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubPath(t, tt.scripts)
			p := &Picker{goos: "linux", timeout: 5 * time.Second}
			got, err := p.Choose(context.Background(), "/home/user")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Choose error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Choose: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Choose = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPickerDarwinUsesAppleScript(t *testing.T) {
	p := &Picker{goos: "darwin"}
	dialogs := p.dialogs("/Users/me")
	if len(dialogs) != 1 || dialogs[0].name != "osascript" {
		t.Fatalf("unexpected dialogs %+v", dialogs)
	}
	if !strings.Contains(dialogs[0].args[1], "choose folder") {
		t.Fatalf("script = %q", dialogs[0].args[1])
	}
}
