package folder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

var (
	// ErrCancelled reports that the user dismissed the folder dialog.
	ErrCancelled = errors.New("folder selection cancelled")
	// ErrUnsupported reports that no desktop tool is available.
	ErrUnsupported = errors.New("no folder dialog available on this system")
)

const dialogPrompt = "Select Download Folder for Videos"

// Opener reveals directories in the file manager.
type Opener struct {
	goos    string
	timeout time.Duration
}

// NewOpener returns an Opener for the running platform.
func NewOpener() *Opener {
	return &Opener{goos: runtime.GOOS, timeout: 10 * time.Second}
}

// Open shows path in the file manager. It returns once the launcher exits.
func (o *Opener) Open(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("open folder: path is empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("open folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("open folder: %s is not a directory", path)
	}

	name := "xdg-open"
	if o.goos == "darwin" {
		name = "open"
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%w: %s not found", ErrUnsupported, name)
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	if out, err := exec.CommandContext(ctx, bin, path).CombinedOutput(); err != nil { //nolint:gosec
		return fmt.Errorf("%s %s: %w: %s", name, path, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Picker shows a native "choose folder" dialog.
type Picker struct {
	goos    string
	timeout time.Duration
}

// NewPicker returns a Picker for the running platform. The dialog is closed
// after two minutes without an answer.
func NewPicker() *Picker {
	return &Picker{goos: runtime.GOOS, timeout: 2 * time.Minute}
}

type dialog struct {
	name string
	args []string
}

func (p *Picker) dialogs(start string) []dialog {
	if p.goos == "darwin" {
		script := fmt.Sprintf(`POSIX path of (choose folder with prompt "%s:")`, dialogPrompt)
		return []dialog{{name: "osascript", args: []string{"-e", script}}}
	}
	return []dialog{
		{name: "zenity", args: []string{"--file-selection", "--directory", "--title=" + dialogPrompt, "--filename=" + start + "/"}},
		{name: "kdialog", args: []string{"--getexistingdirectory", start, "--title", dialogPrompt}},
	}
}

// Choose asks the user for a directory, starting at start. It returns
// ErrCancelled when the dialog is dismissed and ErrUnsupported when no dialog
// program is installed.
func (p *Picker) Choose(ctx context.Context, start string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	for _, d := range p.dialogs(strings.TrimSpace(start)) {
		bin, err := exec.LookPath(d.name)
		if err != nil {
			continue
		}
		out, err := exec.CommandContext(ctx, bin, d.args...).Output() //nolint:gosec
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) || ctx.Err() != nil {
				return "", ErrCancelled
			}
			return "", fmt.Errorf("%s: %w", d.name, err)
		}
		chosen := strings.TrimSpace(string(out))
		if chosen == "" {
			return "", ErrCancelled
		}
		if chosen != "/" {
			chosen = strings.TrimRight(chosen, "/")
		}
		return chosen, nil
	}
	return "", ErrUnsupported
}
