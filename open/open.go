// Package open launches URLs with the system's default handler.
package open

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/eolscan/eolscan/constant"
)

// EnvBrowser names an application to open URLs with instead of the system default.
const EnvBrowser = "BROWSER"

// Browser opens url without waiting for the browser to exit.
// $BROWSER takes precedence over the platform handler.
func Browser(url string) error {
	if app := strings.TrimSpace(os.Getenv(EnvBrowser)); app != "" {
		return StartWith(url, app)
	}
	return Start(url)
}

// Start opens input with the platform handler asynchronously.
func Start(input string) error {
	cmd, ok := command(runtime.GOOS, input)
	if !ok {
		return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
	return cmd.Start()
}

// StartWith opens input with app asynchronously.
func StartWith(input, app string) error {
	cmd, ok := commandWith(runtime.GOOS, input, app)
	if !ok {
		return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
	return cmd.Start()
}

func command(goos, input string) (*exec.Cmd, bool) {
	switch goos {
	case constant.Windows:
		rundll := filepath.Join(os.Getenv("SYSTEMROOT"), "System32", "rundll32.exe")
		return exec.Command(rundll, "url.dll,FileProtocolHandler", input), true
	case constant.Darwin:
		return exec.Command("open", input), true
	case constant.Linux:
		return exec.Command("xdg-open", input), true
	case constant.Android:
		return exec.Command("termux-open-url", input), true
	default:
		return nil, false
	}
}

func commandWith(goos, input, app string) (*exec.Cmd, bool) {
	switch goos {
	case constant.Windows:
		// start treats & as a command separator
		escaped := strings.ReplaceAll(input, "&", "^&")
		return exec.Command("cmd", "/C", "start", "", app, escaped), true
	case constant.Darwin:
		return exec.Command("open", "-a", app, input), true
	case constant.Linux, constant.Android:
		return exec.Command(app, input), true
	default:
		return nil, false
	}
}
