package chrome

import (
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher"

	"docconv/internal/config"
)

// AllocatorOptions returns the exec allocator flags for a headless Chrome
// using profileDir as its user data dir.
func AllocatorOptions(cfg config.Config, profileDir string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(profileDir),
		// Force software rendering and avoid Vulkan/ANGLE issues in minimal container environments.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-gpu-compositing", true),
		chromedp.Flag("disable-features", "Vulkan,UseSkiaRenderer"),
		chromedp.Flag("use-gl", "swiftshader"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-first-run", true),
		// Lambda only offers a single-process-friendly /tmp.
		chromedp.Flag("no-zygote", true),
	)
	if path := ResolveExecPath(cfg); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	if cfg.PDF.ChromeNoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return opts
}

// ResolveExecPath picks the browser binary: the configured path, then any
// Chrome/Chromium found on the system, then (when auto_download is set) a
// Chromium fetched into rod's cache. An empty result lets chromedp search.
func ResolveExecPath(cfg config.Config) string {
	if cfg.PDF.ChromePath != "" {
		return cfg.PDF.ChromePath
	}
	if path, ok := launcher.LookPath(); ok {
		return path
	}
	if cfg.PDF.AutoDownload {
		path, err := DownloadBrowser()
		if err == nil {
			return path
		}
	}
	return ""
}

// DownloadBrowser fetches a compatible Chromium into rod's cache dir if it
// is not there yet and returns the executable path.
func DownloadBrowser() (string, error) {
	path, err := launcher.NewBrowser().Get()
	if err != nil {
		return "", fmt.Errorf("download chromium: %w", err)
	}
	return path, nil
}

// Available reports whether a browser binary can be located without downloading.
func Available(cfg config.Config) bool {
	if cfg.PDF.ChromePath != "" {
		return true
	}
	_, ok := launcher.LookPath()
	return ok
}
