package gtkpanel

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gotk3/gotk3/gdk"
	"github.com/gotk3/gotk3/gtk"
)

// errorClass marks the text view while the last refresh failed.
const errorClass = "error"

const defaultStyles = `
window, textview, textview text {
    background-color: #0e1419;
    color: #ebdbb2;
}

textview {
    font-family: "Iosevka", monospace;
    font-size: 12px;
    margin: 0;
    padding: 0;
}

textview.error text {
    color: #fb4934;
}
`

// setupStyles installs the built-in stylesheet for the default screen.
func setupStyles(logger *slog.Logger) {
	screen, err := gdk.ScreenGetDefault()
	if err != nil || screen == nil {
		logger.Warn("failed to get default screen", "error", err)
		return
	}

	provider, err := gtk.CssProviderNew()
	if err != nil {
		logger.Warn("failed to create css provider", "error", err)
		return
	}
	if err := provider.LoadFromData(defaultStyles); err != nil {
		logger.Warn("failed to load default styles", "error", err)
		return
	}

	gtk.AddProviderForScreen(screen, provider, gtk.STYLE_PROVIDER_PRIORITY_APPLICATION)
}

// loadCustomCSS layers a user stylesheet above the built-in one.
func loadCustomCSS(path string) error {
	screen, err := gdk.ScreenGetDefault()
	if err != nil {
		return fmt.Errorf("failed to get default screen: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read css %s: %w", path, err)
	}

	provider, err := gtk.CssProviderNew()
	if err != nil {
		return fmt.Errorf("failed to create css provider: %w", err)
	}
	if err := provider.LoadFromData(string(data)); err != nil {
		return fmt.Errorf("failed to parse css %s: %w", path, err)
	}

	gtk.AddProviderForScreen(screen, provider, gtk.STYLE_PROVIDER_PRIORITY_USER)
	return nil
}
