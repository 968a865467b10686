package gtkpanel

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/gotk3/gotk3/gdk"
	"github.com/gotk3/gotk3/gtk"

	"github.com/chess10kp/shellpanel/internal/layer"
	"github.com/chess10kp/shellpanel/internal/panel"
)

const layerNamespace = "shellpanel"

// window is the panel surface: an undecorated dock window holding a
// read-only, centered, monospace text view.
type window struct {
	win    *gtk.Window
	view   *gtk.TextView
	buffer *gtk.TextBuffer
	geom   panel.Geometry
	logger *slog.Logger

	// layerShell is set when the compositor places the window through the
	// layer shell protocol; positions then become bottom margins.
	layerShell bool
}

var _ panel.Surface = (*window)(nil)

func newWindow(geom panel.Geometry, logger *slog.Logger) (*window, error) {
	win, err := gtk.WindowNew(gtk.WINDOW_TOPLEVEL)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	view, err := gtk.TextViewNew()
	if err != nil {
		return nil, fmt.Errorf("failed to create text view: %w", err)
	}
	buffer, err := view.GetBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to get text buffer: %w", err)
	}

	view.SetEditable(false)
	view.SetCursorVisible(false)
	view.SetMonospace(true)
	view.SetJustification(gtk.JUSTIFY_CENTER)
	view.SetName("panel-text")

	win.SetTitle("shellpanel")
	win.SetName("shellpanel")
	win.SetDecorated(false)
	win.SetResizable(false)
	win.SetDefaultSize(geom.Width, geom.Height)
	win.Add(view)

	w := &window{
		win:    win,
		view:   view,
		buffer: buffer,
		geom:   geom,
		logger: logger.With("component", "window"),
	}

	if layer.IsSupported() {
		w.initLayerShell()
	} else {
		w.initDock()
	}
	return w, nil
}

func (w *window) native() unsafe.Pointer {
	return unsafe.Pointer(w.win.Native())
}

func (w *window) initLayerShell() {
	w.layerShell = true
	layer.InitForWindow(w.native())
	layer.SetNamespace(w.native(), layerNamespace)
	layer.SetLayer(w.native(), layer.LayerTop)
	layer.SetAnchor(w.native(), layer.EdgeLeft, true)
	layer.SetAnchor(w.native(), layer.EdgeRight, true)
	layer.SetAnchor(w.native(), layer.EdgeBottom, true)
	layer.SetExclusiveZone(w.native(), 0)
	layer.SetKeyboardMode(w.native(), layer.KeyboardModeNone)
	w.logger.Debug("using layer shell")
}

func (w *window) initDock() {
	w.win.SetTypeHint(gdk.WINDOW_TYPE_HINT_DOCK)
	w.win.SetKeepAbove(true)
	w.win.Stick()
	w.win.SetSkipPagerHint(true)
	w.win.SetSkipTaskbarHint(true)
	w.win.SetPosition(gtk.WIN_POS_CENTER)
	w.logger.Debug("using dock window")
}

// connectPointer routes crossing events to the visibility controller.
// Leaves into a child widget are not leaves of the panel.
func (w *window) connectPointer(v *panel.VisibilityController) {
	w.win.AddEvents(int(gdk.ENTER_NOTIFY_MASK | gdk.LEAVE_NOTIFY_MASK))

	w.win.Connect("enter-notify-event", func(_ *gtk.Window, ev *gdk.Event) bool {
		v.PointerEnter()
		return false
	})
	w.win.Connect("leave-notify-event", func(_ *gtk.Window, ev *gdk.Event) bool {
		if gdk.EventCrossingNewFromEvent(ev).Detail() == gdk.NOTIFY_INFERIOR {
			return false
		}
		v.PointerLeave()
		return false
	})
}

func (w *window) show() {
	w.win.ShowAll()
}

func (w *window) destroy() {
	w.win.Destroy()
}

// SetPosition implements panel.Surface.
func (w *window) SetPosition(x, y int) {
	if w.layerShell {
		layer.SetMargin(w.native(), layer.EdgeBottom, w.geom.BottomMargin(y))
		return
	}
	w.win.Move(x, y)
}

// SetText implements panel.Surface.
func (w *window) SetText(text string) {
	w.buffer.SetText(text)
}

// SetError implements panel.Surface. The error stays visible as a tooltip
// and a style class until cleared with nil.
func (w *window) SetError(err error) {
	ctx, ctxErr := w.view.GetStyleContext()
	if ctxErr != nil {
		w.logger.Warn("failed to get style context", "error", ctxErr)
		return
	}

	if err == nil {
		ctx.RemoveClass(errorClass)
		w.view.SetTooltipText("")
		return
	}
	ctx.AddClass(errorClass)
	w.view.SetTooltipText(err.Error())
}
