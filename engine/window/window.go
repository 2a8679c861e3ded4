package window

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
)

// InputKind identifies the source of an InputEvent.
type InputKind int

const (
	// InputKeyDown is a key press or auto-repeat. Key is set.
	InputKeyDown InputKind = iota
	// InputKeyUp is a key release. Key is set.
	InputKeyUp
	// InputButtonDown is a mouse button press. Button, X and Y are set.
	InputButtonDown
	// InputButtonUp is a mouse button release. Button, X and Y are set.
	InputButtonUp
	// InputMouseMove is a cursor move. X and Y are set.
	InputMouseMove
	// InputScroll is a wheel step. Delta is positive when scrolling up.
	InputScroll
)

// MouseButton identifies a mouse button in button events.
type MouseButton int

const (
	MouseButtonLeft MouseButton = iota
	MouseButtonRight
	MouseButtonMiddle
)

// InputEvent is one keyboard or mouse event in window pixel coordinates.
type InputEvent struct {
	Kind   InputKind
	Key    uint32
	Button MouseButton
	X, Y   int32
	Delta  float32
}

// Window owns the platform window the renderer presents to and forwards its input.
type Window interface {
	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetInputCallback sets the function receiving keyboard and mouse events. Events are
	// delivered on the goroutine running ProcessMessages.
	//
	// Parameters:
	//   - callback: function receiving each event (or nil to drop events)
	SetInputCallback(callback func(InputEvent))

	// SetTitle updates the title bar text. Safe to call from any goroutine; the change is
	// applied on the next message loop iteration.
	//
	// Parameters:
	//   - title: the new title
	SetTitle(title string)

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor for the platform window, created by
	// the wgpuglfw bridge (Windows HWND, X11, Wayland or macOS Metal layer).
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, or nil if the window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is still open.
	//
	// Returns:
	//   - bool: false once closed or a close was requested
	IsRunning() bool

	// RequestClose asks the message loop to exit. Safe to call from any goroutine.
	RequestClose()

	// Close destroys the window and releases platform resources.
	//
	// Returns:
	//   - error: error if the window was never initialized
	Close() error

	// ProcessMessages runs the message loop on the calling goroutine, which must be the one
	// that created the window. Blocks until the window closes.
	ProcessMessages()

	// Width returns the current framebuffer width in pixels.
	Width() int

	// Height returns the current framebuffer height in pixels.
	Height() int
}

// engineWindow is the platform-independent half of Window. The platform half lives in
// window_glfw.go and is reached through the platform* functions.
type engineWindow struct {
	title     string
	maxWidth  int
	maxHeight int
	minWidth  int
	minHeight int
	width     int
	height    int

	platform *glfwWindow

	pendingTitle   atomic.Pointer[string]
	closeRequested atomic.Bool

	onResize func(width, height int)
	onInput  func(InputEvent)
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a window. It locks the calling goroutine to its OS thread,
// which must then run ProcessMessages.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the created window
func NewWindow(options ...WindowBuilderOption) Window {
	w := &engineWindow{
		title:     "Oxy Trail",
		maxWidth:  3840,
		maxHeight: 2160,
		minWidth:  320,
		minHeight: 240,
		width:     1280,
		height:    720,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		panic(fmt.Sprintf("failed to create platform window: %v", err))
	}
	return w
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetInputCallback(callback func(InputEvent)) {
	w.onInput = callback
}

func (w *engineWindow) SetTitle(title string) {
	w.pendingTitle.Store(&title)
}

func (w *engineWindow) emit(ev InputEvent) {
	if w.onInput != nil {
		w.onInput(ev)
	}
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return !w.closeRequested.Load() && platformIsRunning(w)
}

func (w *engineWindow) RequestClose() {
	w.closeRequested.Store(true)
}

func (w *engineWindow) Close() error {
	return platformClose(w)
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if title := w.pendingTitle.Swap(nil); title != nil {
			w.title = *title
			platformSetTitle(w, w.title)
		}
		platformPollEvents()
		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}
