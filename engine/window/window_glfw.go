package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

type glfwWindow struct {
	window *glfw.Window
}

// newPlatformWindow creates the GLFW window without a client API, since WebGPU brings its
// own, and routes GLFW callbacks into the engineWindow.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
func newPlatformWindow(w *engineWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create GLFW window: %w", err)
	}
	win.SetSizeLimits(w.minWidth, w.minHeight, w.maxWidth, w.maxHeight)
	w.platform = &glfwWindow{window: win}

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		switch action {
		case glfw.Press, glfw.Repeat:
			w.emit(InputEvent{Kind: InputKeyDown, Key: uint32(key)})
		case glfw.Release:
			w.emit(InputEvent{Kind: InputKeyUp, Key: uint32(key)})
		}
	})
	win.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		w.emit(InputEvent{Kind: InputScroll, Delta: float32(yoff)})
	})
	win.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		mb, ok := mouseButton(button)
		if !ok {
			return
		}
		x, y := win.GetCursorPos()
		ev := InputEvent{Kind: InputButtonDown, Button: mb, X: int32(x), Y: int32(y)}
		if action == glfw.Release {
			ev.Kind = InputButtonUp
		}
		w.emit(ev)
	})
	win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		w.emit(InputEvent{Kind: InputMouseMove, X: int32(x), Y: int32(y)})
	})

	// Framebuffer size, not window size: they differ on high-DPI displays and the surface
	// must be configured in pixels.
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.width, w.height = width, height
		if w.onResize != nil {
			w.onResize(width, height)
		}
	})
	w.width, w.height = win.GetFramebufferSize()
	return nil
}

func mouseButton(b glfw.MouseButton) (MouseButton, bool) {
	switch b {
	case glfw.MouseButtonLeft:
		return MouseButtonLeft, true
	case glfw.MouseButtonRight:
		return MouseButtonRight, true
	case glfw.MouseButtonMiddle:
		return MouseButtonMiddle, true
	}
	return 0, false
}

// Reference: https://pkg.go.dev/github.com/cogentcore/webgpu/wgpuglfw#GetSurfaceDescriptor
func platformSurfaceDescriptor(w *engineWindow) *wgpu.SurfaceDescriptor {
	if w.platform == nil {
		return nil
	}
	return wgpuglfw.GetSurfaceDescriptor(w.platform.window)
}

func platformIsRunning(w *engineWindow) bool {
	return w.platform != nil && !w.platform.window.ShouldClose()
}

func platformSetTitle(w *engineWindow, title string) {
	if w.platform != nil {
		w.platform.window.SetTitle(title)
	}
}

func platformPollEvents() {
	glfw.PollEvents()
}

func platformClose(w *engineWindow) error {
	if w.platform == nil {
		return fmt.Errorf("window is not initialized")
	}
	w.platform.window.SetShouldClose(true)
	w.platform.window.Destroy()
	w.platform = nil
	glfw.Terminate()
	return nil
}
