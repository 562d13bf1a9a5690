package presentation

import (
	"image"
	"image/color"

	"github.com/nvr-ai/live-classify/capture"
	"github.com/nvr-ai/live-classify/inference"
	"github.com/nvr-ai/live-classify/internal/log"
	"github.com/nvr-ai/live-classify/orientation"
	"gocv.io/x/gocv"
)

// Size of the blank canvas shown until the first preview frame arrives.
const (
	blankWidth  = 640
	blankHeight = 480
)

var (
	textColor   = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	shadowColor = color.RGBA{A: 0}
)

// WindowSink shows the live preview with the latest results drawn over it.
//
// HighGUI windows must be driven from the OS thread that created them, so every
// method runs on the presentation goroutine locked to the main thread.
type WindowSink struct {
	window  *gocv.Window
	preview gocv.Mat
	canvas  gocv.Mat
	result  inference.Result
	loading LoadingState

	rotations chan<- orientation.DeviceOrientation
	onQuit    func()
}

// NewWindowSink opens a preview window.
//
// Arguments:
//   - title: The window title.
//   - rotations: Receives simulated rotation events from number keys. May be nil.
//   - onQuit: Called when q or Esc is pressed. May be nil.
//
// Returns:
//   - *WindowSink: The sink. Close it to release the window.
func NewWindowSink(title string, rotations chan<- orientation.DeviceOrientation, onQuit func()) *WindowSink {
	return &WindowSink{
		window:    gocv.NewWindow(title),
		preview:   gocv.NewMat(),
		canvas:    gocv.NewMat(),
		rotations: rotations,
		onQuit:    onQuit,
	}
}

// Display replaces the overlay results.
func (s *WindowSink) Display(results inference.Result) {
	s.result = results
	s.render()
}

// ShowLoading draws the loading text until the first result arrives.
func (s *WindowSink) ShowLoading() {
	if s.loading.Show() {
		s.render()
	}
}

// HideLoading removes the loading text.
func (s *WindowSink) HideLoading(permanently bool) {
	if s.loading.Hide(permanently) {
		s.render()
	}
}

// Preview replaces the preview image with the frame and redraws.
func (s *WindowSink) Preview(frame capture.Frame) {
	if frame.Image == nil {
		return
	}
	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		log.Warn("failed to convert preview frame", "seq", frame.Seq, "error", err)
		return
	}
	s.preview.Close()
	s.preview = mat
	s.render()
}

// Poll pumps window events and handles a pending key press. It keeps the keys
// working while no frames arrive.
func (s *WindowSink) Poll() {
	s.handleKey(s.window.WaitKey(1))
}

func (s *WindowSink) render() {
	fillCanvas(s.preview, &s.canvas)

	for i, line := range OverlayLines(s.result, s.loading.Visible()) {
		pt := image.Pt(12, 28+i*24)
		gocv.PutText(&s.canvas, line, pt.Add(image.Pt(1, 1)), gocv.FontHersheySimplex, 0.6, shadowColor, 2)
		gocv.PutText(&s.canvas, line, pt, gocv.FontHersheySimplex, 0.6, textColor, 1)
	}

	s.window.IMShow(s.canvas)
	s.handleKey(s.window.WaitKey(1))
}

// fillCanvas copies preview into canvas, or clears canvas to a blank frame when
// there is no preview yet.
func fillCanvas(preview gocv.Mat, canvas *gocv.Mat) {
	if !preview.Empty() {
		preview.CopyTo(canvas)
		return
	}
	if canvas.Rows() != blankHeight || canvas.Cols() != blankWidth || canvas.Type() != gocv.MatTypeCV8UC3 {
		canvas.Close()
		*canvas = gocv.NewMatWithSize(blankHeight, blankWidth, gocv.MatTypeCV8UC3)
	}
	canvas.SetTo(gocv.NewScalar(0, 0, 0, 0))
}

func (s *WindowSink) handleKey(key int) {
	if key < 0 {
		return
	}
	if IsQuitKey(key) {
		if s.onQuit != nil {
			s.onQuit()
		}
		return
	}
	d, ok := KeyOrientation(key)
	if !ok || s.rotations == nil {
		return
	}
	select {
	case s.rotations <- d:
	default:
		log.Debug("rotation event dropped", "device", d.String())
	}
}

// Close releases the window and its buffers.
func (s *WindowSink) Close() error {
	s.preview.Close()
	s.canvas.Close()
	return s.window.Close()
}
