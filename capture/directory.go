package capture

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nvr-ai/live-classify/images"
	"github.com/nvr-ai/live-classify/internal/log"
	"gocv.io/x/gocv"
)

// ImageFile represents an image file in a frame directory.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Frame is the frame number parsed from the name, or -1 when the name has none.
	Frame int
}

// LoadDirectoryImageFiles lists the image files in a directory in frame order.
//
// Files named frame-<n>.<ext> sort by n. Other image files follow in name order.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []ImageFile: The image files in replay order.
//   - error: Error if the directory cannot be read.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		switch ext {
		case ".jpg", ".jpeg", ".png", ".bmp":
		default:
			continue
		}
		frame := -1
		base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if digits, ok := strings.CutPrefix(base, "frame-"); ok {
			if n, err := strconv.Atoi(digits); err == nil && n >= 0 {
				frame = n
			}
		}
		files = append(files, ImageFile{
			Path:  filepath.Join(dir, entry.Name()),
			Frame: frame,
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		switch {
		case a.Frame >= 0 && b.Frame >= 0:
			return a.Frame < b.Frame
		case a.Frame >= 0 || b.Frame >= 0:
			return a.Frame >= 0
		default:
			return a.Path < b.Path
		}
	})

	return files, nil
}

// DecodeFunc decodes one image file.
type DecodeFunc func(path string) (image.Image, error)

// DecodeFile reads an image file with OpenCV.
func DecodeFile(path string) (image.Image, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("failed to decode %s", path)
	}
	return images.MatToImage(mat)
}

// DirectoryOptions configures a DirectorySource.
type DirectoryOptions struct {
	// Dir holds the frame images.
	Dir string
	// FPS is the replay rate.
	FPS int
	// Loop restarts from the first frame after the last one.
	Loop bool
	// Buffer is the capacity of the frame channel.
	Buffer int
	// Orientation tags each frame. Optional.
	Orientation OrientationFunc
	// Decode overrides the OpenCV decoder.
	Decode DecodeFunc
}

// DirectorySource replays numbered image files as if they came from a camera.
type DirectorySource struct {
	opts DirectoryOptions

	mu      sync.Mutex
	emitter *emitter
}

// NewDirectorySource creates a directory source. The directory is read on Start.
func NewDirectorySource(opts DirectoryOptions) *DirectorySource {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.Decode == nil {
		opts.Decode = DecodeFile
	}
	return &DirectorySource{opts: opts}
}

// Start lists the directory and starts replay at the configured rate.
//
// Arguments:
//   - ctx: Stops the replay when done.
//
// Returns:
//   - <-chan Frame: The frame channel, closed when replay stops.
//   - error: An error wrapping ErrSourceUnavailable if the directory has no images.
func (s *DirectorySource) Start(ctx context.Context) (<-chan Frame, error) {
	files, err := LoadDirectoryImageFiles(s.opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrSourceUnavailable, s.opts.Dir)
	}

	e := newEmitter(s.opts.Buffer, s.opts.Orientation)
	s.mu.Lock()
	s.emitter = e
	s.mu.Unlock()

	log.Info("🎞️ replay started", "dir", s.opts.Dir, "frames", len(files), "fps", s.opts.FPS, "session", e.sessionID)
	go s.loop(ctx, files, e)
	return e.out, nil
}

func (s *DirectorySource) loop(ctx context.Context, files []ImageFile, e *emitter) {
	defer e.close()

	ticker := time.NewTicker(time.Second / time.Duration(s.opts.FPS))
	defer ticker.Stop()

	for {
		for _, f := range files {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			img, err := s.opts.Decode(f.Path)
			if err != nil {
				log.Warn("skipping unreadable frame", "path", f.Path, "error", err)
				continue
			}
			e.emit(img, time.Now())
		}
		if !s.opts.Loop {
			log.Info("replay finished", "dir", s.opts.Dir, "emitted", e.emitted.Load(), "dropped", e.dropped.Load())
			return
		}
	}
}

// Stats returns delivery counters for the current session.
func (s *DirectorySource) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emitter == nil {
		return Stats{}
	}
	return s.emitter.stats()
}
