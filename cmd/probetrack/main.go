// Command probetrack runs the probe detection pipeline over a video file
// or a directory of still frames and prints every confirmed tip sighting.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gocv.io/x/gocv"

	"github.com/AllenNeuralDynamics/parallax-sub001/internal/config"
	"github.com/AllenNeuralDynamics/parallax-sub001/internal/logging"
	"github.com/AllenNeuralDynamics/parallax-sub001/internal/trackmgr"
)

func main() {
	videoPath := flag.String("video", "", "Path to a video file")
	dirPath := flag.String("dir", "", "Path to a directory of still frames")
	sn := flag.String("sn", "SN0001", "Probe serial number to track")
	camera := flag.String("camera", "cam0", "Camera name")
	delay := flag.Duration("delay", 30*time.Millisecond, "Delay between submitted frames")
	flag.Parse()

	if *videoPath == "" && *dirPath == "" {
		fmt.Println("Usage: probetrack -video <path> | -dir <path> [-sn SN0001] [-camera cam0]")
		os.Exit(1)
	}

	tuning := config.Load()
	logging.SetDebug(tuning.Debug)

	fmt.Printf("Camera: %s  probe: %s\n", *camera, *sn)
	fmt.Printf("Working resolution: %dx%d\n", tuning.FrameWidth, tuning.FrameHeight)

	sightings := 0
	mgr := trackmgr.NewManager(*camera, tuning, func(r trackmgr.Result) {
		sightings++
		fmt.Printf("%s  %s  tip=(%d,%d)\n",
			r.Timestamp.Format(time.RFC3339Nano), r.SN, r.Tip.X, r.Tip.Y)
	})
	mgr.Start()
	defer mgr.Stop()
	mgr.StartDetection(*sn)

	var frames int
	var err error
	if *videoPath != "" {
		frames, err = feedVideo(mgr, *videoPath, *delay)
	} else {
		frames, err = feedStills(mgr, *dirPath, *delay)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Frame source failed: %v\n", err)
		os.Exit(1)
	}

	// Let the worker drain the last frame before stopping.
	time.Sleep(2 * *delay)
	mgr.StopDetection(*sn)
	mgr.Stop()

	fmt.Printf("\nProcessed %d frames, %d sightings\n", frames, sightings)
}

func feedVideo(mgr *trackmgr.Manager, path string, delay time.Duration) (int, error) {
	vc, err := gocv.OpenVideoCapture(path)
	if err != nil {
		return 0, fmt.Errorf("open video %s: %w", path, err)
	}
	defer vc.Close()

	img := gocv.NewMat()
	defer img.Close()

	frames := 0
	for vc.Read(&img) {
		if img.Empty() {
			continue
		}
		mgr.Process(img, time.Now())
		frames++
		time.Sleep(delay)
	}
	return frames, nil
}

func feedStills(mgr *trackmgr.Manager, dir string, delay time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	frames := 0
	for _, p := range paths {
		img := gocv.IMRead(p, gocv.IMReadColor)
		if img.Empty() {
			fmt.Fprintf(os.Stderr, "Skipping unreadable frame %s\n", p)
			continue
		}
		mgr.Process(img, time.Now())
		img.Close()
		frames++
		time.Sleep(delay)
	}
	return frames, nil
}
