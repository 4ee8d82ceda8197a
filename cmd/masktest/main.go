// Command masktest runs mask generation on a single frame and reports the
// reticle classification and foreground coverage.
package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"gocv.io/x/gocv"

	_ "golang.org/x/image/tiff"

	"github.com/AllenNeuralDynamics/parallax-sub001/internal/config"
	"github.com/AllenNeuralDynamics/parallax-sub001/internal/logging"
	"github.com/AllenNeuralDynamics/parallax-sub001/internal/mask"
)

func main() {
	imagePath := flag.String("image", "", "Path to a frame (TIFF, PNG, or JPEG)")
	outPath := flag.String("out", "", "Optional path to write the generated mask")
	initial := flag.Bool("initial", false, "Use the coarser first-sighting path")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: masktest -image <path> [-out mask.png] [-initial]")
		os.Exit(1)
	}

	tuning := config.Load()
	logging.SetDebug(tuning.Debug)

	f, err := os.Open(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open image: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to decode image: %v\n", err)
		os.Exit(1)
	}

	bounds := img.Bounds()
	fmt.Printf("Loaded %s image: %dx%d pixels\n", format, bounds.Dx(), bounds.Dy())

	frame, err := gocv.ImageToMatRGBA(img)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to convert image: %v\n", err)
		os.Exit(1)
	}
	defer frame.Close()

	gen := mask.NewGenerator()
	gen.InitialDetect = *initial

	result := gen.Process(frame)
	defer result.Close()
	if result.Empty() {
		fmt.Fprintln(os.Stderr, "Mask generation produced no output")
		os.Exit(1)
	}

	foreground := gocv.CountNonZero(result)
	total := result.Rows() * result.Cols()
	fmt.Printf("Reticle detected: %v\n", gen.ReticleDetected())
	fmt.Printf("Foreground coverage: %.1f%% (%d/%d px)\n",
		100*float64(foreground)/float64(total), foreground, total)

	if *outPath != "" {
		if ok := gocv.IMWrite(*outPath, result); !ok {
			fmt.Fprintf(os.Stderr, "Failed to write mask to %s\n", *outPath)
			os.Exit(1)
		}
		fmt.Printf("Mask written to %s\n", *outPath)
	}
}
