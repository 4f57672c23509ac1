// Command tracktest runs the tracking pipeline on a still image and prints
// the detection.
package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"hsv-tracker/internal/capture"
	"hsv-tracker/internal/hsv"
	"hsv-tracker/internal/morph"
	"hsv-tracker/internal/steer"
	"hsv-tracker/internal/track"
	"hsv-tracker/pkg/geometry"
	"hsv-tracker/ui/overlay"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/tiff"
)

func main() {
	imagePath := flag.String("image", "", "Path to image (TIFF, PNG, or JPEG)")
	hMin := flag.Int("hmin", 0, "Hue lower bound")
	hMax := flag.Int("hmax", hsv.ChannelMax, "Hue upper bound")
	sMin := flag.Int("smin", 0, "Saturation lower bound")
	sMax := flag.Int("smax", hsv.ChannelMax, "Saturation upper bound")
	vMin := flag.Int("vmin", 0, "Value lower bound")
	vMax := flag.Int("vmax", hsv.ChannelMax, "Value upper bound")
	erode := flag.Int("erode", 0, "Erode element size (0 keeps default)")
	dilate := flag.Int("dilate", 0, "Dilate element size (0 keeps default)")
	mode := flag.String("morph", morph.ModeOpenClose.String(), "Cleanup mode: open-close or aggressive")
	out := flag.String("out", "", "Write an annotated PNG here")
	maskOut := flag.String("mask", "", "Write the cleaned mask here")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: tracktest -image <path> [-hmin 0 -hmax 256 ...] [-erode 12 -dilate 8] [-out annotated.png]")
		os.Exit(1)
	}

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
	size := img.Bounds()
	fmt.Printf("Loaded %s image: %dx%d pixels\n", format, size.Dx(), size.Dy())

	frame := capture.ImageToMat(img)
	defer frame.Close()

	bounds := hsv.Bounds{HMin: *hMin, HMax: *hMax, SMin: *sMin, SMax: *sMax, VMin: *vMin, VMax: *vMax}.Clamp()
	params := morph.DefaultParams().WithMode(morph.ParseMode(*mode))
	if *erode > 0 || *dilate > 0 {
		e, d := params.ErodeSize, params.DilateSize
		if *erode > 0 {
			e = *erode
		}
		if *dilate > 0 {
			d = *dilate
		}
		params = params.WithSizes(e, d)
	}

	opts := track.DefaultOptions()
	opts.Morph = params
	pipe := track.NewPipeline(hsv.NewBoundsStore(bounds), opts)
	defer pipe.Close()

	fmt.Printf("\nParameters:\n")
	fmt.Printf("  Bounds: %s\n", bounds)
	fmt.Printf("  Cleanup: %s erode=%d dilate=%d\n", params.Mode, params.ErodeSize, params.DilateSize)

	d := pipe.Process(frame)
	sel := pipe.Selector()
	fmt.Printf("  Area band: %.0f < area < %.0f, at most %d regions\n", sel.MinArea, sel.MaxArea, sel.MaxRegions)

	fmt.Printf("\nRegions: %d\n", d.Regions)
	fmt.Printf("Status:  %s\n", d.Status)
	guides := steer.NewGuides(size.Dx(), size.Dy())
	cmd := steer.Command{Lost: true}
	if d.Found {
		box := geometry.RectCenter(d.BoundingBox)
		fmt.Printf("Target:  (%.0f, %.0f) area %.0f box %v centre (%.1f, %.1f)\n",
			d.Centroid.X, d.Centroid.Y, d.Area, d.BoundingBox, box.X, box.Y)
		cmd = guides.Classify(d.Centroid)
	}
	fmt.Printf("Command: %s\n", cmd)

	if *maskOut != "" {
		if !gocv.IMWrite(*maskOut, pipe.Mask()) {
			fmt.Fprintf(os.Stderr, "Failed to write %s\n", *maskOut)
			os.Exit(1)
		}
		fmt.Printf("Wrote mask to %s\n", *maskOut)
	}
	if *out != "" {
		overlay.Guides(&frame, guides)
		overlay.Target(&frame, d)
		if !gocv.IMWrite(*out, frame) {
			fmt.Fprintf(os.Stderr, "Failed to write %s\n", *out)
			os.Exit(1)
		}
		fmt.Printf("Wrote annotated image to %s\n", *out)
	}
}
