// Package imaging implements the task executor bodies: one transform applied
// to one decoded image. Callers treat these as opaque units of work that
// report coarse progress and either produce an output image or fail.
package imaging

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/radiumworks/imagepipe/pkg/models"
)

const (
	blurRadius   = 5
	resizeWidth  = 512
	resizeHeight = 512
)

// ProgressFunc receives progress percentages in [0,100]. Reported values are
// non-decreasing within one Process call.
type ProgressFunc func(percent int)

// Process decodes the image on r, applies the operation and encodes the
// result to w in the input's format. Progress is reported after decode,
// after transform and after encode.
func Process(ctx context.Context, operation string, r io.Reader, w io.Writer, report ProgressFunc) error {
	if report == nil {
		report = func(int) {}
	}

	img, format, err := image.Decode(r)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	report(10)

	if err := ctx.Err(); err != nil {
		return err
	}

	var out image.Image
	switch operation {
	case models.OperationBlur:
		out = boxBlur(img, blurRadius)
	case models.OperationResize:
		out = resizeNearest(img, resizeWidth, resizeHeight)
	case models.OperationGrayscale:
		out = grayscale(img)
	default:
		return fmt.Errorf("unknown operation: %q", operation)
	}
	report(50)

	if err := ctx.Err(); err != nil {
		return err
	}

	switch format {
	case "jpeg":
		err = jpeg.Encode(w, out, nil)
	default:
		err = png.Encode(w, out)
	}
	if err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	report(90)

	return nil
}

// OutputName derives the processed-artifact name from the input name:
// scan.png becomes scan_processed.png. Deterministic per input, so outputs
// of two tasks in one job collide only if their inputs did.
func OutputName(inputName string) string {
	ext := filepath.Ext(inputName)
	stem := strings.TrimSuffix(inputName, ext)
	return stem + "_processed" + ext
}

// boxBlur applies a separable box blur. Coarser than a true Gaussian but
// visually close for the small radius used here.
func boxBlur(img image.Image, radius int) image.Image {
	b := img.Bounds()
	horiz := image.NewRGBA(b)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var r, g, bl, a, n uint32
			for dx := -radius; dx <= radius; dx++ {
				xx := x + dx
				if xx < b.Min.X || xx >= b.Max.X {
					continue
				}
				pr, pg, pb, pa := img.At(xx, y).RGBA()
				r += pr
				g += pg
				bl += pb
				a += pa
				n++
			}
			horiz.Set(x, y, color.RGBA64{
				R: uint16(r / n), G: uint16(g / n), B: uint16(bl / n), A: uint16(a / n),
			})
		}
	}

	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var r, g, bl, a, n uint32
			for dy := -radius; dy <= radius; dy++ {
				yy := y + dy
				if yy < b.Min.Y || yy >= b.Max.Y {
					continue
				}
				pr, pg, pb, pa := horiz.At(x, yy).RGBA()
				r += pr
				g += pg
				bl += pb
				a += pa
				n++
			}
			out.Set(x, y, color.RGBA64{
				R: uint16(r / n), G: uint16(g / n), B: uint16(bl / n), A: uint16(a / n),
			})
		}
	}
	return out
}

// resizeNearest scales to w x h by nearest-neighbor sampling.
func resizeNearest(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		srcY := b.Min.Y + y*b.Dy()/h
		for x := 0; x < w; x++ {
			srcX := b.Min.X + x*b.Dx()/w
			out.Set(x, y, img.At(srcX, srcY))
		}
	}
	return out
}

func grayscale(img image.Image) image.Image {
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return out
}
