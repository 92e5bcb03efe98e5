package volume

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "image/jpeg"
)

// ReadStack loads a label volume from a directory of image slices. Files are
// sorted by the numeric part of their name so that slice order matches the
// anatomical/z order of the stack. Pixel gray values become labels; 16-bit
// PNG is the lossless interchange format, but any grayscale image the stdlib
// decoders understand is accepted.
func ReadStack(dir string, res Resolution) (*LabelVolume, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read stack directory: %w", err)
	}

	var imageFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".png" || ext == ".jpg" || ext == ".jpeg" {
			imageFiles = append(imageFiles, entry.Name())
		}
	}
	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("no image slices found in %s", dir)
	}

	// Sort by the numeric part of the filename to keep slice order stable
	// regardless of zero padding.
	sort.Slice(imageFiles, func(i, j int) bool {
		ni, nj := extractNumber(imageFiles[i]), extractNumber(imageFiles[j])
		if ni != nj {
			return ni < nj
		}
		return imageFiles[i] < imageFiles[j]
	})

	var vol *LabelVolume
	for z, name := range imageFiles {
		img, err := loadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load slice %s: %w", name, err)
		}

		bounds := img.Bounds()
		if vol == nil {
			vol, err = New(bounds.Dx(), bounds.Dy(), len(imageFiles), res)
			if err != nil {
				return nil, err
			}
		} else if bounds.Dx() != vol.width || bounds.Dy() != vol.height {
			return nil, fmt.Errorf("slice %s has dimensions %dx%d, expected %dx%d",
				name, bounds.Dx(), bounds.Dy(), vol.width, vol.height)
		}

		for y := 0; y < vol.height; y++ {
			for x := 0; x < vol.width; x++ {
				vol.SetAt(x, y, z, pixelLabel(img, bounds.Min.X+x, bounds.Min.Y+y))
			}
		}
	}

	return vol, nil
}

// WriteStack writes a label volume as a directory of 16-bit gray PNG slices,
// one file per z position. Labels above 65535 cannot be represented in this
// format and cause an error.
func WriteStack(vol *LabelVolume, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create stack directory: %w", err)
	}

	for z := 0; z < vol.depth; z++ {
		img := image.NewGray16(image.Rect(0, 0, vol.width, vol.height))
		for y := 0; y < vol.height; y++ {
			for x := 0; x < vol.width; x++ {
				label := vol.At(x, y, z)
				if label > 65535 {
					return fmt.Errorf("label %d at (%d,%d,%d) exceeds 16-bit slice format", label, x, y, z)
				}
				img.SetGray16(x, y, color.Gray16{Y: uint16(label)})
			}
		}

		path := filepath.Join(dir, fmt.Sprintf("slice_%04d.png", z))
		if err := saveSlicePNG(img, path); err != nil {
			return fmt.Errorf("failed to save slice %d: %w", z, err)
		}
	}

	return nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

func saveSlicePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return png.Encode(f, img)
}

// pixelLabel maps a pixel to its label value. Gray16 pixels map one to one;
// other color models fall back to their 16-bit luminance.
func pixelLabel(img image.Image, x, y int) uint64 {
	switch im := img.(type) {
	case *image.Gray16:
		return uint64(im.Gray16At(x, y).Y)
	case *image.Gray:
		return uint64(im.GrayAt(x, y).Y)
	default:
		c := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
		return uint64(c.Y)
	}
}

// extractNumber extracts the numeric part of a filename, 0 if none.
func extractNumber(filename string) int {
	var numStr strings.Builder
	for _, c := range filepath.Base(filename) {
		if c >= '0' && c <= '9' {
			numStr.WriteRune(c)
		}
	}
	if numStr.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(numStr.String())
	if err != nil {
		return 0
	}
	return n
}
