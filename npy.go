package cococonv

// NumPy array files for label planes.

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zip"
)

const (
	npyMagic     = "\x93NUMPY"
	npyAlignment = 64
	npzArrayName = "arr_0.npy" // Name numpy.savez gives to its first positional array.
)

// writeNPY writes the plane as a version 1.0 .npy array of little-endian int32 with shape
// (height, width).
func writeNPY(w io.Writer, plane *LabelPlane) error {
	header := fmt.Sprintf("{'descr': '<i4', 'fortran_order': False, 'shape': (%d, %d), }",
		plane.Height, plane.Width)

	// Pad with spaces so that the data starts aligned, with the header ending in a newline.
	prefixLen := len(npyMagic) + 2 + 2
	total := prefixLen + len(header) + 1
	if rem := total % npyAlignment; rem != 0 {
		header += strings.Repeat(" ", npyAlignment-rem)
	}
	header += "\n"

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(npyMagic); err != nil {
		return err
	}
	if _, err := bw.Write([]byte{1, 0}); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	if _, err := bw.WriteString(header); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, plane.Pix); err != nil {
		return err
	}

	return bw.Flush()
}

// saveNPY writes the plane to path as an .npy file.
func saveNPY(path string, plane *LabelPlane) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer closeWithErrCheck(f, &err)

	return writeNPY(f, plane)
}

// saveNPZ writes the plane to path as a deflate compressed .npz archive holding a single
// array, as numpy.savez_compressed does.
func saveNPZ(path string, plane *LabelPlane) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer closeWithErrCheck(f, &err)

	zw := zip.NewWriter(f)
	entry, err := zw.CreateHeader(&zip.FileHeader{Name: npzArrayName, Method: zip.Deflate})
	if err != nil {
		return err
	}
	if err := writeNPY(entry, plane); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}

	return zw.Close()
}
