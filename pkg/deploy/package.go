package deploy

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
)

// BootstrapName is the entry point file name the provided.al2023 runtime
// executes.
const BootstrapName = "bootstrap"

// Package zips a built function binary into the single-file archive Lambda
// expects for custom runtimes.
func Package(binPath string) ([]byte, error) {
	bin, err := os.ReadFile(binPath)
	if err != nil {
		return nil, fmt.Errorf("reading function binary: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	hdr := &zip.FileHeader{Name: BootstrapName, Method: zip.Deflate}
	hdr.SetMode(0o755)

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(bin); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
