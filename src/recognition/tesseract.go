package recognition

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// TesseractEngine shells out to the tesseract binary. Exec is preferred over
// CGO bindings for simplicity; the binary path is configuration.
type TesseractEngine struct {
	// Binary defaults to "tesseract" on PATH.
	Binary string
}

// Available reports whether the binary can be found.
func (e *TesseractEngine) Available() bool {
	_, err := exec.LookPath(e.binary())
	return err == nil
}

// Recognize runs tesseract over the image file and returns trimmed stdout.
func (e *TesseractEngine) Recognize(ctx context.Context, imagePath string, languages []string) (string, error) {
	cmd := exec.CommandContext(ctx, e.binary(), tesseractArgs(imagePath, languages)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (e *TesseractEngine) binary() string {
	if e.Binary != "" {
		return e.Binary
	}
	return "tesseract"
}

// tesseractArgs builds the invocation: image to stdout, joined language
// hints, fully automatic page segmentation.
func tesseractArgs(imagePath string, languages []string) []string {
	lang := "eng"
	if len(languages) > 0 {
		lang = strings.Join(languages, "+")
	}
	return []string{imagePath, "stdout", "-l", lang, "--psm", "3"}
}
