package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Poppler shells out to pdftotext from poppler-utils, reading the PDF from
// stdin and the text from stdout.
type Poppler struct {
	binary string
}

func NewPoppler(binary string) *Poppler {
	if binary == "" {
		binary = "pdftotext"
	}
	return &Poppler{binary: binary}
}

func (p *Poppler) Name() string { return "pdftotext" }

func (p *Poppler) Extract(ctx context.Context, data []byte) (string, error) {
	if _, err := exec.LookPath(p.binary); err != nil {
		return "", fmt.Errorf("%s not available: %w", p.binary, err)
	}

	cmd := exec.CommandContext(ctx, p.binary, "-layout", "-enc", "UTF-8", "-", "-")
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s failed: %w: %s", p.binary, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
