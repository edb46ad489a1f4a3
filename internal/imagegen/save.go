package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"
)

// MaxImageBytes caps a single downloaded or decoded image.
const MaxImageBytes = 50 << 20

const partialSuffix = ".partial"

type savedFile struct {
	path   string
	size   int64
	width  int
	height int
}

var formatExtensions = map[string]string{
	"png":  ".png",
	"jpeg": ".jpg",
	"gif":  ".gif",
	"webp": ".webp",
}

func (c *Client) saveBase64(data, name string) (*savedFile, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode b64_json image: %w", err)
	}
	if len(raw) > MaxImageBytes {
		return nil, fmt.Errorf("image is %d bytes, limit is %d", len(raw), MaxImageBytes)
	}
	return c.writeImage(bytes.NewReader(raw), name)
}

// download fetches url into the output directory. The transfer is bounded
// by the download timeout; the partial file is removed on any failure.
func (c *Client) download(ctx context.Context, url, name string) (*savedFile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	log.Debug().Str("name", name).Int64("content_length", resp.ContentLength).Msg("Downloading generated image")
	return c.writeImage(resp.Body, name)
}

// writeImage streams r into <name>.partial, checks that it decodes as a
// supported image, then renames it to <name>.<ext>.
func (c *Client) writeImage(r io.Reader, name string) (saved *savedFile, err error) {
	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	partial := filepath.Join(c.outputDir, name+partialSuffix)
	f, err := os.Create(partial)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", partial, err)
	}
	defer func() {
		if err != nil {
			os.Remove(partial)
		}
	}()

	n, err := io.Copy(f, io.LimitReader(r, MaxImageBytes+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write image: %w", err)
	}
	if n > MaxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", MaxImageBytes)
	}

	cfg, format, err := decodeConfig(partial)
	if err != nil {
		return nil, err
	}
	ext, ok := formatExtensions[format]
	if !ok {
		return nil, fmt.Errorf("unsupported image format %q", format)
	}

	final := filepath.Join(c.outputDir, name+ext)
	if err = os.Rename(partial, final); err != nil {
		return nil, fmt.Errorf("failed to finalize %s: %w", final, err)
	}

	log.Info().
		Str("path", final).
		Int64("bytes", n).
		Str("format", format).
		Msg("Saved generated image")

	return &savedFile{path: final, size: n, width: cfg.Width, height: cfg.Height}, nil
}

func decodeConfig(path string) (image.Config, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", fmt.Errorf("failed to reopen image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return image.Config{}, "", fmt.Errorf("downloaded data is not a supported image: %w", err)
	}
	return cfg, format, nil
}
