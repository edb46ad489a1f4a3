// Package imagegen calls the OpenAI image API with validated parameters and
// optionally saves the returned images into the output directory that the
// retention sweeper manages.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/fpang/dalle-mcp-server/internal/params"
)

const (
	DefaultRequestTimeout  = 120 * time.Second
	DefaultDownloadTimeout = 30 * time.Second
)

// ImageAPI is the part of the OpenAI client used for generation.
type ImageAPI interface {
	CreateImage(ctx context.Context, request openai.ImageRequest) (openai.ImageResponse, error)
}

// Archiver copies a saved image somewhere durable and returns its location.
type Archiver interface {
	Archive(ctx context.Context, localPath string) (string, error)
}

// Options configures a Client.
type Options struct {
	APIKey          string
	BaseURL         string
	OrgID           string
	OutputDir       string
	RequestTimeout  time.Duration
	DownloadTimeout time.Duration
	// SaveByDefault applies when a request leaves save unset.
	SaveByDefault bool
	HTTPClient    *http.Client
	Archiver      Archiver
}

// Client generates images and persists them on request.
type Client struct {
	api             ImageAPI
	httpClient      *http.Client
	outputDir       string
	requestTimeout  time.Duration
	downloadTimeout time.Duration
	saveByDefault   bool
	archiver        Archiver
	now             func() time.Time
}

// New creates a Client backed by go-openai.
func New(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewWithAPI(NewOpenAIClient(opts), opts), nil
}

// NewOpenAIClient builds the go-openai client described by opts. It is also
// used on its own to validate the key via the models endpoint.
func NewOpenAIClient(opts Options) *openai.Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.OrgID != "" {
		cfg.OrgID = opts.OrgID
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	return openai.NewClientWithConfig(cfg)
}

// NewWithAPI creates a Client around an existing ImageAPI.
func NewWithAPI(api ImageAPI, opts Options) *Client {
	c := &Client{
		api:             api,
		httpClient:      opts.HTTPClient,
		outputDir:       opts.OutputDir,
		requestTimeout:  opts.RequestTimeout,
		downloadTimeout: opts.DownloadTimeout,
		saveByDefault:   opts.SaveByDefault,
		archiver:        opts.Archiver,
		now:             time.Now,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = DefaultRequestTimeout
	}
	if c.downloadTimeout <= 0 {
		c.downloadTimeout = DefaultDownloadTimeout
	}
	return c
}

// OutputDir is the directory saved images are written to.
func (c *Client) OutputDir() string { return c.outputDir }

// Image is one generated image.
type Image struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revisedPrompt,omitempty"`
	LocalPath     string `json:"localPath,omitempty"`
	Bytes         int64  `json:"bytes,omitempty"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	ArchiveKey    string `json:"archiveKey,omitempty"`
	SaveError     string `json:"saveError,omitempty"`
}

// Result is the outcome of one generation call.
type Result struct {
	ID         string            `json:"id"`
	Parameters params.Parameters `json:"parameters"`
	Images     []Image           `json:"images"`
	Saved      bool              `json:"saved"`
	CreatedAt  time.Time         `json:"createdAt"`
	DurationMs int64             `json:"durationMs"`
}

// Generate calls the image API with p. The parameters must already be
// validated. Saving failures are reported per image and do not fail the call.
func (c *Client) Generate(ctx context.Context, p params.Parameters) (*Result, error) {
	start := c.now()
	id := uuid.NewString()
	save := p.ShouldSave(c.saveByDefault)

	logger := log.With().Str("generation_id", id).Logger()
	logger.Info().
		Str("model", string(p.Model)).
		Str("size", p.Size).
		Str("quality", p.Quality).
		Str("style", p.Style).
		Int("n", p.N).
		Bool("save", save).
		Int("prompt_length", len(p.Prompt)).
		Msg("Generating image")

	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.api.CreateImage(reqCtx, toRequest(p))
	if err != nil {
		logger.Error().Err(err).Int("upstream_status", UpstreamStatus(err)).Msg("Image generation failed")
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmptyResponse
	}

	result := &Result{
		ID:         id,
		Parameters: p,
		Images:     make([]Image, 0, len(resp.Data)),
		Saved:      save,
		CreatedAt:  start.UTC(),
	}

	for i, d := range resp.Data {
		img := Image{URL: d.URL, B64JSON: d.B64JSON, RevisedPrompt: d.RevisedPrompt}
		if save {
			c.saveInto(ctx, &img, fmt.Sprintf("%s-%d", baseName(start, id), i+1))
			if img.SaveError != "" {
				logger.Warn().Int("index", i).Str("error", img.SaveError).Msg("Failed to save generated image")
			}
		}
		result.Images = append(result.Images, img)
	}

	result.DurationMs = c.now().Sub(start).Milliseconds()
	logger.Info().
		Int("images", len(result.Images)).
		Int64("duration_ms", result.DurationMs).
		Msg("Image generation complete")

	return result, nil
}

func toRequest(p params.Parameters) openai.ImageRequest {
	req := openai.ImageRequest{
		Prompt:  p.Prompt,
		Model:   string(p.Model),
		N:       p.N,
		Size:    p.Size,
		Quality: p.Quality,
		Style:   p.Style,
	}
	switch p.ResponseFormat {
	case "b64_json":
		req.ResponseFormat = openai.CreateImageResponseFormatB64JSON
	case "url":
		req.ResponseFormat = openai.CreateImageResponseFormatURL
	}
	return req
}

func (c *Client) saveInto(ctx context.Context, img *Image, name string) {
	var (
		saved *savedFile
		err   error
	)
	switch {
	case img.B64JSON != "":
		saved, err = c.saveBase64(img.B64JSON, name)
	case img.URL != "":
		saved, err = c.download(ctx, img.URL, name)
	default:
		err = errors.New("response carried neither url nor b64_json")
	}
	if err != nil {
		img.SaveError = err.Error()
		return
	}

	img.LocalPath = saved.path
	img.Bytes = saved.size
	img.Width = saved.width
	img.Height = saved.height

	if c.archiver != nil {
		key, err := c.archiver.Archive(ctx, saved.path)
		if err != nil {
			log.Warn().Err(err).Str("path", saved.path).Msg("Failed to archive saved image")
			return
		}
		img.ArchiveKey = key
	}
}

func baseName(t time.Time, id string) string {
	return fmt.Sprintf("dalle-%s-%s", t.UTC().Format("20060102-150405"), id[:8])
}
