package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/dalle-mcp-server/internal/imagegen"
	"github.com/fpang/dalle-mcp-server/internal/params"
	"github.com/fpang/dalle-mcp-server/internal/retention"
)

func (s *Server) generateImage(ctx context.Context, args json.RawMessage) *mcp.CallToolResult {
	p, err := params.ValidateJSON(orEmptyObject(args))
	if err != nil {
		if ve, ok := params.AsValidationError(err); ok {
			return errorResult(fmt.Sprintf("Invalid %s: %s", ve.Field, ve.Message))
		}
		return errorResult(err.Error())
	}

	if s.deps.Generator == nil {
		return errorResult(imagegen.ErrNoAPIKey.Error())
	}

	res, err := s.deps.Generator.Generate(ctx, *p)
	if err != nil {
		if errors.Is(err, imagegen.ErrEmptyResponse) {
			return errorResult(err.Error())
		}
		return errorResult("Image generation failed: " + imagegen.UpstreamMessage(err))
	}

	return generationResult(res)
}

// generationResult returns b64 images as image content and the remaining
// metadata as JSON text, so the base64 payload is not sent twice.
func generationResult(res *imagegen.Result) *mcp.CallToolResult {
	var images []mcp.Content
	summary := *res
	summary.Images = make([]imagegen.Image, len(res.Images))
	for i, img := range res.Images {
		if img.B64JSON != "" {
			if data, err := base64.StdEncoding.DecodeString(img.B64JSON); err == nil {
				images = append(images, &mcp.ImageContent{Data: data, MIMEType: imageMIMEType(data)})
				img.B64JSON = ""
			} else {
				log.Warn().Err(err).Int("index", i).Msg("Could not decode b64_json image for tool result")
			}
		}
		summary.Images[i] = img
	}

	out := jsonResult(summary)
	if out.IsError {
		return out
	}
	out.Content = append(out.Content, images...)
	return out
}

// imageMIMEType sniffs the decoded bytes. The images API returns PNG unless
// told otherwise, so PNG is the fallback for unrecognised data.
func imageMIMEType(data []byte) string {
	if mime := http.DetectContentType(data); strings.HasPrefix(mime, "image/") {
		return mime
	}
	return "image/png"
}

func (s *Server) listModels(ctx context.Context, args json.RawMessage) *mcp.CallToolResult {
	return jsonResult(map[string]any{"models": params.Models()})
}

type cleanupArgs struct {
	DryRun        *bool    `json:"dry_run"`
	RetentionDays *float64 `json:"retention_days"`
	MaxFiles      *int     `json:"max_files"`
}

var cleanupFieldNames = map[string]string{
	"retentionDays": "retention_days",
	"maxFiles":      "max_files",
}

func (s *Server) cleanupImages(ctx context.Context, args json.RawMessage) *mcp.CallToolResult {
	var a cleanupArgs
	if err := json.Unmarshal(orEmptyObject(args), &a); err != nil {
		return errorResult("Invalid arguments: " + err.Error())
	}

	policy, err := retention.Overrides{
		DryRun:        a.DryRun,
		RetentionDays: a.RetentionDays,
		MaxFiles:      a.MaxFiles,
	}.Apply(s.deps.Policy)
	if err != nil {
		var pe *retention.PolicyError
		if errors.As(err, &pe) {
			return errorResult(fmt.Sprintf("Invalid %s: %s", cleanupFieldNames[pe.Field], pe.Message))
		}
		return errorResult(err.Error())
	}

	res, err := s.deps.Sweeper.Cleanup(ctx, s.deps.OutputDir, policy)
	if err != nil {
		return errorResult("Cleanup failed: " + err.Error())
	}
	return jsonResult(res)
}

func (s *Server) imageStats(ctx context.Context, args json.RawMessage) *mcp.CallToolResult {
	stats, err := s.deps.Sweeper.Stats(ctx, s.deps.OutputDir)
	if err != nil {
		return errorResult("Failed to read image directory: " + err.Error())
	}
	return jsonResult(stats)
}

func orEmptyObject(args json.RawMessage) []byte {
	if len(args) == 0 || string(args) == "null" {
		return []byte("{}")
	}
	return args
}
