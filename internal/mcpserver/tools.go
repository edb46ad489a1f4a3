package mcpserver

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fpang/dalle-mcp-server/internal/params"
)

func generateImageTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "generate_image",
		Description: "Generate images with DALL-E. Unsupported combinations are rejected before any API call is made.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"prompt": {
					Type:        "string",
					Description: "Text description of the image, 1 to 4000 characters.",
				},
				"model": {
					Type:        "string",
					Description: "Model to use. Defaults to dall-e-3.",
					Enum:        []any{string(params.ModelDallE2), string(params.ModelDallE3)},
				},
				"size": {
					Type:        "string",
					Description: "Image size. dall-e-2: 256x256, 512x512, 1024x1024. dall-e-3: 1024x1024, 1792x1024, 1024x1792.",
					Enum:        stringsToAny(params.Sizes()),
				},
				"quality": {
					Type:        "string",
					Description: "standard or hd (hd is dall-e-3 only).",
					Enum:        []any{"standard", "hd"},
				},
				"style": {
					Type:        "string",
					Description: "vivid or natural (dall-e-3 only, ignored for dall-e-2).",
					Enum:        []any{"vivid", "natural"},
				},
				"n": {
					Types:       []string{"integer", "string"},
					Description: "Number of images. 1 to 10 for dall-e-2, exactly 1 for dall-e-3.",
				},
				"response_format": {
					Type:        "string",
					Description: "url or b64_json.",
					Enum:        []any{"url", "b64_json"},
				},
				"save": {
					Types:       []string{"boolean", "string", "number"},
					Description: "Save the images to the output directory.",
				},
			},
			Required: []string{"prompt"},
		},
	}
}

func listModelsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_models",
		Description: "List the supported DALL-E models with their sizes, qualities, styles and image counts.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}
}

func cleanupImagesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "cleanup_images",
		Description: "Delete saved images older than the retention period or beyond the file cap.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"dry_run": {
					Type:        "boolean",
					Description: "Report what would be deleted without deleting.",
				},
				"retention_days": {
					Type:        "number",
					Description: "Override the configured retention period, in days.",
				},
				"max_files": {
					Type:        "integer",
					Description: "Override the configured file cap. 0 means unlimited.",
				},
			},
		},
	}
}

func imageStatsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "image_stats",
		Description: "Describe the saved images: count, total size, oldest and newest file.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
