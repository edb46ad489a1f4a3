package cli

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/dalle-mcp-server/internal/auth"
	"github.com/fpang/dalle-mcp-server/internal/config"
	"github.com/fpang/dalle-mcp-server/internal/imagegen"
)

const keyCheckTimeout = 15 * time.Second

// ClientOptions maps configuration onto imagegen options for apiKey.
func ClientOptions(cfg *config.Config, apiKey string, archiver imagegen.Archiver) imagegen.Options {
	return imagegen.Options{
		APIKey:          apiKey,
		BaseURL:         cfg.OpenAIBaseURL,
		OrgID:           cfg.OpenAIOrg,
		OutputDir:       cfg.OutputDir,
		RequestTimeout:  cfg.RequestTimeout,
		DownloadTimeout: cfg.DownloadTimeout,
		SaveByDefault:   cfg.SaveDefault,
		Archiver:        archiver,
	}
}

// InitImageClient resolves the API key, checks it against the models
// endpoint, and builds the generation client. When no key can be found it
// returns a nil client and the *auth.ValidationError. A key that fails the
// check is logged and still used.
func InitImageClient(ctx context.Context, cfg *config.Config, archiver imagegen.Archiver) (*imagegen.Client, error) {
	apiKey, source, err := auth.ResolveAPIKey(ctx, auth.KeySources{
		Env:      cfg.APIKey,
		SSMParam: cfg.SSMAPIKeyParam,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("source", string(source)).Msg("API key resolved")

	opts := ClientOptions(cfg, apiKey, archiver)

	checkCtx, cancel := context.WithTimeout(ctx, keyCheckTimeout)
	defer cancel()
	if err := auth.ValidateAPIKey(checkCtx, imagegen.NewOpenAIClient(opts)); err != nil {
		log.Warn().Err(err).Msg(ValidationHint(err))
	} else {
		log.Info().Msg("API key validation complete - ready for operations")
	}

	return imagegen.New(opts)
}
