package auth

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

const (
	credentialDir  = ".dalle-mcp"
	credentialFile = "credentials.gpg"
)

// ParameterGetter is the subset of *ssm.Client used to read the API key.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// KeySources lists where an OpenAI API key may come from.
type KeySources struct {
	// Env is the value of OPENAI_API_KEY, already read by the config layer.
	Env string
	// SSMParam is an SSM SecureString parameter name. Empty skips SSM.
	SSMParam string
	// SSM is the client used for SSMParam. When nil one is built from the
	// default AWS credential chain.
	SSM ParameterGetter
	// GPGFile overrides ~/.dalle-mcp/credentials.gpg.
	GPGFile string
}

// Source names where a key was found.
type Source string

const (
	SourceEnv Source = "env"
	SourceSSM Source = "ssm"
	SourceGPG Source = "gpg"
)

// ResolveAPIKey retrieves the OpenAI API key.
// Priority order:
//  1. OPENAI_API_KEY environment variable
//  2. SSM parameter named by SSM_API_KEY_PARAM
//  3. GPG-encrypted file at ~/.dalle-mcp/credentials.gpg
func ResolveAPIKey(ctx context.Context, src KeySources) (string, Source, error) {
	if key := strings.TrimSpace(src.Env); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return key, SourceEnv, nil
	}

	var errs []string

	if src.SSMParam != "" {
		key, err := getFromSSM(ctx, src.SSM, src.SSMParam)
		if err == nil && key != "" {
			log.Debug().Str("param", src.SSMParam).Msg("Using API key from SSM Parameter Store")
			return key, SourceSSM, nil
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	key, err := getFromGPG(src.GPGFile)
	if err == nil && key != "" {
		log.Debug().Msg("Using API key from GPG encrypted file")
		return key, SourceGPG, nil
	}
	if err != nil {
		errs = append(errs, err.Error())
	}

	log.Warn().Strs("attempts", errs).Msg("No OpenAI API key found")
	return "", "", &ValidationError{
		Type:    ErrTypeNoKey,
		Message: "API key not found. Set OPENAI_API_KEY, SSM_API_KEY_PARAM, or run scripts/setup-gpg-credentials.sh",
	}
}

func getFromSSM(ctx context.Context, client ParameterGetter, name string) (string, error) {
	if client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = ssm.NewFromConfig(cfg)
	}

	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read SSM parameter %s: %w", name, err)
	}
	if out.Parameter == nil {
		return "", fmt.Errorf("SSM parameter %s has no value", name)
	}
	return strings.TrimSpace(aws.ToString(out.Parameter.Value)), nil
}

// getFromGPG decrypts the API key from the GPG-encrypted credentials file.
func getFromGPG(credPath string) (string, error) {
	if credPath == "" {
		p, err := getCredentialPath()
		if err != nil {
			return "", err
		}
		credPath = p
	}

	if _, err := os.Stat(credPath); os.IsNotExist(err) {
		return "", fmt.Errorf("GPG credentials file not found at %s", credPath)
	}

	log.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")

	args := []string{"--decrypt", "--quiet"}

	if passphrasePath, err := getPassphrasePath(); err == nil {
		if fi, statErr := os.Stat(passphrasePath); statErr == nil {
			// Passphrase file must be owner-only.
			mode := fi.Mode().Perm()
			if mode&0077 != 0 {
				log.Warn().
					Str("passphrase_file", passphrasePath).
					Str("permissions", fmt.Sprintf("%04o", mode)).
					Msg("Passphrase file has insecure permissions (should be 0600); skipping")
			} else {
				args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", passphrasePath)
			}
		}
	}

	args = append(args, credPath)
	output, err := exec.Command("gpg", args...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("GPG decryption failed: %s", string(exitErr.Stderr))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

func getCredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, credentialDir, credentialFile), nil
}

// getPassphrasePath looks for .gpg-passphrase next to the executable, then
// in the working directory.
func getPassphrasePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	passphrasePath := filepath.Join(filepath.Dir(exe), ".gpg-passphrase")
	if _, err := os.Stat(passphrasePath); err == nil {
		return passphrasePath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return filepath.Join(cwd, ".gpg-passphrase"), nil
}
