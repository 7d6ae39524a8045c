package secrets

import (
	"context"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// envSpec is the full secret surface read from the environment, prefixed
// with VESTD_ (e.g. VESTD_FORDEFI_API_USER_TOKEN).
type envSpec struct {
	FordefiAPIUserToken string `envconfig:"FORDEFI_API_USER_TOKEN"`
	FordefiAPISignerKey string `envconfig:"FORDEFI_API_SIGNER_KEY"`
	TelegramBotToken    string `envconfig:"TELEGRAM_BOT_TOKEN"`
}

// EnvSource serves secrets from process environment variables. The whole
// spec is read once at construction; missing entries surface as ErrNotFound
// on fetch so optional secrets (like the bot token) stay optional.
type EnvSource struct {
	spec envSpec
}

func NewEnvSource() (*EnvSource, error) {
	var s envSpec
	if err := envconfig.Process("vestd", &s); err != nil {
		return nil, fmt.Errorf("read secret environment: %w", err)
	}
	return &EnvSource{spec: s}, nil
}

func (e *EnvSource) Fetch(_ context.Context, name string) (string, error) {
	var v string
	switch name {
	case NameAPIUserToken:
		v = e.spec.FordefiAPIUserToken
	case NameAPISignerKey:
		v = e.spec.FordefiAPISignerKey
	case NameBotToken:
		v = e.spec.TelegramBotToken
	default:
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if v == "" {
		return "", fmt.Errorf("%w: %s (set VESTD_%s)", ErrNotFound, name, name)
	}
	return v, nil
}
