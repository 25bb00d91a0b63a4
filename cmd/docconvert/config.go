package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docconvert/internal/convert"
	"github.com/pdiddy/docconvert/internal/htmlmd"
	"github.com/pdiddy/docconvert/internal/pandoc"
	"github.com/pdiddy/docconvert/pkg/types"
)

// configSection is the top-level key holding types.ConversionConfig.
const configSection = "conversion"

// bindEnv maps DOCCONVERT_CONVERSION_RETRY_MECHANISM_MAX_CONVERSION_RETRIES
// style variables onto config keys and registers the defaults they override.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("DOCCONVERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	registerDefaults(v)
}

// registerDefaults declares every conversion setting with its default value
// so environment variables can override keys absent from the config file.
func registerDefaults(v *viper.Viper) {
	data, err := yaml.Marshal(types.DefaultConversionConfig())
	if err != nil {
		return
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}
	setDefaults(v, configSection, tree)
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := prefix + "." + k
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// loadConfig decodes the conversion section over the defaults. The whole
// tree is decoded so file values, environment values, and defaults merge
// per key.
func loadConfig(v *viper.Viper) (types.ConversionConfig, error) {
	settings := struct {
		Conversion types.ConversionConfig `mapstructure:"conversion"`
	}{Conversion: types.DefaultConversionConfig()}
	if err := v.Unmarshal(&settings); err != nil {
		return settings.Conversion, fmt.Errorf("reading %s config: %w", configSection, err)
	}
	return settings.Conversion, nil
}

// newEngine returns the engine for cfg.Backend and a description of it.
func newEngine(ctx context.Context, cfg types.ConversionConfig) (convert.Engine, string, error) {
	if cfg.Backend == types.BackendNative {
		return htmlmd.New(cfg.InputEncoding), "native html to markdown", nil
	}
	eng, desc, err := pandoc.Detect(ctx, cfg, logger)
	if err != nil {
		return nil, "", err
	}
	return eng, desc, nil
}
