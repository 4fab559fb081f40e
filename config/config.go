// Package config provides centralized management for application settings, defaults, and the Viper-based configuration engine.
package config

import (
	"errors"
	"os"
	"strings"

	"github.com/eolscan/eolscan/constant"
	"github.com/eolscan/eolscan/filesystem"
	"github.com/eolscan/eolscan/where"
	"github.com/samber/mo"
	"github.com/spf13/viper"
)

// EnvKeyReplacer is a strings.Replacer used to normalize configuration keys into environment variable naming conventions.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Setup initializes the global configuration state, including defaults, environment bindings, and the optional TOML file.
func Setup() error {
	viper.SetConfigName(constant.App)
	viper.SetConfigType("toml")
	viper.SetFs(filesystem.API())
	viper.AddConfigPath(where.Config())

	viper.SetEnvPrefix(constant.App)
	viper.SetEnvKeyReplacer(EnvKeyReplacer)
	for _, env := range EnvExposed {
		viper.MustBindEnv(env)
	}

	viper.SetTypeByDefaultValue(true)
	for name, field := range Default {
		viper.SetDefault(name, field.Value)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}

	return nil
}

// LookupEnv reports the raw environment value bound to a registered key.
// Unlike viper.Get it ignores the config file, so callers can tell where a value came from.
func LookupEnv(k string) mo.Option[string] {
	field, ok := Default[k]
	if !ok {
		return mo.None[string]()
	}

	value, ok := os.LookupEnv(field.Env())
	if !ok || strings.TrimSpace(value) == "" {
		return mo.None[string]()
	}
	return mo.Some(strings.TrimSpace(value))
}
