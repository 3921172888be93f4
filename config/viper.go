package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/xerrors"
)

type loader struct {
	v      *viper.Viper
	cfg    *Config
	logger clog.Logger
	file   string
}

func newLoader(cfg *Config, o *options) *loader {
	v := viper.New()
	for k, val := range o.defaults {
		v.SetDefault(k, val)
	}
	return &loader{v: v, cfg: cfg, logger: o.logger}
}

// Load 依次加载 .env、基础配置、环境特定配置，环境变量始终优先。
func (l *loader) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.v.SetConfigName(l.cfg.Name)
	l.v.SetConfigType(l.cfg.FileType)
	for _, path := range l.cfg.Paths {
		l.v.AddConfigPath(path)
	}

	l.v.SetEnvPrefix(l.cfg.EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	// .env 只补充尚未设置的环境变量
	if loaded := l.loadDotEnv(); len(loaded) > 0 {
		l.logger.Debug("loaded dotenv files", clog.Strings("files", loaded))
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return xerrors.Wrapf(err, "read config file %s", l.cfg.Name)
		}
		l.logger.Warn("no configuration file found, using defaults and environment",
			clog.String("name", l.cfg.Name),
			clog.Strings("paths", l.cfg.Paths))
	} else {
		l.file = l.v.ConfigFileUsed()
		l.logger.Info("configuration file loaded", clog.String("file", l.file))
	}

	if err := l.mergeEnvironmentConfig(); err != nil {
		return err
	}

	return l.Validate()
}

func (l *loader) loadDotEnv() []string {
	candidates := []string{".env"}
	for _, path := range l.cfg.Paths {
		candidates = append(candidates, filepath.Join(path, ".env"))
	}

	seen := make(map[string]struct{})
	var loaded []string
	for _, file := range candidates {
		file = filepath.Clean(file)
		if _, ok := seen[file]; ok {
			continue
		}
		seen[file] = struct{}{}
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			l.logger.Warn("failed to load dotenv file", clog.String("file", file), clog.Error(err))
			continue
		}
		loaded = append(loaded, file)
	}
	return loaded
}

// mergeEnvironmentConfig 合并 <name>.<env> 配置文件
func (l *loader) mergeEnvironmentConfig() error {
	env := l.cfg.Env
	if env == "" {
		env = os.Getenv(l.cfg.EnvPrefix + "_ENV")
	}
	if env == "" {
		return nil
	}

	envConfigName := l.cfg.Name + "." + env
	l.v.SetConfigName(envConfigName)
	defer l.v.SetConfigName(l.cfg.Name)

	if err := l.v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return xerrors.Wrapf(err, "merge environment config %s", envConfigName)
		}
		l.logger.Info("no environment configuration file found", clog.String("env", env))
		return nil
	}
	l.logger.Info("environment configuration merged", clog.String("env", env))
	return nil
}

func (l *loader) Get(key string) any {
	return l.v.Get(key)
}

func (l *loader) Unmarshal(v any) error {
	return l.v.Unmarshal(v)
}

func (l *loader) UnmarshalKey(key string, v any) error {
	if !l.v.IsSet(key) {
		return xerrors.Wrapf(xerrors.ErrNotFound, "config key %q", key)
	}
	return l.v.UnmarshalKey(key, v)
}

func (l *loader) Validate() error {
	if len(l.v.AllSettings()) == 0 {
		return xerrors.Wrap(ErrValidationFailed, "configuration is empty")
	}
	return nil
}

func (l *loader) ConfigFileUsed() string {
	return l.file
}
