/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	storageMemory = "memory"
	storageSQLite = "sqlite"
	storageRedis  = "redis"
)

type Config struct {
	bind           string
	catalog        string
	port           int
	prefix         string
	profile        bool
	redisAddress   string
	redisDB        int
	redisPassword  string
	sessionTimeout time.Duration
	sqlitePath     string
	storage        string
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout (must not be negative): %s", c.sessionTimeout)
	}

	switch c.storage {
	case storageMemory:
	case storageSQLite:
		if strings.TrimSpace(c.sqlitePath) == "" {
			return errors.New("--sqlite-path is required when --storage=sqlite")
		}
	case storageRedis:
		if strings.TrimSpace(c.redisAddress) == "" {
			return errors.New("--redis-address is required when --storage=redis")
		}
		if c.redisDB < 0 {
			return fmt.Errorf("invalid redis database (must not be negative): %d", c.redisDB)
		}
	default:
		return fmt.Errorf("invalid storage backend (must be one of memory, sqlite, redis): %q", c.storage)
	}

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("KAMIKAZE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "kamikaze",
		Short:         "A party drinking game of challenges, chaos events and minigames, served as a single webapp.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: KAMIKAZE_BIND)")
	fs.StringVar(&cfg.catalog, "catalog", "", "path to a YAML file of challenges and chaos events, replacing the built-in set (env: KAMIKAZE_CATALOG)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: KAMIKAZE_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: KAMIKAZE_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: KAMIKAZE_PROFILE)")
	fs.StringVar(&cfg.redisAddress, "redis-address", "localhost:6379", "redis address, for --storage=redis (env: KAMIKAZE_REDIS_ADDRESS)")
	fs.IntVar(&cfg.redisDB, "redis-db", 0, "redis database number, for --storage=redis (env: KAMIKAZE_REDIS_DB)")
	fs.StringVar(&cfg.redisPassword, "redis-password", "", "redis password, for --storage=redis (env: KAMIKAZE_REDIS_PASSWORD)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game tables are closed, 0 to disable (env: KAMIKAZE_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.sqlitePath, "sqlite-path", "kamikaze.db", "database file, for --storage=sqlite (env: KAMIKAZE_SQLITE_PATH)")
	fs.StringVarP(&cfg.storage, "storage", "s", storageMemory, "where rosters, settings and used challenges are kept: memory, sqlite or redis (env: KAMIKAZE_STORAGE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: KAMIKAZE_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: KAMIKAZE_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: KAMIKAZE_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: KAMIKAZE_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("kamikaze v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
