package sessionctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/sandeepkv93/session-guard/internal/config"
	"github.com/sandeepkv93/session-guard/internal/database"
	"github.com/sandeepkv93/session-guard/internal/repository"
	"github.com/sandeepkv93/session-guard/internal/security"
	"github.com/sandeepkv93/session-guard/internal/service"
	"github.com/sandeepkv93/session-guard/internal/tools/common"
	"github.com/sandeepkv93/session-guard/internal/tools/loadgen"
)

type options struct {
	envFile string
	ci      bool
}

type deps struct {
	loadConfig func() (*config.Config, error)
	openDB     func(*config.Config) (*gorm.DB, error)
	out        io.Writer
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(deps{loadConfig: config.Load, openDB: database.Open, out: os.Stdout})
}

func newRootCommand(d deps) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Inspect and administer session-guard sessions, tokens and roles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return common.LoadEnvFile(opts.envFile)
		},
	}
	cmd.SetOut(d.out)
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "env file applied before reading configuration")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "machine-readable JSON output")
	cmd.AddCommand(
		newTokenCommand(opts, d),
		newSessionCommand(opts, d),
		newRolesCommand(opts, d),
		newMigrateCommand(opts, d),
		newProbeCommand(opts, d),
	)
	return cmd
}

func report(d deps, opts *options, title string, details []string, err error) error {
	common.PrintResult(d.out, opts.ci, title, details, err)
	return err
}

func newTokenCommand(opts *options, d deps) *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Encode and decode session tokens"}

	var claims []string
	var sessionID int64
	encode := &cobra.Command{
		Use:   "encode",
		Short: "Sign a token from --claim key=value pairs or a --session-id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := loadCodec(d)
			if err != nil {
				return report(d, opts, "token encode", nil, err)
			}
			var token string
			if sessionID != 0 {
				token, err = codec.IssueSessionToken(sessionID)
			} else {
				var parsed map[string]any
				if parsed, err = parseClaims(claims); err == nil {
					token, err = codec.Encode(parsed)
				}
			}
			if err != nil {
				return report(d, opts, "token encode", nil, err)
			}
			return report(d, opts, "token encode", []string{token}, nil)
		},
	}
	encode.Flags().StringArrayVar(&claims, "claim", nil, "claim as key=value (repeatable)")
	encode.Flags().Int64Var(&sessionID, "session-id", 0, "issue a token for a persisted session")

	decode := &cobra.Command{
		Use:   "decode <token>",
		Short: "Verify a token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := loadCodec(d)
			if err != nil {
				return report(d, opts, "token decode", nil, err)
			}
			claims := codec.Decode(args[0])
			if len(claims) == 0 {
				return report(d, opts, "token decode", nil, fmt.Errorf("token did not verify"))
			}
			return report(d, opts, "token decode", formatClaims(claims), nil)
		},
	}
	cmd.AddCommand(encode, decode)
	return cmd
}

func newSessionCommand(opts *options, d deps) *cobra.Command {
	cmd := &cobra.Command{Use: "session", Short: "Manage stored sessions"}
	revoke := &cobra.Command{
		Use:   "revoke <session-id>",
		Short: "Revoke a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return report(d, opts, "session revoke", nil, fmt.Errorf("invalid session id %q", args[0]))
			}
			db, err := openDB(d)
			if err != nil {
				return report(d, opts, "session revoke", nil, err)
			}
			err = repository.NewSessionRepository(db).Revoke(cmd.Context(), id)
			return report(d, opts, "session revoke", []string{"session_id=" + args[0]}, err)
		},
	}
	list := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List the stored sessions of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return report(d, opts, "session list", nil, fmt.Errorf("invalid user id %q", args[0]))
			}
			db, err := openDB(d)
			if err != nil {
				return report(d, opts, "session list", nil, err)
			}
			rows, err := repository.NewSessionRepository(db).ListByUser(cmd.Context(), userID)
			if err != nil {
				return report(d, opts, "session list", nil, err)
			}
			details := make([]string, 0, len(rows))
			for _, row := range rows {
				details = append(details, fmt.Sprintf("id=%d revoked=%t created=%s", row.ID, row.Revoked, row.CreatedAt.UTC().Format(time.RFC3339)))
			}
			return report(d, opts, "session list", details, nil)
		},
	}
	cmd.AddCommand(revoke, list)
	return cmd
}

func newRolesCommand(opts *options, d deps) *cobra.Command {
	cmd := &cobra.Command{Use: "roles", Short: "Manage user roles"}
	set := &cobra.Command{
		Use:   "set <user-id> [role...]",
		Short: "Replace the roles held by a user",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return report(d, opts, "roles set", nil, fmt.Errorf("invalid user id %q", args[0]))
			}
			db, err := openDB(d)
			if err != nil {
				return report(d, opts, "roles set", nil, err)
			}
			roles := repository.NewRoleRepository(db)
			resolver := service.NewCachedRoleResolver(service.NewNoopRoleCacheStore(), roles, 0)
			if err := resolver.SetRoles(cmd.Context(), userID, args[1:]); err != nil {
				return report(d, opts, "roles set", nil, err)
			}
			held, err := resolver.RolesForUser(cmd.Context(), userID)
			return report(d, opts, "roles set", []string{fmt.Sprintf("user_id=%d roles=%s", userID, strings.Join(held, ","))}, err)
		},
	}
	cmd.AddCommand(set)
	return cmd
}

func newMigrateCommand(opts *options, d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the session, user and role tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(d)
			if err != nil {
				return report(d, opts, "migrate", nil, err)
			}
			err = database.Migrate(db.WithContext(cmd.Context()))
			return report(d, opts, "migrate", nil, err)
		},
	}
}

func newProbeCommand(opts *options, d deps) *cobra.Command {
	cfg := loadgen.Config{}
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Send a burst of requests with one session token and report where limiting starts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			res, err := loadgen.Run(ctx, cfg)
			if err != nil {
				return report(d, opts, "probe", nil, err)
			}
			details := []string{
				fmt.Sprintf("total=%d failures=%d", res.TotalRequests, res.Failures),
				fmt.Sprintf("first_limited=%d", res.FirstLimited),
			}
			classes := make([]string, 0, len(res.ByClass))
			for class := range res.ByClass {
				classes = append(classes, class)
			}
			sort.Strings(classes)
			for _, class := range classes {
				details = append(details, fmt.Sprintf("%s=%d", class, res.ByClass[class]))
			}
			return report(d, opts, "probe", details, nil)
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&cfg.Path, "path", "/api/v1/session", "path to request")
	cmd.Flags().StringVar(&cfg.Token, "token", "", "session token sent as a bearer credential")
	cmd.Flags().IntVar(&cfg.Requests, "requests", 30, "number of requests")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 1, "parallel workers")
	return cmd
}

func loadCodec(d deps) (*security.TokenCodec, error) {
	cfg, err := d.loadConfig()
	if err != nil {
		return nil, err
	}
	return security.NewTokenCodec(cfg.SessionSigningAlg, cfg.SessionSigningKey, cfg.SessionVerifyKey)
}

func openDB(d deps) (*gorm.DB, error) {
	cfg, err := d.loadConfig()
	if err != nil {
		return nil, err
	}
	return d.openDB(cfg)
}

// parseClaims reads key=value pairs. Values that parse as a bool or an integer
// keep that type; everything else is a string.
func parseClaims(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("claim %q must be key=value", pair)
		}
		if key == security.ClaimCreated {
			return nil, fmt.Errorf("claim %q is reserved", key)
		}
		if b, err := strconv.ParseBool(raw); err == nil {
			out[key] = b
		} else if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			out[key] = n
		} else {
			out[key] = raw
		}
	}
	return out, nil
}

func formatClaims(claims map[string]any) []string {
	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := json.Marshal(claims[k])
		if err != nil {
			v = []byte(fmt.Sprint(claims[k]))
		}
		lines = append(lines, k+"="+string(v))
	}
	return lines
}
