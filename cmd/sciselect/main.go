package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/akozyrev/sciselect/internal/handler"
	appI18n "github.com/akozyrev/sciselect/internal/i18n"
	"github.com/akozyrev/sciselect/internal/model"
	"github.com/akozyrev/sciselect/internal/score"
	"github.com/akozyrev/sciselect/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sciselect",
		Short: "Candidate selection backend for research platoons",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `sciselect --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP selection server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "sciselect.db", "SQLite database path")
	f.StringP("lang", "l", "ru", "Default language for messages and documents (en, ru)")
	f.String("document-dir", "documents", "Directory for generated PDF documents")
	f.String("document-font", "", "TTF font for PDF documents (needed for Cyrillic)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-password", "", "Initial moderator password (or set SCISELECT_ADMIN_PASSWORD)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the candidate rating as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "sciselect.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("SCISELECT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("sciselect")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/sciselect")
	v.AddConfigPath("/etc/sciselect")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// scoreConfig returns the methodology constants, overridden by the
// optional "score" section of the config file.
func scoreConfig(v *viper.Viper) (score.Config, error) {
	cfg := score.Default()
	if v.IsSet("score") {
		if err := v.UnmarshalKey("score", &cfg); err != nil {
			return cfg, fmt.Errorf("parse score config: %w", err)
		}
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Seed a default moderator if no members exist.
	if err := seedModerator(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed moderator: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	scoreCfg, err := scoreConfig(v)
	if err != nil {
		return err
	}

	h := handler.New(db, score.NewCalculator(scoreCfg), handler.Config{
		SecureCookies: v.GetBool("secure-cookies"),
		DefaultLang:   lang,
		DocumentDir:   v.GetString("document-dir"),
		FontPath:      v.GetString("document-font"),
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h.Routes(r)
	r.Route("/admin", h.AdminRoutes)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"db", v.GetString("db"),
		"lang", lang,
		"document_dir", v.GetString("document-dir"),
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	rating, err := db.RatingList()
	if err != nil {
		return fmt.Errorf("build rating: %w", err)
	}

	data, err := json.MarshalIndent(rating, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	return nil
}

func seedModerator(db *store.Store, password string) error {
	count, err := db.MemberCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("moderator password is required: set --admin-password flag or SCISELECT_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash moderator password: %w", err)
	}

	_, err = db.CreateMember(model.Member{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.RoleModerator,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create moderator: %w", err)
	}

	slog.Info("seeded default moderator", "username", "admin")
	return nil
}
