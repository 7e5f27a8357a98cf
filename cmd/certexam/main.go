package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavelanni/certexam/internal/event"
	"github.com/pavelanni/certexam/internal/handler"
	appI18n "github.com/pavelanni/certexam/internal/i18n"
	"github.com/pavelanni/certexam/internal/model"
	"github.com/pavelanni/certexam/internal/moderation"
	"github.com/pavelanni/certexam/internal/mongostore"
	"github.com/pavelanni/certexam/internal/service"
	"github.com/pavelanni/certexam/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "certexam",
		Short: "Timed randomized certification exams",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), generateCmd(), moderateCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `certexam --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// storageFlags registers the repository and logging flags shared by every command.
func storageFlags(f *pflag.FlagSet) {
	f.String("db", "certexam.db", "SQLite database path")
	f.String("mongo-uri", "", "MongoDB connection URI (overrides --db when set)")
	f.String("mongo-database", "certexam", "MongoDB database name")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

// engineFlags registers the flags that shape generation and grading.
func engineFlags(f *pflag.FlagSet) {
	f.String("expiry-policy", string(model.ExpiryScore), "How late attempts are handled (score, reject)")
	f.Bool("cross-set-repeats", true, "Allow a bank question in more than one generated set")
	f.String("amqp-url", "", "AMQP broker URL for domain events (disabled when empty)")
	f.String("amqp-exchange", "certexam.events", "AMQP topic exchange name")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Default language of API messages (en, ru)")
	storageFlags(f)
	engineFlags(f)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import exam templates from JSON files",
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.StringSliceP("file", "f", nil, "Paths to exam template JSON files (repeatable)")
	storageFlags(f)
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate exam instances in batch",
		RunE:  runGenerate,
	}
	f := cmd.Flags()
	f.StringSlice("exam-id", nil, "Exam template IDs (repeatable)")
	f.IntP("count", "n", 1, "Instances per template (1-100)")
	f.Int("concurrency", 4, "Generations in flight")
	f.StringP("lang", "l", "en", "Language of the summary line (en, ru)")
	storageFlags(f)
	engineFlags(f)
	_ = cmd.MarkFlagRequired("exam-id")
	return cmd
}

func moderateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "moderate",
		Short: "Approve, reject or resubmit an exam template",
		RunE:  runModerate,
	}
	f := cmd.Flags()
	f.String("exam-id", "", "Exam template ID (required)")
	f.String("status", "", "Target status: approved, rejected or pending (required)")
	f.Int("version", 0, "Template version under review (0 = current)")
	f.String("feedback", "", "Moderator feedback")
	f.String("moderator", "cli", "Moderator identity")
	storageFlags(f)
	engineFlags(f)
	_ = cmd.MarkFlagRequired("exam-id")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export attempt audit records as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	storageFlags(f)
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

	v.SetEnvPrefix("CERTEXAM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("certexam")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/certexam")
	v.AddConfigPath("/etc/certexam")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// repository is what the commands need from a storage backend.
type repository interface {
	service.Repository
	GetImportedFileHash(ctx context.Context, path string) (string, error)
	SetImportedFileHash(ctx context.Context, path, hash string) error
}

// openRepository opens MongoDB when mongo-uri is set and SQLite otherwise.
func openRepository(ctx context.Context, v *viper.Viper) (repository, func(), error) {
	if uri := v.GetString("mongo-uri"); uri != "" {
		ms, err := mongostore.New(ctx, uri, v.GetString("mongo-database"))
		if err != nil {
			return nil, nil, fmt.Errorf("open mongo: %w", err)
		}
		slog.Info("using MongoDB repository", "database", v.GetString("mongo-database"))
		return ms, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = ms.Close(ctx)
		}, nil
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	slog.Info("using SQLite repository", "path", v.GetString("db"))
	return db, func() { _ = db.Close() }, nil
}

// newService builds the engine from the command's configuration. The returned
// cleanup closes the event publisher, if any.
func newService(repo service.Repository, v *viper.Viper) (*service.Service, func(), error) {
	policy, err := model.ParseExpiryPolicy(v.GetString("expiry-policy"))
	if err != nil {
		return nil, nil, err
	}
	cfg := model.EngineConfig{
		ExpiryPolicy:    policy,
		CrossSetRepeats: v.GetBool("cross-set-repeats"),
	}

	var opts []service.Option
	cleanup := func() {}
	if url := v.GetString("amqp-url"); url != "" {
		pub, err := event.NewPublisher(url, v.GetString("amqp-exchange"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect event publisher: %w", err)
		}
		opts = append(opts, service.WithPublisher(pub))
		cleanup = pub.Close
		slog.Info("publishing domain events", "exchange", v.GetString("amqp-exchange"))
	}
	return service.New(repo, cfg, opts...), cleanup, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(ctx, v)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc, closeSvc, err := newService(repo, v)
	if err != nil {
		return err
	}
	defer closeSvc()

	lang := v.GetString("lang")
	catalog, err := appI18n.Load(lang)
	if err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	r := chi.NewRouter()
	r.Use(handler.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(catalog.Middleware)
	handler.New(svc).Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"lang", lang,
			"expiry_policy", v.GetString("expiry-policy"),
			"cross_set_repeats", v.GetBool("cross-set-repeats"),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runImport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	repo, closeRepo, err := openRepository(ctx, v)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc := service.New(repo, model.DefaultEngineConfig())
	return importTemplates(ctx, repo, svc, v.GetStringSlice("file"))
}

// importTemplates creates every template of every file not imported before.
// A file whose content changed since its import is skipped, so existing
// generated exams never lose their template version.
func importTemplates(ctx context.Context, repo repository, svc *service.Service, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := repo.GetImportedFileHash(ctx, path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("templates file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("templates file changed since last import, skipping; use the API to edit templates",
				"path", path)
			continue
		}

		var templates []model.ExamTemplate
		if err := json.Unmarshal(data, &templates); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		for i, t := range templates {
			if _, err := svc.CreateTemplate(ctx, t); err != nil {
				return fmt.Errorf("create template %d from %s: %w", i, path, err)
			}
		}

		if err := repo.SetImportedFileHash(ctx, path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported exam templates", "path", path, "count", len(templates))
	}
	return nil
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	ids, err := parseObjectIDs(v.GetStringSlice("exam-id"))
	if err != nil {
		return err
	}
	catalog, err := appI18n.Load(v.GetString("lang"))
	if err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	repo, closeRepo, err := openRepository(ctx, v)
	if err != nil {
		return err
	}
	defer closeRepo()
	svc, closeSvc, err := newService(repo, v)
	if err != nil {
		return err
	}
	defer closeSvc()

	results, err := svc.GenerateBatch(ctx, ids, v.GetInt("count"), v.GetInt("concurrency"))
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	completed := 0
	for _, r := range results {
		completed += r.Completed
	}

	out := cmd.OutOrStdout()
	if err := writeJSON(out, results); err != nil {
		return err
	}
	lctx := appI18n.WithLocalizer(ctx, catalog.Localizer())
	_, err = fmt.Fprintln(cmd.ErrOrStderr(), appI18n.Tp(lctx, "BatchSummary", completed))
	return err
}

func runModerate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	id, err := primitive.ObjectIDFromHex(v.GetString("exam-id"))
	if err != nil {
		return fmt.Errorf("invalid exam-id: %w", err)
	}

	repo, closeRepo, err := openRepository(ctx, v)
	if err != nil {
		return err
	}
	defer closeRepo()
	svc, closeSvc, err := newService(repo, v)
	if err != nil {
		return err
	}
	defer closeSvc()

	m, err := svc.Moderate(ctx, id, moderation.Request{
		Target:      model.ModerationStatus(v.GetString("status")),
		Version:     v.GetInt("version"),
		ModeratorID: v.GetString("moderator"),
		Feedback:    v.GetString("feedback"),
	})
	if err != nil {
		return fmt.Errorf("moderate: %w", err)
	}
	return writeJSON(cmd.OutOrStdout(), m)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	repo, closeRepo, err := openRepository(ctx, v)
	if err != nil {
		return err
	}
	defer closeRepo()

	export, err := service.New(repo, model.DefaultEngineConfig()).ExportAttempts(ctx)
	if err != nil {
		return fmt.Errorf("export attempts: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return writeJSON(w, export)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

func parseObjectIDs(raw []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, s := range raw {
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid exam-id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
