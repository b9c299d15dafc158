package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"digibox/cmd/digibox/app"
	"digibox/internal/config"
	"digibox/internal/content"
	"digibox/internal/geo"
	"digibox/internal/nav"
	"digibox/internal/region"
	"digibox/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// analyzeCmd locates one or more photos without the interactive interface
var analyzeCmd = &cobra.Command{
	Use:   "analyze [image]...",
	Short: "Guess where photos were taken",
	Long: `Sends each image to the active AI provider and prints four location
guesses with confidence scores. Images are analyzed concurrently.

Example:
  digibox analyze shot.jpg
  digibox analyze --provider openai a.png b.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeProvider string
	analyzeParallel int
)

// articlesCmd manages announcements from the command line
var articlesCmd = &cobra.Command{
	Use:   "articles",
	Short: "List and manage announcements",
}

var articlesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all articles, newest first",
	Args:  cobra.NoArgs,
	RunE:  runArticlesList,
}

var articlesShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Render one article",
	Args:  cobra.ExactArgs(1),
	RunE:  runArticlesShow,
}

var articlesAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Publish a new article",
	Args:  cobra.ExactArgs(1),
	RunE:  runArticlesAdd,
}

var articlesDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete an article",
	Args:  cobra.ExactArgs(1),
	RunE:  runArticlesDelete,
}

// themeTiming is the transition timing for theme; tests shorten it.
var themeTiming = nav.DefaultTiming()

var (
	articleBody     string
	articleBodyFile string
)

// regionCmd runs the startup region detection on its own
var regionCmd = &cobra.Command{
	Use:   "region",
	Short: "Detect the region and the default AI provider",
	Args:  cobra.NoArgs,
	RunE:  runRegion,
}

// themeCmd switches the persisted theme, playing the transition
var themeCmd = &cobra.Command{
	Use:   "theme [stereo|flat]",
	Short: "Show or switch the interface theme",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTheme,
}

// configCmd inspects and writes the config file
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeProvider, "provider", "", "Use this provider for the run (gemini, openai)")
	analyzeCmd.Flags().IntVar(&analyzeParallel, "parallel", 4, "Maximum concurrent requests")

	articlesAddCmd.Flags().StringVar(&articleBody, "body", "", "Markdown body")
	articlesAddCmd.Flags().StringVar(&articleBodyFile, "body-file", "", "Read the Markdown body from a file")

	articlesCmd.AddCommand(articlesListCmd)
	articlesCmd.AddCommand(articlesShowCmd)
	articlesCmd.AddCommand(articlesAddCmd)
	articlesCmd.AddCommand(articlesDeleteCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analyzeProvider != "" && !geo.Selection(analyzeProvider).Valid() {
		return fmt.Errorf("unknown provider %q (valid: gemini, openai)", analyzeProvider)
	}

	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	client := svc.deps.Geo
	if analyzeProvider != "" {
		// One-off override, not persisted
		client = geo.NewClient(svc.kv, geo.Options{
			Force:   geo.Selection(analyzeProvider),
			Gemini:  geo.GeminiConfig{APIKey: svc.cfg.AI.GeminiAPIKey, Model: svc.cfg.AI.GeminiModel},
			OpenAI:  geo.OpenAISettings{BaseURL: svc.cfg.AI.OpenAIBaseURL, Model: svc.cfg.AI.OpenAIModel},
			Timeout: svc.cfg.GetAITimeout(),
		})
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	logger.Info("Analyzing images",
		zap.Int("count", len(args)),
		zap.String("provider", string(client.Selection())))

	results, err := client.AnalyzeFiles(ctx, args, analyzeParallel)
	if err != nil {
		return fmt.Errorf("analysis aborted: %w", err)
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, fr := range results {
		if fr.Result.Err != nil {
			failed++
		}
		printResult(out, fr)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(results))
	}
	return nil
}

func printResult(w io.Writer, fr geo.FileResult) {
	fmt.Fprintf(w, "%s  [%s]\n", fr.Path, fr.Result.Provider.DisplayName())
	if fr.Result.Err != nil {
		fmt.Fprintf(w, "  error: %s\n", geo.KindOf(fr.Result.Err))
	}
	guesses := slices.Clone(fr.Result.Guesses)
	if fr.Result.Err == nil {
		slices.SortStableFunc(guesses, func(a, b geo.Guess) int { return b.Confidence - a.Confidence })
	}
	for i, g := range guesses {
		if g.Error {
			fmt.Fprintf(w, "  ! %s\n", g.Label)
			continue
		}
		fmt.Fprintf(w, "  %d. %-24s %3d%%\n", i+1, g.Label, g.Confidence)
	}
}

func runArticlesList(cmd *cobra.Command, args []string) error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	out := cmd.OutOrStdout()
	list := svc.deps.Articles.List()
	if len(list) == 0 {
		fmt.Fprintln(out, "No articles.")
		return nil
	}
	for _, a := range list {
		fmt.Fprintf(out, "%4d  %s  %s\n", a.ID, a.Date, a.Title)
	}
	return nil
}

func runArticlesShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	a, err := svc.deps.Articles.Get(id)
	if err != nil {
		return fmt.Errorf("article %d: %w", id, err)
	}
	body := fmt.Sprintf("# %s\n\n*%s*\n\n%s", a.Title, a.Date, a.Content)
	rendered, err := content.RenderMarkdown(body, 80, svc.cfg.UI.Theme != "flat")
	if err != nil {
		rendered = body
	}
	fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}

func runArticlesAdd(cmd *cobra.Command, args []string) error {
	body := articleBody
	if articleBodyFile != "" {
		data, err := os.ReadFile(articleBodyFile)
		if err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
		body = string(data)
	}

	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	a, err := svc.deps.Articles.Create(args[0], body)
	if err != nil {
		return err
	}
	logger.Info("Article created", zap.Int("id", a.ID), zap.String("title", a.Title))
	fmt.Fprintf(cmd.OutOrStdout(), "Created article %d (%s)\n", a.ID, a.Date)
	return nil
}

func runArticlesDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.deps.Articles.Delete(id); err != nil {
		return fmt.Errorf("article %d: %w", id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted article %d\n", id)
	return nil
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid article id %q", s)
	}
	return id, nil
}

func runRegion(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	r := region.NewDetector(cfg).Detect(ctx)
	out := cmd.OutOrStdout()
	if r.Country != "" {
		fmt.Fprintf(out, "Country:  %s\n", r.Country)
	}
	if r.Zone != "" {
		fmt.Fprintf(out, "Zone:     %s\n", r.Zone)
	}
	fmt.Fprintf(out, "Source:   %s\n", r.Source)
	fmt.Fprintf(out, "Provider: %s", r.Selection.DisplayName())
	if r.Estimated {
		fmt.Fprint(out, " (estimated)")
	}
	fmt.Fprintln(out)
	if r.Err != nil {
		logger.Debug("Lookup failed", zap.Error(r.Err))
	}
	return nil
}

func runTheme(cmd *cobra.Command, args []string) error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	out := cmd.OutOrStdout()
	current := nav.Theme(store.LoadString(svc.kv, app.KeyTheme, svc.cfg.UI.Theme))
	if current != nav.ThemeFlat {
		current = nav.ThemeStereo
	}
	if len(args) == 0 || nav.Theme(args[0]) == current {
		fmt.Fprintf(out, "Theme: %s\n", current)
		return nil
	}
	if target := nav.Theme(args[0]); target != nav.ThemeStereo && target != nav.ThemeFlat {
		return fmt.Errorf("unknown theme %q (valid: stereo, flat)", args[0])
	}

	m := nav.New(nav.PageHome, current, themeTiming)
	step, ok := m.ToggleTheme()
	if !ok {
		return fmt.Errorf("theme transition rejected")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	if err := nav.Run(ctx, m, step); err != nil {
		return fmt.Errorf("theme transition: %w", err)
	}

	next := m.State().Theme
	if err := store.SaveString(svc.kv, app.KeyTheme, string(next)); err != nil {
		return err
	}
	logger.Info("Theme switched", zap.String("from", string(current)), zap.String("to", string(next)))
	fmt.Fprintf(out, "Theme: %s\n", next)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists: %s", path)
	}
	cfg := config.DefaultConfig()
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
