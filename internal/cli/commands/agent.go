package commands

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"jobAgent/internal/agent"
	"jobAgent/internal/browser"
	"jobAgent/internal/cli/ui"
	"jobAgent/internal/llm"
	"jobAgent/internal/notify"
	"jobAgent/internal/profile"
	"jobAgent/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NewRunCommand запускает браузер, цикл агента и HTTP-пульт.
func NewRunCommand(env *Env) *cobra.Command {
	var startNow bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Запустить агента и пульт управления",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := env.Open(); err != nil {
				return err
			}
			cfg, log := env.Cfg, env.Log

			br := browser.New(browser.Config{
				Headless:     cfg.Browser.Headless,
				UserDataDir:  cfg.Browser.UserDataDir,
				BrowsersPath: cfg.Browser.BrowsersPath,
				Display:      cfg.Browser.Display,
				Timeout:      cfg.Browser.Timeout,
			})
			if err := br.Launch(ctx); err != nil {
				return fmt.Errorf("ошибка запуска браузера: %w", err)
			}
			defer func() {
				if err := br.Close(); err != nil {
					log.Warn("Ошибка закрытия браузера", zap.Error(err))
				}
			}()

			var inferrer agent.Inferrer
			if cfg.OpenAI.KeyAI != "" {
				inferrer = llm.NewClient(llm.Options{
					APIKey:            cfg.OpenAI.KeyAI,
					Model:             cfg.OpenAI.Model,
					MaxTokens:         cfg.OpenAI.MaxTokens,
					RequestsPerMinute: cfg.OpenAI.RequestsPerMinute,
					TokensPerHour:     cfg.OpenAI.TokensPerHour,
				}, env.LLMLogs)
			} else {
				log.Warn("OPENAI_API_KEY не задан, вопросы без эвристики останутся человеку")
			}

			a := agent.New(br, env.KV, log, agent.Config{
				SearchURL: cfg.Agent.SearchBaseURL,
				Timings:   agent.TimingsFromConfig(cfg.Agent),
				Inferrer:  inferrer,
				Notifier:  notify.NewConsole(env.Out, log),
				Journal:   agent.NewJournal(env.Apps),
			})

			deps := env.deps()
			deps.Governor, deps.Learning, deps.Questions, deps.Profiles = a.Governor(), a.Learning(), a.Questions(), a.Profiles()
			addr := net.JoinHostPort(cfg.App.Host, cfg.App.Port)
			srv := server.New(addr, log, deps)

			if startNow {
				if err := a.Governor().SetActive(ctx, true); err != nil {
					return err
				}
			}
			ui.PrintBanner(env.Out, addr)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return a.Serve(gctx) })
			g.Go(func() error { return srv.Run(gctx) })
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&startNow, "start", false, "сразу включить агента")
	return cmd
}

func NewStartCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Включить агента",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := env.Open(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if _, err := profile.NewStore(env.KV).Load(ctx); err != nil {
				if errors.Is(err, profile.ErrNoProfile) {
					ui.Fail(env.Out, "Сначала импортируйте профиль: job-agent profile import <file>")
				}
				return err
			}
			if err := env.governor().SetActive(ctx, true); err != nil {
				return err
			}
			ui.Success(env.Out, "Агент включен")
			return nil
		},
	}
}

func NewStopCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Остановить агента",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := env.Open(); err != nil {
				return err
			}
			if err := env.governor().SetActive(cmd.Context(), false); err != nil {
				return err
			}
			ui.Success(env.Out, "Агент остановлен")
			return nil
		},
	}
}

func NewStatusCommand(env *Env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Флаг активности, счетчик и последние отклики",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := env.Open(); err != nil {
				return err
			}
			ctx := cmd.Context()
			gov := env.governor()

			active, err := gov.Active(ctx)
			if err != nil {
				return err
			}
			count, err := gov.Count(ctx)
			if err != nil {
				return err
			}
			maxJobs := profile.DefaultMaxJobs
			if p, err := profile.NewStore(env.KV).Load(ctx); err == nil {
				maxJobs = p.MaxJobs()
			}

			state := ui.ColorGray + "остановлен"
			if active {
				state = ui.ColorGreen + "работает"
			}
			fmt.Fprintf(env.Out, ui.ColorBold+"Агент:"+ui.ColorReset+" %s"+ui.ColorReset+"\n", state)
			fmt.Fprintf(env.Out, ui.ColorBold+ui.IconChart+" Откликов сегодня:"+ui.ColorReset+" %d / %d\n", count, maxJobs)

			if env.Apps == nil {
				return nil
			}
			apps, err := env.Apps.Recent(ctx, limit)
			if err != nil {
				return fmt.Errorf("ошибка чтения журнала откликов: %w", err)
			}
			if len(apps) == 0 {
				fmt.Fprintln(env.Out, ui.ColorGray+"Журнал откликов пуст"+ui.ColorReset)
				return nil
			}
			fmt.Fprintf(env.Out, "\n"+ui.ColorYellow+ui.IconList+" Последние вакансии (%d):"+ui.ColorReset+"\n", len(apps))
			for _, a := range apps {
				icon, color, text := ui.FormatOutcome(a.Outcome)
				line := fmt.Sprintf("  %s%s %-10s%s %s  %s  %s",
					color, icon, text, ui.ColorReset,
					a.CreatedAt.Format("01-02 15:04"), a.JobID, ui.Truncate(a.Title+" · "+a.Company, 60))
				if a.Reason != "" {
					line += ui.ColorGray + " (" + a.Reason + ")" + ui.ColorReset
				}
				fmt.Fprintln(env.Out, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "сколько записей журнала показать")
	return cmd
}
