package commands

import (
	"fmt"
	"sort"
	"strings"

	"jobAgent/internal/agent"
	"jobAgent/internal/cli/ui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewLearnedCommand - просмотр и правка выученных ответов. Ответ, заданный
// оператором, хранится так же, как ответ, подсмотренный у человека в анкете.
func NewLearnedCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learned",
		Short: "Выученные ответы на вопросы анкет",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Показать выученные ответы",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := env.Open(); err != nil {
				return err
			}
			all, err := agent.NewLearningStore(env.KV).All(cmd.Context())
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Fprintln(env.Out, ui.ColorGray+"Выученных ответов нет"+ui.ColorReset)
				return nil
			}
			labels := make([]string, 0, len(all))
			for l := range all {
				labels = append(labels, l)
			}
			sort.Strings(labels)
			for _, l := range labels {
				fmt.Fprintf(env.Out, ui.ColorCyan+"%s"+ui.ColorReset+" → %s\n", l, all[l])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <label> <value...>",
		Short: "Задать ответ на вопрос",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.Open(); err != nil {
				return err
			}
			ctx := cmd.Context()
			label, value := args[0], strings.Join(args[1:], " ")
			if err := agent.NewLearningStore(env.KV).Set(ctx, label, value); err != nil {
				return err
			}
			if err := agent.NewQuestionLog(env.KV).Resolve(ctx, label); err != nil {
				env.Log.Warn("Вопрос не снят из списка", zap.String("label", label), zap.Error(err))
			}
			ui.Success(env.Out, "Ответ сохранен: %s", agent.NormalizeLabel(label))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "forget <label>",
		Short: "Удалить выученный ответ",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.Open(); err != nil {
				return err
			}
			removed, err := agent.NewLearningStore(env.KV).Forget(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("ответ %q не найден", agent.NormalizeLabel(args[0]))
			}
			ui.Success(env.Out, "Ответ удален")
			return nil
		},
	})
	return cmd
}

func NewQuestionsCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "questions",
		Short: "Вопросы, на которые агент не нашел ответа",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := env.Open(); err != nil {
				return err
			}
			qs, err := agent.NewQuestionLog(env.KV).List(cmd.Context())
			if err != nil {
				return err
			}
			if len(qs) == 0 {
				fmt.Fprintln(env.Out, ui.ColorGray+"Вопросов без ответа нет"+ui.ColorReset)
				return nil
			}
			for _, q := range qs {
				fmt.Fprintf(env.Out, ui.ColorGray+"[%s]"+ui.ColorReset+" %s "+ui.ColorYellow+"(%s)"+ui.ColorReset+"\n",
					q.Timestamp.Format("2006-01-02 15:04"), q.Label, q.Type)
			}
			fmt.Fprintln(env.Out, ui.ColorGray+"Ответить: job-agent learned set \"<вопрос>\" <ответ>"+ui.ColorReset)
			return nil
		},
	}
}

// NewLogsCommand выводит журнал запросов к LLM.
func NewLogsCommand(env *Env) *cobra.Command {
	var (
		runID string
		limit int
		full  bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Журнал запросов к LLM",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := env.Open(); err != nil {
				return err
			}
			logs, err := env.LLMLogs.Recent(cmd.Context(), runID, limit)
			if err != nil {
				return fmt.Errorf("ошибка чтения журнала LLM: %w", err)
			}
			if len(logs) == 0 {
				fmt.Fprintln(env.Out, ui.ColorGray+"Запросов не найдено"+ui.ColorReset)
				return nil
			}
			for _, l := range logs {
				fmt.Fprintf(env.Out, ui.ColorGray+"[%s]"+ui.ColorReset+" "+ui.ColorCyan+"%s"+ui.ColorReset+" run=%s model=%s tokens=%d\n",
					l.CreatedAt.Format("01-02 15:04:05"), l.Role, l.RunID, l.Model, l.TokensUsed)
				if full {
					fmt.Fprintln(env.Out, "  "+ui.ColorGray+l.PromptText+ui.ColorReset)
					fmt.Fprintln(env.Out, "  "+ui.ColorGreen+l.ResponseText+ui.ColorReset)
				} else {
					fmt.Fprintln(env.Out, "  "+ui.Truncate(l.ResponseText, 100))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "только запросы одного прохода")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "сколько записей показать")
	cmd.Flags().BoolVar(&full, "full", false, "печатать промпт и ответ целиком")
	return cmd
}
