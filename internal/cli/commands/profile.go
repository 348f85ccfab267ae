package commands

import (
	"fmt"

	"jobAgent/internal/agent"
	"jobAgent/internal/cli/ui"
	"jobAgent/internal/profile"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewProfileCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Профиль кандидата",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Импортировать профиль из YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := profile.ImportFile(args[0])
			if err != nil {
				return err
			}
			if err := env.Open(); err != nil {
				return err
			}
			if err := profile.NewStore(env.KV).Save(cmd.Context(), p); err != nil {
				return err
			}
			p.Normalize()
			ui.Success(env.Out, "Профиль %s импортирован", p.FullName)
			ui.Info(env.Out, "Поиск: %q в %q, лимит %d в день", agent.Keywords(p), agent.Location(p), p.MaxJobs())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Показать сохраненный профиль",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := env.Open(); err != nil {
				return err
			}
			p, err := profile.NewStore(env.KV).Load(cmd.Context())
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(p)
			if err != nil {
				return fmt.Errorf("ошибка вывода профиля: %w", err)
			}
			fmt.Fprint(env.Out, string(out))
			return nil
		},
	})
	return cmd
}
