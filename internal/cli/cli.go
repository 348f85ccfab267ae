// Package cli собирает корневую команду job-agent.
package cli

import (
	"context"
	"io"
	"os"

	"jobAgent/internal/cli/commands"

	"github.com/spf13/cobra"
)

// NewRoot строит дерево команд поверх env.
func NewRoot(env *commands.Env) *cobra.Command {
	root := &cobra.Command{
		Use:           "job-agent",
		Short:         "Агент быстрых откликов на вакансии",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return env.Init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			env.Close()
		},
	}
	root.SetOut(env.Out)

	root.AddCommand(
		commands.NewRunCommand(env),
		commands.NewStartCommand(env),
		commands.NewStopCommand(env),
		commands.NewStatusCommand(env),
		commands.NewProfileCommand(env),
		commands.NewLearnedCommand(env),
		commands.NewQuestionsCommand(env),
		commands.NewLogsCommand(env),
	)
	return root
}

// Execute запускает CLI с выводом в stdout.
func Execute(ctx context.Context) error {
	return execute(ctx, os.Stdout, os.Args[1:])
}

func execute(ctx context.Context, out io.Writer, args []string) error {
	env := &commands.Env{Out: out}
	root := NewRoot(env)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
