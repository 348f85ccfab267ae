package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jobAgent/internal/agent"
	"jobAgent/internal/cli/commands"
	"jobAgent/internal/config"
	"jobAgent/internal/database"
	"jobAgent/internal/logger"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profileYAML = `first_name: Ada
last_name: Lovelace
email: ada@example.com
preferred_roles: ["Go Engineer"]
city: Berlin
country: Germany
settings:
  max_jobs: 5
  auto_apply: true
`

type cliEnv struct {
	env *commands.Env
	out *bytes.Buffer
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	db, err := database.Open(sqlite.Open(filepath.Join(t.TempDir(), "cli.db")), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(logger.NewNop()) })
	require.NoError(t, db.DB.AutoMigrate(&database.KVEntry{}, &database.Application{}, &database.LlmLog{}))

	out := &bytes.Buffer{}
	return &cliEnv{
		out: out,
		env: &commands.Env{
			Out:     out,
			Cfg:     &config.Cfg{Agent: config.Agent{PollInterval: time.Millisecond}},
			Log:     logger.NewNop(),
			KV:      database.NewKVRepository(db.DB),
			Apps:    database.NewApplicationRepository(db.DB),
			LLMLogs: database.NewLLMLogRepository(db.DB),
		},
	}
}

func (c *cliEnv) run(args ...string) (string, error) {
	c.out.Reset()
	root := NewRoot(c.env)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return c.out.String(), err
}

func TestProfileImportAndStart(t *testing.T) {
	c := newCLIEnv(t)

	_, err := c.run("start")
	require.Error(t, err, "без профиля агент не включается")

	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(profileYAML), 0o600))

	out, err := c.run("profile", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, `"Berlin, Germany"`)

	out, err = c.run("profile", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "first_name: Ada")
	assert.Contains(t, out, "max_jobs: 5")

	_, err = c.run("start")
	require.NoError(t, err)
	active, err := agent.NewGovernor(c.env.KV, time.Millisecond).Active(context.Background())
	require.NoError(t, err)
	assert.True(t, active)

	out, err = c.run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "работает")
	assert.Contains(t, out, "0 / 5")
	assert.Contains(t, out, "Журнал откликов пуст")

	_, err = c.run("stop")
	require.NoError(t, err)
	active, err = agent.NewGovernor(c.env.KV, time.Millisecond).Active(context.Background())
	require.NoError(t, err)
	assert.False(t, active)
}

func TestStatusListsJournal(t *testing.T) {
	ctx := context.Background()
	c := newCLIEnv(t)
	require.NoError(t, c.env.Apps.Record(ctx, &database.Application{JobID: "77", Title: "Go Engineer", Company: "Initech", Outcome: "submitted"}))
	require.NoError(t, c.env.Apps.Record(ctx, &database.Application{JobID: "78", Title: "SRE", Company: "ACME", Outcome: "skipped", Reason: "blacklisted company"}))

	out, err := c.run("status", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "остановлен")
	assert.Contains(t, out, "0 / 10")
	assert.Contains(t, out, "Go Engineer · Initech")
	assert.Contains(t, out, "blacklisted company")
}

func TestLearnedAndQuestions(t *testing.T) {
	ctx := context.Background()
	c := newCLIEnv(t)

	_, err := agent.NewQuestionLog(c.env.KV).Record(ctx, []agent.Question{{Label: "why us?", Type: "textarea", Timestamp: time.Now()}})
	require.NoError(t, err)

	out, err := c.run("questions")
	require.NoError(t, err)
	assert.Contains(t, out, "why us?")

	_, err = c.run("learned", "set", "Why Us?", "Great", "mission")
	require.NoError(t, err)

	out, err = c.run("learned", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "why us?")
	assert.Contains(t, out, "Great mission")

	out, err = c.run("questions")
	require.NoError(t, err)
	assert.Contains(t, out, "Вопросов без ответа нет")

	_, err = c.run("learned", "forget", "why us?")
	require.NoError(t, err)
	_, err = c.run("learned", "forget", "why us?")
	assert.Error(t, err)
}

func TestLogs(t *testing.T) {
	ctx := context.Background()
	c := newCLIEnv(t)
	require.NoError(t, c.env.LLMLogs.LogLLMRequest(ctx, "run-9", "answer_questions", "prompt", `{"why":"Go"}`, "gpt-4o-mini", 12))

	out, err := c.run("logs", "--run", "run-9")
	require.NoError(t, err)
	assert.Contains(t, out, "answer_questions")
	assert.Contains(t, out, "tokens=12")
	assert.Contains(t, out, `{"why":"Go"}`)

	out, err = c.run("logs", "--run", "other")
	require.NoError(t, err)
	assert.Contains(t, out, "Запросов не найдено")
}
