package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/cortex/internal/config"
	"github.com/aretw0/cortex/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Agent.MaxSteps)
	assert.Equal(t, 3, cfg.Agent.MaxRetriesPerStep)
	assert.Equal(t, 2, cfg.Agent.RepeatLimit)
	assert.Equal(t, 50, cfg.Agent.FingerprintWidth)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, config.MemoryInProcess, cfg.Memory.Backend)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "cortex.yaml", `
agent:
  max_steps: 3
  memory:
    top_k: 5
    global: true
llm:
  provider: ollama
  model: llama3
  base_url: http://localhost:11434
backends:
  - name: search
    url: http://localhost:9000
    timeout: 5s
  - name: sheets
    command: python
    args: [sheets.py]
memory:
  backend: redis
  redis:
    addr: redis:6379
    ttl: 1h
    max_items: 200
inbox:
  receive_tool: receive_message
  send_tool: send_message
  interval: 3s
log:
  level: debug
  format: json
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Agent.MaxSteps)
	assert.Equal(t, 3, cfg.Agent.MaxToolAttempts, "unset thresholds keep their defaults")
	assert.Equal(t, 5, cfg.Agent.Memory.TopK)
	assert.True(t, cfg.Agent.Memory.Global)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3", cfg.LLM.Model)

	require.Len(t, cfg.Backends, 2)
	assert.Equal(t, registry.KindNetwork, cfg.Backends[0].ResolvedKind())
	assert.Equal(t, 5*time.Second, cfg.Backends[0].Timeout)
	assert.Equal(t, []string{"sheets.py"}, cfg.Backends[1].Args)

	assert.Equal(t, config.MemoryRedis, cfg.Memory.Backend)
	assert.Equal(t, "redis:6379", cfg.Memory.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.Memory.Redis.TTL)
	assert.Equal(t, 200, cfg.Memory.Redis.MaxItems)
	assert.Equal(t, "cortex:memory:", cfg.Memory.Redis.Prefix)

	assert.Equal(t, "receive_message", cfg.Inbox.ReceiveTool)
	assert.Equal(t, 3*time.Second, cfg.Inbox.Interval)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CORTEX_AGENT_MAX_STEPS", "9")
	t.Setenv("CORTEX_SERVER_ADDR", "127.0.0.1:9999")
	t.Setenv("GEMINI_API_KEY", "from-env")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Agent.MaxSteps)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
}

func TestLoad_ValidationCalledAtLoadTime(t *testing.T) {
	path := write(t, t.TempDir(), "cortex.yaml", `
llm:
  provider: unknown
memory:
  backend: disk
log:
  format: xml
backends:
  - name: a
    url: http://a
  - name: a
    url: http://b
  - url: http://c
`)

	_, err := config.Load(path)
	require.Error(t, err)
	for _, want := range []string{"llm.provider", "memory.backend", "log.format", `backend "a" is declared twice`, "backends[2].name"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config")
}

func TestConfig_LoadWorkflow(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "workflow.yaml", `
requirements:
  - name: email_sent
    tools: [send_email]
`)
	path := write(t, dir, "cortex.yaml", `
workflow:
  file: workflow.yaml
  requirements:
    - name: sheet_created
      tools: [create_sheet]
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "workflow.yaml"), cfg.Workflow.File)

	wf, err := cfg.LoadWorkflow()
	require.NoError(t, err)
	require.NotNil(t, wf)
	assert.Equal(t, []string{"sheet_created", "email_sent"}, wf.Requirements())

	empty, err := config.Default().LoadWorkflow()
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestConfig_LoadBackends(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "backends.yaml", `
backends:
  - name: mail
    command: ./mail-server
    env:
      API_KEY: secret
`)
	path := write(t, dir, "cortex.yaml", `
backends_file: backends.yaml
backends:
  - name: search
    url: http://localhost:9000
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	backends, err := cfg.LoadBackends()
	require.NoError(t, err)
	require.Len(t, backends, 2)
	assert.Equal(t, "search", backends[0].Name)
	assert.Equal(t, "mail", backends[1].Name)
	assert.Equal(t, map[string]string{"API_KEY": "secret"}, backends[1].Env)
}

func TestValidate_Default(t *testing.T) {
	assert.Empty(t, config.Default().Validate())

	cfg := config.Default()
	cfg.Inbox.SendTool = "send"
	cfg.Server.Addr = "nope"
	errs := cfg.Validate()
	assert.Len(t, errs, 2)
}
