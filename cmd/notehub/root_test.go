package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notehub/internal/model"
)

func TestRootCommandWiresSubcommands(t *testing.T) {
	cmd := newRootCommand()

	names := []string{}
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "devserver")
	assert.Contains(t, names, "logout")

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))
}

func TestLogoutWithoutIdentity(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"logout", "--config", filepath.Join(t.TempDir(), "config.yaml")})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "not signed in\n", out.String())
}

func TestVerboseRaisesLogLevelWithoutSavingIt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	flags := &globalFlags{configPath: path, verbose: true}
	cfg, err := flags.load()
	require.NoError(t, err)

	assert.Equal(t, "debug", flags.logConfig(cfg).Level)
	assert.Equal(t, "info", cfg.Log.Level)

	cfg.LastIdentity = &model.Identity{RecipientID: "u-1", DisplayName: "Ada"}
	require.NoError(t, model.SaveConfig(path, cfg))
	saved, err := model.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "info", saved.Log.Level)
	require.NotNil(t, saved.LastIdentity)
}
