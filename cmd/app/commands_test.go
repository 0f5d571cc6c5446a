package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func TestGetCommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range getCommands("test") {
		names[cmd.Name] = true
	}

	for _, want := range []string{
		"server",
		"worker",
		"migrate",
		"hash-admin-key",
		"process-queue",
		"requeue-job",
		"reclaim-stale",
	} {
		assert.True(t, names[want], "missing command %q", want)
	}
}

func TestRequeueJobResetFlag(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantReset bool
	}{
		{name: "defaults to reset", args: []string{"--id", "0190a000-0000-7000-8000-000000000001"}, wantReset: true},
		{name: "explicit keep", args: []string{"--id", "0190a000-0000-7000-8000-000000000001", "--reset=false"}, wantReset: false},
		{name: "explicit reset", args: []string{"-r", "--id", "0190a000-0000-7000-8000-000000000001"}, wantReset: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requeue *cli.Command
			for _, cmd := range getQueueCommands() {
				if cmd.Name == "requeue-job" {
					requeue = cmd
				}
			}
			require.NotNil(t, requeue)

			var gotReset bool
			requeue.Action = func(_ context.Context, cmd *cli.Command) error {
				gotReset = cmd.Bool("reset")
				return nil
			}

			root := &cli.Command{Name: "app", Commands: []*cli.Command{requeue}}
			args := append([]string{"app", "requeue-job"}, tt.args...)
			require.NoError(t, root.Run(context.Background(), args))
			assert.Equal(t, tt.wantReset, gotReset)
		})
	}
}
