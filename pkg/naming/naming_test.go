package naming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNormalizeStage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"prod", "live"},
		{"production", "live"},
		{"dev", "dev"},
		{"stg", "stage"},
		{"testing", "test"},
		{"Local", "local"},
		{"My Env!", "my-env"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, NormalizeStage(tt.in), tt.in)
	}
}

func TestStateMachineName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Orders-Fulfil_v2-live", StateMachineName("Orders", "Fulfil_v2", "prod"))
	require.Equal(t, "Orders-dev", StateMachineName("Orders", "", "dev"))
	require.Equal(t, "order-flow", StateMachineName("", "order flow", ""))

	long := StateMachineName("app", strings.Repeat("w", 100), "stage")
	require.Len(t, long, MaxNameLength)
	require.True(t, strings.HasSuffix(long, "-stage"))
}

func TestExecutionName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "deploy-01HZX", ExecutionName("deploy", "01HZX"))
	require.Equal(t, "01HZX", ExecutionName(" ", "01HZX"))

	id := "01HZXK4Q6D2W8J7M3N5P9R0T1V"
	name := ExecutionName(strings.Repeat("p", 90), id)
	require.Len(t, name, MaxNameLength)
	require.True(t, strings.HasSuffix(name, "-"+id))

	require.Len(t, ExecutionName("", strings.Repeat("x", 100)), MaxNameLength)

	kept := ExecutionName("head"+strings.Repeat("m", 60)+"tail", id)
	require.True(t, strings.HasPrefix(kept, "head"))
	require.NotContains(t, kept, "tail")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Validate("orders_v2-live"))
	require.Error(t, Validate(""))
	require.Error(t, Validate("has space"))
	require.Error(t, Validate(strings.Repeat("a", 81)))
}

func TestNames_AlwaysValid(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		app := rapid.StringMatching(`[A-Za-z0-9 !_.-]{1,60}`).Draw(t, "app")
		workflow := rapid.StringMatching(`[A-Za-z0-9 _.-]{0,60}`).Draw(t, "workflow")
		stage := rapid.SampledFrom([]string{"prod", "dev", "qa"}).Draw(t, "stage")

		if err := Validate(StateMachineName(app, workflow, stage)); err != nil {
			t.Fatalf("state machine name: %v", err)
		}
		id := rapid.StringMatching(`[0-9A-Z]{26}`).Draw(t, "id")
		if err := Validate(ExecutionName(workflow, id)); err != nil {
			t.Fatalf("execution name: %v", err)
		}
	})
}
