package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osgpt/pkg/gateway/gwerrors"
	"osgpt/pkg/logx"
)

func TestDecisionClassification(t *testing.T) {
	assert.True(t, Decision{Text: "  \n"}.IsEmpty())
	assert.False(t, Decision{Text: "hi"}.IsEmpty())
	assert.False(t, Decision{Call: &FunctionCall{Name: "add_comment"}}.IsEmpty())
	assert.True(t, Decision{Call: &FunctionCall{Name: "add_comment"}}.IsFunctionCall())
	assert.False(t, Decision{Text: "hi"}.IsFunctionCall())
}

func TestNewRequestDefaults(t *testing.T) {
	req := NewRequest(nil, nil)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	assert.InDelta(t, 0.2, float64(req.Temperature), 0.001)
	assert.InDelta(t, 0.3, float64(req.TopP), 0.001)
	assert.False(t, req.ForceFunction)
}

func TestFlattenFoldsFunctionAndNamedMessages(t *testing.T) {
	msgs := flatten([]Message{
		SystemMessage("you are an engineer"),
		UserMessage("Norman Osborn", "please start"),
		AssistantMessage("ok"),
		FunctionMessage("add_comment", "Comment added."),
	})

	require.Len(t, msgs, 4)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, "Norman Osborn: please start", msgs[1].Content)
	assert.Equal(t, RoleAssistant, msgs[2].Role)
	assert.Equal(t, RoleUser, msgs[3].Role)
	assert.Contains(t, msgs[3].Content, "Function add_comment returned:")
}

func TestAlternateMergesAndValidates(t *testing.T) {
	system, merged, err := alternate([]Message{
		SystemMessage("rules"),
		UserMessage("Norman Osborn", "first"),
		FunctionMessage("read_file", "content"),
		AssistantMessage("reply"),
		UserMessage("", "second"),
	})
	require.NoError(t, err)
	assert.Equal(t, "rules", system)
	require.Len(t, merged, 3)
	assert.Equal(t, RoleUser, merged[0].Role)
	assert.Contains(t, merged[0].Content, "first")
	assert.Contains(t, merged[0].Content, "read_file")
	assert.Equal(t, RoleAssistant, merged[1].Role)
	assert.Equal(t, RoleUser, merged[2].Role)

	_, _, err = alternate([]Message{AssistantMessage("only")})
	assert.Error(t, err, "conversation must start with a user message")

	_, _, err = alternate(nil)
	assert.Error(t, err)
}

func TestRetryClientRetriesTransient(t *testing.T) {
	// Shrink delays so the test runs fast.
	orig := gwerrors.DefaultRetryConfigs[gwerrors.ErrorTypeTransient]
	cfg := orig
	cfg.InitialDelay = 0
	cfg.MaxDelay = 0
	cfg.Jitter = false
	gwerrors.DefaultRetryConfigs[gwerrors.ErrorTypeTransient] = cfg
	defer func() { gwerrors.DefaultRetryConfigs[gwerrors.ErrorTypeTransient] = orig }()

	mock := NewMockClient(
		ErrStep(gwerrors.New(gwerrors.ErrorTypeTransient, "server error")),
		ErrStep(gwerrors.New(gwerrors.ErrorTypeTransient, "server error")),
		TextStep("recovered"),
	)
	client := Wrap(mock, WithRetry(logx.NewLogger("test")))

	decision, err := client.Decide(context.Background(), NewRequest(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "recovered", decision.Text)
	assert.Equal(t, 3, mock.Calls())
}

func TestRetryClientStopsOnAuthError(t *testing.T) {
	mock := NewMockClient(
		ErrStep(gwerrors.New(gwerrors.ErrorTypeAuth, "bad key")),
		TextStep("never reached"),
	)
	client := NewRetryClient(mock, logx.NewLogger("test"))

	_, err := client.Decide(context.Background(), NewRequest(nil, nil))
	require.Error(t, err)
	assert.True(t, gwerrors.Is(err, gwerrors.ErrorTypeAuth))
	assert.Equal(t, 1, mock.Calls())
}

func TestRetryClientExhaustionBecomesUnavailable(t *testing.T) {
	orig := gwerrors.DefaultRetryConfigs[gwerrors.ErrorTypeTransient]
	cfg := orig
	cfg.MaxRetries = 1
	cfg.InitialDelay = 0
	cfg.MaxDelay = 0
	cfg.Jitter = false
	gwerrors.DefaultRetryConfigs[gwerrors.ErrorTypeTransient] = cfg
	defer func() { gwerrors.DefaultRetryConfigs[gwerrors.ErrorTypeTransient] = orig }()

	underlying := gwerrors.New(gwerrors.ErrorTypeTransient, "down")
	mock := NewMockClient(ErrStep(underlying), ErrStep(underlying), ErrStep(underlying))
	client := NewRetryClient(mock, logx.NewLogger("test"))

	_, err := client.Decide(context.Background(), NewRequest(nil, nil))
	require.Error(t, err)
	assert.True(t, gwerrors.Is(err, gwerrors.ErrorTypeUnavailable))
	assert.True(t, errors.Is(err, underlying))
	assert.Equal(t, 2, mock.Calls())
}

func TestClassifyClaudeError(t *testing.T) {
	cases := []struct {
		errText string
		want    gwerrors.ErrorType
	}{
		{"status code: 429 too many requests", gwerrors.ErrorTypeRateLimit},
		{"status code: 401 unauthorized", gwerrors.ErrorTypeAuth},
		{"status code: 400 invalid request", gwerrors.ErrorTypeBadPrompt},
		{"status code: 503 overloaded", gwerrors.ErrorTypeTransient},
		{"unexpected EOF", gwerrors.ErrorTypeTransient},
		{"something odd happened", gwerrors.ErrorTypeUnknown},
	}
	for _, tc := range cases {
		got := classifyClaudeError(errors.New(tc.errText))
		assert.Equal(t, tc.want, got.Type, tc.errText)
	}
}

func TestMockClientScriptExhaustion(t *testing.T) {
	mock := NewMockClient(TextStep("one"))
	_, err := mock.Decide(context.Background(), NewRequest(nil, nil))
	require.NoError(t, err)

	_, err = mock.Decide(context.Background(), NewRequest(nil, nil))
	require.Error(t, err)
	assert.True(t, gwerrors.Is(err, gwerrors.ErrorTypeEmptyResponse))
}

func TestWithTuningOverridesSamplingParams(t *testing.T) {
	mock := NewMockClient(TextStep("ok"), TextStep("ok"))
	client := Wrap(mock, WithTuning(8192, 0.7, 0.9))

	_, err := client.Decide(context.Background(), NewRequest(nil, nil))
	require.NoError(t, err)
	req := mock.Requests[0]
	assert.Equal(t, 8192, req.MaxTokens)
	assert.Equal(t, float32(0.7), req.Temperature)
	assert.Equal(t, float32(0.9), req.TopP)

	// Zero tuning values leave the request untouched.
	client = Wrap(mock, WithTuning(0, 0, 0))
	_, err = client.Decide(context.Background(), NewRequest(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxTokens, mock.Requests[1].MaxTokens)
}
