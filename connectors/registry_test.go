package connectors_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/connectors"
)

type fakeConnector struct {
	connectErr error
	connected  bool
}

func (f *fakeConnector) Metadata() apitypes.ConnectorMetadata {
	return apitypes.ConnectorMetadata{
		Slug:     "crm",
		Name:     "CRM",
		AuthType: apitypes.AuthAPIKey,
		Actions: []apitypes.ConnectorAction{
			{Name: "get_contacts"},
			{Name: "create_contact"},
		},
	}
}

func (f *fakeConnector) Connect(ctx context.Context, config map[string]any) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeConnector) Execute(ctx context.Context, action string, params map[string]any) (apitypes.ConnectorResult, error) {
	if action == "get_contacts" {
		return apitypes.ConnectorResult{Success: true, Output: map[string]any{"contacts": []string{"a", "b"}}}, nil
	}
	return apitypes.ConnectorResult{}, errors.New("boom")
}

func (f *fakeConnector) Disconnect(ctx context.Context) error {
	f.connected = false
	return nil
}

func (f *fakeConnector) Health(ctx context.Context) connectors.HealthCheckResult {
	return connectors.HealthCheckResult{Healthy: f.connected}
}

func TestConnectExecuteDisconnect(t *testing.T) {
	reg := connectors.New()
	c := &fakeConnector{}
	require.NoError(t, reg.Register(c))

	require.NoError(t, reg.Connect(context.Background(), "crm", map[string]any{"api_key": "x"}))
	require.True(t, reg.IsConnected("crm"))

	result, err := reg.Execute(context.Background(), "crm", "get_contacts", nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	reg.Disconnect(context.Background(), "crm")
	require.False(t, reg.IsConnected("crm"))
}

func TestExecuteUnknownSlugAndAction(t *testing.T) {
	reg := connectors.New()
	c := &fakeConnector{}
	require.NoError(t, reg.Register(c))
	require.NoError(t, reg.Connect(context.Background(), "crm", nil))

	_, err := reg.Execute(context.Background(), "missing", "get_contacts", nil)
	require.Equal(t, apitypes.ErrNotFound, apitypes.CodeOf(err))

	_, err = reg.Execute(context.Background(), "crm", "delete_everything", nil)
	require.Equal(t, apitypes.ErrInvalidAction, apitypes.CodeOf(err))
}

func TestExecuteMapsErrorToProcessing(t *testing.T) {
	reg := connectors.New()
	c := &fakeConnector{}
	require.NoError(t, reg.Register(c))
	require.NoError(t, reg.Connect(context.Background(), "crm", nil))

	result, err := reg.Execute(context.Background(), "crm", "create_contact", nil)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, apitypes.ErrProcessing, result.ErrorCode)
}

func TestConnectFailurePropagates(t *testing.T) {
	reg := connectors.New()
	c := &fakeConnector{connectErr: errors.New("unreachable")}
	require.NoError(t, reg.Register(c))

	err := reg.Connect(context.Background(), "crm", nil)
	require.Equal(t, apitypes.ErrConnectionFailed, apitypes.CodeOf(err))
	require.False(t, reg.IsConnected("crm"))
}

func TestRateLimitBlocksExecute(t *testing.T) {
	reg := connectors.New(connectors.WithRateLimit(connectors.RateLimit{RatePerSecond: 0.0001, Burst: 1}))
	c := &fakeConnector{}
	require.NoError(t, reg.Register(c))
	require.NoError(t, reg.Connect(context.Background(), "crm", nil))

	first, err := reg.Execute(context.Background(), "crm", "get_contacts", nil)
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := reg.Execute(context.Background(), "crm", "get_contacts", nil)
	require.NoError(t, err)
	require.False(t, second.Success)
	require.Equal(t, apitypes.ErrRateLimited, second.ErrorCode)
}

func TestDisconnectAll(t *testing.T) {
	reg := connectors.New()
	c := &fakeConnector{}
	require.NoError(t, reg.Register(c))
	require.NoError(t, reg.Connect(context.Background(), "crm", nil))

	reg.DisconnectAll(context.Background())
	require.False(t, reg.IsConnected("crm"))
}
