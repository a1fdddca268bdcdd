package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// setupRouter creates a router over two mocks, with a log observer.
func setupRouter(t *testing.T) (*LLMRouter, *MockLLMClient, *MockLLMClient, *observer.ObservedLogs) {
	t.Helper()
	loggerCore, observedLogs := observer.New(zap.DebugLevel)

	fastClient := &MockLLMClient{Name: "FastClient"}
	powerfulClient := &MockLLMClient{Name: "PowerfulClient"}

	router, err := NewLLMRouter(zap.New(loggerCore), fastClient, powerfulClient)
	require.NoError(t, err, "NewLLMRouter should initialize successfully")
	return router, fastClient, powerfulClient, observedLogs
}

func TestNewLLMRouter_Failure_MissingClients(t *testing.T) {
	validClient := new(MockLLMClient)

	tests := []struct {
		name     string
		fast     schemas.LLMClient
		powerful schemas.LLMClient
	}{
		{"Missing Fast Client", nil, validClient},
		{"Missing Powerful Client", validClient, nil},
		{"Missing Both Clients", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, err := NewLLMRouter(zap.NewNop(), tt.fast, tt.powerful)
			assert.Nil(t, router)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "both fast and powerful tier clients must be provided")
		})
	}
}

func TestLLMRouter_Generate_Routing(t *testing.T) {
	tests := []struct {
		name         string
		tier         schemas.ModelTier
		wantPowerful bool
	}{
		{"fast tier", schemas.TierFast, false},
		{"powerful tier", schemas.TierPowerful, true},
		{"empty tier defaults to powerful", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, fast, powerful, logs := setupRouter(t)
			req := schemas.GenerationRequest{Tier: tt.tier}

			target, other := fast, powerful
			if tt.wantPowerful {
				target, other = powerful, fast
			}
			target.On("Generate", mock.Anything, req).Return("answer", nil).Once()

			got, err := router.Generate(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, "answer", got)
			target.AssertExpectations(t)
			other.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
			assert.Equal(t, 1, logs.FilterMessage("Routing LLM request").Len())
		})
	}
}

func TestLLMRouter_Generate_UnknownTier(t *testing.T) {
	router, _, _, _ := setupRouter(t)
	_, err := router.Generate(context.Background(), schemas.GenerationRequest{Tier: "enormous"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM client configured for tier: enormous")
}

func TestLLMRouter_Generate_PropagatesError(t *testing.T) {
	router, fast, _, _ := setupRouter(t)
	boom := errors.New("boom")
	fast.On("Generate", mock.Anything, mock.Anything).Return("", boom).Once()

	_, err := router.Generate(context.Background(), schemas.GenerationRequest{Tier: schemas.TierFast})
	assert.ErrorIs(t, err, boom)
}

func TestLLMRouter_Close(t *testing.T) {
	t.Run("distinct clients", func(t *testing.T) {
		router, fast, powerful, _ := setupRouter(t)
		boom := errors.New("close failed")
		fast.On("Close").Return(nil).Once()
		powerful.On("Close").Return(boom).Once()

		err := router.Close()
		assert.ErrorIs(t, err, boom)
		fast.AssertExpectations(t)
		powerful.AssertExpectations(t)
	})

	t.Run("shared client closes once", func(t *testing.T) {
		shared := new(MockLLMClient)
		shared.On("Close").Return(nil).Once()
		router, err := NewLLMRouter(zap.NewNop(), shared, shared)
		require.NoError(t, err)

		require.NoError(t, router.Close())
		shared.AssertNumberOfCalls(t, "Close", 1)
	})
}
