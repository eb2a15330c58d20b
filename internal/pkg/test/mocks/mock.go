package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/respondr/respondr/internal/pkg/analyzer"
	"github.com/respondr/respondr/internal/pkg/analyzer/api"
)

// Backend is analysis backend mock
type Backend struct{ mock.Mock }

// Analyze func mock
func (m *Backend) Analyze(ctx context.Context, data *api.UploadData, progress analyzer.ProgressFunc) (*api.AnalyzeResponse, error) {
	args := m.Called(ctx, data, progress)
	return to[*api.AnalyzeResponse](args.Get(0)), args.Error(1)
}

// SendChatTurn func mock
func (m *Backend) SendChatTurn(ctx context.Context, sessionID, message string) (*api.ChatResponse, error) {
	args := m.Called(ctx, sessionID, message)
	return to[*api.ChatResponse](args.Get(0)), args.Error(1)
}

// Recorder is capture controller mock
type Recorder struct{ mock.Mock }

// Release func mock
func (m *Recorder) Release() {
	m.Called()
}

// Prober is duration prober mock
type Prober struct{ mock.Mock }

// Duration func mock
func (m *Prober) Duration(ctx context.Context, data []byte, mime string) (time.Duration, error) {
	args := m.Called(ctx, data, mime)
	return args.Get(0).(time.Duration), args.Error(1)
}

func to[T interface{}](val interface{}) T {
	if val == nil {
		var res T
		return res
	}
	return val.(T)
}
