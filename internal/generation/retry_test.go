package generation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/at-ishikawa/surveygen/internal/generation"
	mock_generation "github.com/at-ishikawa/surveygen/internal/mocks/generation"
	"github.com/at-ishikawa/surveygen/internal/survey"
)

func TestWithRetry(t *testing.T) {
	doc, err := survey.NewDocument("Coffee", []survey.Question{
		{Type: survey.QuestionOpenText, Text: "Why coffee?"},
	})
	require.NoError(t, err)
	transportErr := generation.TransportError(errors.New("connection reset"))
	invalidErr := generation.InvalidOutputError("not json", errors.New("invalid character"))

	tests := []struct {
		name      string
		attempts  uint
		setupMock func(m *mock_generation.MockGeneratorMockRecorder)
		wantKind  generation.Kind
	}{
		{
			name:     "no retries passes the first result through",
			attempts: 0,
			setupMock: func(m *mock_generation.MockGeneratorMockRecorder) {
				m.Generate(gomock.Any(), "coffee").Return(survey.Document{}, transportErr).Times(1)
			},
			wantKind: generation.KindTransport,
		},
		{
			name:     "transport failure is retried until success",
			attempts: 2,
			setupMock: func(m *mock_generation.MockGeneratorMockRecorder) {
				gomock.InOrder(
					m.Generate(gomock.Any(), "coffee").Return(survey.Document{}, transportErr),
					m.Generate(gomock.Any(), "coffee").Return(doc, nil),
				)
			},
		},
		{
			name:     "transport failure gives up after the configured attempts",
			attempts: 2,
			setupMock: func(m *mock_generation.MockGeneratorMockRecorder) {
				m.Generate(gomock.Any(), "coffee").Return(survey.Document{}, transportErr).Times(3)
			},
			wantKind: generation.KindTransport,
		},
		{
			name:     "invalid output is never retried",
			attempts: 2,
			setupMock: func(m *mock_generation.MockGeneratorMockRecorder) {
				m.Generate(gomock.Any(), "coffee").Return(survey.Document{}, invalidErr).Times(1)
			},
			wantKind: generation.KindInvalidOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			next := mock_generation.NewMockGenerator(ctrl)
			tt.setupMock(next.EXPECT())

			got, err := generation.WithRetry(next, tt.attempts, time.Millisecond).Generate(context.Background(), "coffee")
			if tt.wantKind != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, generation.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, doc.Raw(), got.Raw())
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, generation.KindTransport, generation.KindOf(context.DeadlineExceeded))
	assert.Equal(t, generation.KindInvalidOutput, generation.KindOf(
		errors.Join(errors.New("wrapped"), generation.InvalidOutputError("", nil)),
	))
	assert.Equal(t, "invalid_output", generation.KindInvalidOutput.String())
	assert.Equal(t, "generation transport", generation.TransportError(nil).Error())
}
