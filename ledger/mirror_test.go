package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockLedger implements interfaces.Ledger for testing
type MockLedger struct {
	mock.Mock
	name  string
	table *MockTable
}

func (m *MockLedger) Table(name string) interfaces.Table {
	return m.table
}

func (m *MockLedger) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockLedger) Name() string {
	return m.name
}

func (m *MockLedger) LocationURI() string {
	return "mock:"
}

// MockTable implements interfaces.Table for testing
type MockTable struct {
	mock.Mock
}

func (m *MockTable) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockTable) Set(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockTable) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockTable) Keys(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func newMockLedger(name string) *MockLedger {
	return &MockLedger{name: name, table: &MockTable{}}
}

func TestMirrorLedger_Available(t *testing.T) {
	tests := []struct {
		name     string
		backends []bool
		expected bool
	}{
		{
			name:     "all backends available",
			backends: []bool{true, true, true},
			expected: true,
		},
		{
			name:     "some backends available",
			backends: []bool{false, true, false},
			expected: true,
		},
		{
			name:     "no backends available",
			backends: []bool{false, false, false},
			expected: false,
		},
		{
			name:     "no backends",
			backends: []bool{},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ledgers []interfaces.Ledger
			for i, available := range tt.backends {
				mockLedger := newMockLedger(fmt.Sprintf("mock-%x", i))
				mockLedger.On("Available", mock.Anything).Return(available).Maybe()
				ledgers = append(ledgers, mockLedger)
			}

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			mirror := NewMirrorLedger(ledgers, logger)

			result := mirror.Available(context.Background())
			assert.Equal(t, tt.expected, result)

			for _, backend := range ledgers {
				backend.(*MockLedger).AssertExpectations(t)
			}
		})
	}
}

func TestMirrorLedger_Get(t *testing.T) {
	testValue := []byte(`{"ids":["a","b"]}`)
	testErr := errors.New("test error")

	tests := []struct {
		name          string
		setupMocks    func() []interfaces.Ledger
		expectedValue []byte
		expectedErr   error
	}{
		{
			name: "first backend has the row",
			setupMocks: func() []interfaces.Ledger {
				mock1 := newMockLedger("mock-A")
				mock1.On("Available", mock.Anything).Return(true)
				mock1.table.On("Get", mock.Anything, "ALL").Return(testValue, nil)

				mock2 := newMockLedger("mock-B")
				// Not consulted, the first backend answers

				return []interfaces.Ledger{mock1, mock2}
			},
			expectedValue: testValue,
		},
		{
			name: "row missing in first backend, found in second",
			setupMocks: func() []interfaces.Ledger {
				mock1 := newMockLedger("mock-A")
				mock1.On("Available", mock.Anything).Return(true)
				mock1.table.On("Get", mock.Anything, "ALL").Return(nil, interfaces.ErrRowNotFound)

				mock2 := newMockLedger("mock-B")
				mock2.On("Available", mock.Anything).Return(true)
				mock2.table.On("Get", mock.Anything, "ALL").Return(testValue, nil)

				return []interfaces.Ledger{mock1, mock2}
			},
			expectedValue: testValue,
		},
		{
			name: "first backend errors, second succeeds",
			setupMocks: func() []interfaces.Ledger {
				mock1 := newMockLedger("mock-A")
				mock1.On("Available", mock.Anything).Return(true)
				mock1.table.On("Get", mock.Anything, "ALL").Return(nil, testErr)

				mock2 := newMockLedger("mock-B")
				mock2.On("Available", mock.Anything).Return(true)
				mock2.table.On("Get", mock.Anything, "ALL").Return(testValue, nil)

				return []interfaces.Ledger{mock1, mock2}
			},
			expectedValue: testValue,
		},
		{
			name: "row missing everywhere",
			setupMocks: func() []interfaces.Ledger {
				mock1 := newMockLedger("mock-A")
				mock1.On("Available", mock.Anything).Return(true)
				mock1.table.On("Get", mock.Anything, "ALL").Return(nil, interfaces.ErrRowNotFound)

				mock2 := newMockLedger("mock-B")
				mock2.On("Available", mock.Anything).Return(true)
				mock2.table.On("Get", mock.Anything, "ALL").Return(nil, interfaces.ErrRowNotFound)

				return []interfaces.Ledger{mock1, mock2}
			},
			expectedErr: interfaces.ErrRowNotFound,
		},
		{
			name: "unavailable backends are skipped",
			setupMocks: func() []interfaces.Ledger {
				mock1 := newMockLedger("mock-A")
				mock1.On("Available", mock.Anything).Return(false)
				// Get should not be called

				mock2 := newMockLedger("mock-B")
				mock2.On("Available", mock.Anything).Return(true)
				mock2.table.On("Get", mock.Anything, "ALL").Return(testValue, nil)

				return []interfaces.Ledger{mock1, mock2}
			},
			expectedValue: testValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledgers := tt.setupMocks()
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			mirror := NewMirrorLedger(ledgers, logger)

			value, err := mirror.Table("userRequests").Get(context.Background(), "ALL")

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedValue, value)

			for _, backend := range ledgers {
				backend.(*MockLedger).AssertExpectations(t)
				backend.(*MockLedger).table.AssertExpectations(t)
			}
		})
	}
}

func TestMirrorLedger_Set(t *testing.T) {
	testValue := []byte("row value")
	testErr := errors.New("test error")

	tests := []struct {
		name          string
		setupMocks    func() []interfaces.Ledger
		expectedError bool
	}{
		{
			name: "all backends successful",
			setupMocks: func() []interfaces.Ledger {
				mock1 := newMockLedger("mock-A")
				mock1.On("Available", mock.Anything).Return(true)
				mock1.table.On("Set", mock.Anything, "row", testValue).Return(nil)

				mock2 := newMockLedger("mock-B")
				mock2.On("Available", mock.Anything).Return(true)
				mock2.table.On("Set", mock.Anything, "row", testValue).Return(nil)

				return []interfaces.Ledger{mock1, mock2}
			},
		},
		{
			name: "some backends fail",
			setupMocks: func() []interfaces.Ledger {
				mock1 := newMockLedger("mock-A")
				mock1.On("Available", mock.Anything).Return(true)
				mock1.table.On("Set", mock.Anything, "row", testValue).Return(testErr)

				mock2 := newMockLedger("mock-B")
				mock2.On("Available", mock.Anything).Return(true)
				mock2.table.On("Set", mock.Anything, "row", testValue).Return(nil)

				return []interfaces.Ledger{mock1, mock2}
			},
		},
		{
			name: "all backends fail",
			setupMocks: func() []interfaces.Ledger {
				mock1 := newMockLedger("mock-A")
				mock1.On("Available", mock.Anything).Return(true)
				mock1.table.On("Set", mock.Anything, "row", testValue).Return(testErr)

				mock2 := newMockLedger("mock-B")
				mock2.On("Available", mock.Anything).Return(true)
				mock2.table.On("Set", mock.Anything, "row", testValue).Return(testErr)

				return []interfaces.Ledger{mock1, mock2}
			},
			expectedError: true,
		},
		{
			name: "unavailable backends are skipped",
			setupMocks: func() []interfaces.Ledger {
				mock1 := newMockLedger("mock-A")
				mock1.On("Available", mock.Anything).Return(false)
				// Set should not be called

				mock2 := newMockLedger("mock-B")
				mock2.On("Available", mock.Anything).Return(true)
				mock2.table.On("Set", mock.Anything, "row", testValue).Return(nil)

				return []interfaces.Ledger{mock1, mock2}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledgers := tt.setupMocks()
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			mirror := NewMirrorLedger(ledgers, logger)

			err := mirror.Table("users").Set(context.Background(), "row", testValue)

			if tt.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			for _, backend := range ledgers {
				backend.(*MockLedger).AssertExpectations(t)
				backend.(*MockLedger).table.AssertExpectations(t)
			}
		})
	}
}

func TestMirrorLedger_Keys(t *testing.T) {
	mock1 := newMockLedger("mock-A")
	mock1.On("Available", mock.Anything).Return(true)
	mock1.table.On("Keys", mock.Anything).Return([]string{"ALL", "a"}, nil)

	mock2 := newMockLedger("mock-B")
	mock2.On("Available", mock.Anything).Return(true)
	mock2.table.On("Keys", mock.Anything).Return([]string{"a", "b"}, nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mirror := NewMirrorLedger([]interfaces.Ledger{mock1, mock2}, logger)

	keys, err := mirror.Table("users").Keys(context.Background())
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"ALL", "a", "b"}, keys, "Keys should be the deduplicated union")
}
