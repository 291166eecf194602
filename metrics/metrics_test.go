package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServer(t *testing.T) {
	m, err := New("dataroom_test", "127.0.0.1:0")
	require.NoError(t, err)

	m.RecordTransaction(interfaces.OpSign, nil)
	m.RecordTransaction(interfaces.OpSign, nil)
	m.RecordTransaction(interfaces.OpSign, errors.New("not authorized"))
	m.RecordNotifications(3)
	m.RecordUpload(1024)

	rec := httptest.NewRecorder()
	m.srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `dataroom_test_transactions_total{operation="sign",outcome="ok"} 2`)
	assert.Contains(t, body, `dataroom_test_transactions_total{operation="sign",outcome="error"} 1`)
	assert.Contains(t, body, `dataroom_test_notifications_total 3`)
	assert.Contains(t, body, `dataroom_test_upload_bytes_total 1024`)
	assert.Contains(t, body, "go_goroutines", "runtime collectors should be registered")
}
