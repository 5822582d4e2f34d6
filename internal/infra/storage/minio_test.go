package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live MinIO when AUDITOR_TEST_MINIO_ENDPOINT is set, e.g.
// localhost:9000 with the default minioadmin credentials.
func TestPutAndPresign(t *testing.T) {
	endpoint := os.Getenv("AUDITOR_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("AUDITOR_TEST_MINIO_ENDPOINT not set")
	}
	ctx := context.Background()
	s, err := New(ctx, endpoint, "us-east-1", "auditor-test", "minioadmin", "minioadmin", false)
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))

	body := "contact_id,call_date\nc1,2024-01-05\n"
	link, err := s.Put(ctx, "exports/test.csv", "text/csv", bytes.NewBufferString(body), int64(len(body)), time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.Contains(link, "X-Amz-Signature"))

	resp, err := http.Get(link)
	require.NoError(t, err)
	defer resp.Body.Close()
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}
