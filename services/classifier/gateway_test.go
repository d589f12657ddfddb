package classifiersvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
)

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newTestClassifier(url string) *GatewayClassifier {
	conf := &core.Config{
		Classifier: core.ClassifierConfig{
			BaseURL: url,
			APIKey:  "test-key",
			Model:   "google/gemini-2.5-flash",
			Timeout: time.Second,
		},
	}
	return NewGatewayClassifier(nopLogger{}, conf)
}

func verdictServer(t *testing.T, verdict string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "google/gemini-2.5-flash", req.Model)
		require.Len(t, req.Messages, 2)

		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, verdict)
	}))
}

func TestGatewayClassify(t *testing.T) {
	t.Run("physical", func(t *testing.T) {
		srv := verdictServer(t, "PHYSICAL")
		defer srv.Close()

		res, err := newTestClassifier(srv.URL).Classify(context.Background(), "data:image/png;base64,AAAA")
		require.NoError(t, err)
		assert.True(t, res.IsPhysical())
		assert.Equal(t, "high", res.Confidence)
	})

	t.Run("screenshot", func(t *testing.T) {
		srv := verdictServer(t, " screenshot \n")
		defer srv.Close()

		res, err := newTestClassifier(srv.URL).Classify(context.Background(), "data:image/png;base64,AAAA")
		require.NoError(t, err)
		assert.False(t, res.IsPhysical())
		assert.Equal(t, attendance.OutcomeScreenshot, res.Outcome)
	})

	t.Run("gateway faults stay distinguishable from verdicts", func(t *testing.T) {
		tests := []struct {
			name    string
			status  int
			wantErr error
		}{
			{name: "rate limited", status: http.StatusTooManyRequests, wantErr: attendance.ErrRateLimited},
			{name: "quota exceeded", status: http.StatusPaymentRequired, wantErr: attendance.ErrQuotaExceeded},
			{name: "server error", status: http.StatusInternalServerError},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
				}))
				defer srv.Close()

				_, err := newTestClassifier(srv.URL).Classify(context.Background(), "data:image/png;base64,AAAA")
				require.Error(t, err)
				assert.True(t, attendance.IsClassifierUnavailable(err))
				if tt.wantErr != nil {
					assert.Equal(t, tt.wantErr, err)
				}
			})
		}
	})

	t.Run("unreachable gateway", func(t *testing.T) {
		srv := httptest.NewServer(nil)
		srv.Close() // connection refused

		_, err := newTestClassifier(srv.URL).Classify(context.Background(), "data:image/png;base64,AAAA")
		require.Error(t, err)
		assert.True(t, attendance.IsClassifierUnavailable(err))
	})

	t.Run("empty choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"choices":[]}`)
		}))
		defer srv.Close()

		_, err := newTestClassifier(srv.URL).Classify(context.Background(), "data:image/png;base64,AAAA")
		require.Error(t, err)
		assert.True(t, attendance.IsClassifierUnavailable(err))
	})
}
