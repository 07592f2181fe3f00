// Package testutil holds fixtures and HTTP helpers shared by package tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/capability.report/internal/analysis"
	"github.com/banshee-data/capability.report/internal/spc"
)

// FiveGroupRequest is a complete five-group run of five values each.
// Its mean of means is 10.08 and its average range 0.4. The first limit
// pair is capable, the second is not.
func FiveGroupRequest() *analysis.Request {
	return &analysis.Request{
		Analyst: "Sam",
		Groups: []analysis.GroupInput{
			{DeclaredCount: 5, Values: "10.1, 10.3, 9.9, 10.0, 10.2"},
			{DeclaredCount: 5, Values: "10.0, 10.4, 10.1, 9.8, 10.2"},
			{DeclaredCount: 5, Values: "9.9, 10.0, 10.1, 10.2, 10.0"},
			{DeclaredCount: 5, Values: "10.2, 10.1, 10.3, 10.0, 9.9"},
			{DeclaredCount: 5, Values: "10.0, 9.9, 10.1, 10.2, 10.1"},
		},
		Limits: []spc.Limits{{LCL: 9, UCL: 11}, {LCL: 9.8, UCL: 10.4}},
	}
}

// Do sends a request with an optional JSON body to h and returns the
// recorded response.
func Do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = bytes.NewBufferString(b)
		default:
			buf, err := json.Marshal(b)
			require.NoError(t, err)
			r = bytes.NewReader(buf)
		}
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// DecodeBody unmarshals a recorded JSON response into a T.
func DecodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}
