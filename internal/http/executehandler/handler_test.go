package executehandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"codesync/internal/services/execution"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	got execution.Request
	res *execution.Result
	err error
}

func (f *fakeExec) Execute(_ context.Context, req execution.Request) (*execution.Result, error) {
	f.got = req
	return f.res, f.err
}

func post(t *testing.T, svc execution.IExecutionService, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(svc).Register(r)

	req := httptest.NewRequest(http.MethodPost, "/api/execute", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestExecuteSuccess(t *testing.T) {
	stdout := "1\n"
	svc := &fakeExec{res: &execution.Result{Stdout: &stdout, Status: execution.Status{ID: 3, Description: "Accepted"}}}

	rec, out := post(t, svc, `{"code":"print(1)","language_id":71,"input":"x"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "1\n", out["result"].(map[string]any)["stdout"])
	assert.Equal(t, execution.Request{SourceCode: "print(1)", LanguageID: 71, Stdin: "x"}, svc.got)
}

func TestExecuteErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		msg    string
	}{
		{"missing code", `{"language_id":71}`, nil, http.StatusBadRequest, "Code and language_id are required"},
		{"missing language", `{"code":"x"}`, nil, http.StatusBadRequest, "Code and language_id are required"},
		{"timeout", `{"code":"x","language_id":71}`, execution.ErrTimeout, http.StatusRequestTimeout, "Code execution timed out."},
		{"upstream", `{"code":"x","language_id":71}`, errors.New("boom"), http.StatusInternalServerError, "Failed to execute code."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, out := post(t, &fakeExec{err: tc.err}, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, false, out["success"])
			assert.Equal(t, tc.msg, out["message"])
		})
	}
}
