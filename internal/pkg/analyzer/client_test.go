package analyzer

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/respondr/respondr/internal/pkg/analyzer/api"
	"github.com/respondr/respondr/internal/pkg/test"
	"github.com/respondr/respondr/internal/pkg/utils"
)

type testResp struct {
	code int
	resp string
}

type testReq struct {
	body string
	URL  string
}

func newTestR(code int, resp string) testResp {
	return testResp{code: code, resp: resp}
}

func initTestServer(t *testing.T, rData map[string]testResp) (*Client, *httptest.Server, *[]testReq) {
	t.Helper()
	resRequest := make([]testReq, 0)
	rLock := &sync.Mutex{}
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rLock.Lock()
		defer rLock.Unlock()
		b, _ := io.ReadAll(req.Body)
		resRequest = append(resRequest, testReq{URL: req.URL.String(), body: string(b)})
		resp, f := rData[req.URL.String()]
		if f {
			rw.WriteHeader(resp.code)
			_, _ = rw.Write([]byte(resp.resp))
		} else {
			rw.WriteHeader(http.StatusNotFound)
		}
	}))
	// Use Client & URL from our local test server
	cl := Client{}
	cl.httpclient = server.Client()
	cl.analyzeURL, _ = url.JoinPath(server.URL, "analyze")
	cl.transcribeURL, _ = url.JoinPath(server.URL, "transcribe")
	cl.chatURL, _ = url.JoinPath(server.URL, "chat")
	cl.uploadTimeout = time.Second * 5
	cl.timeout = time.Second
	cl.backoff = func() backoff.BackOff {
		return &backoff.StopBackOff{}
	}
	t.Cleanup(func() { server.Close() })
	return &cl, server, &resRequest
}

func uploadData() *api.UploadData {
	return &api.UploadData{
		Files:  map[string]io.Reader{api.PrmVideo: strings.NewReader("video data")},
		Params: map[string]string{api.PrmNote: "olia", api.PrmSessionID: api.SessionNew},
	}
}

func Test_NewClient(t *testing.T) {
	tests := []struct {
		name              string
		aURL, tURL, chURL string
		wantErr           bool
	}{
		{name: "OK", aURL: "http://srv/analyze", tURL: "http://srv/transcribe", chURL: "http://srv/chat"},
		{name: "No analyze", tURL: "http://srv/transcribe", chURL: "http://srv/chat", wantErr: true},
		{name: "No transcribe", aURL: "http://srv/analyze", chURL: "http://srv/chat", wantErr: true},
		{name: "No chat", aURL: "http://srv/analyze", tURL: "http://srv/transcribe", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.aURL, tt.tURL, tt.chURL)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_Analyze_OK(t *testing.T) {
	cl, _, tReq := initTestServer(t, map[string]testResp{
		"/analyze": newTestR(200, `{"session_id":"s1","priority":"high"}`)})
	res, err := cl.Analyze(test.Ctx(t), uploadData(), nil)
	require.Nil(t, err)
	assert.Equal(t, "s1", res.SessionID)
	assert.Equal(t, "high", res.Priority)
	require.Equal(t, 1, len(*tReq))
	assert.Contains(t, (*tReq)[0].body, "video data")
	assert.Contains(t, (*tReq)[0].body, api.SessionNew)
}

func Test_Analyze_Progress(t *testing.T) {
	cl, _, _ := initTestServer(t, map[string]testResp{
		"/analyze": newTestR(200, `{"session_id":"s1"}`)})
	var calls []int
	_, err := cl.Analyze(test.Ctx(t), uploadData(), func(prc int) { calls = append(calls, prc) })
	require.Nil(t, err)
	require.NotEmpty(t, calls)
	last := -1
	for _, prc := range calls[:len(calls)-1] {
		assert.Greater(t, prc, last)
		last = prc
	}
	assert.Equal(t, 100, calls[len(calls)-1])
}

func Test_Analyze_Progress_ResetOnFailure(t *testing.T) {
	cl, _, _ := initTestServer(t, map[string]testResp{
		"/analyze": newTestR(500, `err`)})
	var calls []int
	_, err := cl.Analyze(test.Ctx(t), uploadData(), func(prc int) { calls = append(calls, prc) })
	require.NotNil(t, err)
	require.NotEmpty(t, calls)
	assert.Equal(t, 0, calls[len(calls)-1])
}

func Test_Analyze_ServerError(t *testing.T) {
	cl, _, _ := initTestServer(t, map[string]testResp{"/analyze": newTestR(503, `busy`)})
	_, err := cl.Analyze(test.Ctx(t), uploadData(), nil)
	assert.ErrorIs(t, err, utils.ErrServer)
	be := &utils.ErrBackend{}
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 503, be.HTTPStatus)
	assert.Equal(t, "busy", be.RawBody)
}

func Test_Analyze_ParseError(t *testing.T) {
	cl, _, _ := initTestServer(t, map[string]testResp{"/analyze": newTestR(200, `{olia`)})
	_, err := cl.Analyze(test.Ctx(t), uploadData(), nil)
	assert.ErrorIs(t, err, utils.ErrParse)
}

func Test_Analyze_NoSessionID(t *testing.T) {
	cl, _, _ := initTestServer(t, map[string]testResp{"/analyze": newTestR(200, `{}`)})
	var calls []int
	_, err := cl.Analyze(test.Ctx(t), uploadData(), func(prc int) { calls = append(calls, prc) })
	assert.ErrorIs(t, err, utils.ErrParse)
	require.NotEmpty(t, calls)
	assert.NotContains(t, calls, 100)
	assert.Equal(t, 0, calls[len(calls)-1])
}

func Test_Analyze_NetworkError(t *testing.T) {
	cl, server, _ := initTestServer(t, map[string]testResp{})
	server.Close()
	_, err := cl.Analyze(test.Ctx(t), uploadData(), nil)
	assert.ErrorIs(t, err, utils.ErrNetwork)
}

func Test_Transcribe_OK(t *testing.T) {
	cl, _, _ := initTestServer(t, map[string]testResp{
		"/transcribe": newTestR(200, `{"transcription":"olia text"}`)})
	res, err := cl.Transcribe(test.Ctx(t), &api.UploadData{
		Files: map[string]io.Reader{api.PrmAudio: strings.NewReader("audio")}})
	require.Nil(t, err)
	assert.Equal(t, "olia text", res.Transcription)
}

func Test_Transcribe_Retries(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		b, _ := io.ReadAll(req.Body)
		bodies = append(bodies, string(b))
		if len(bodies) == 1 {
			rw.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = rw.Write([]byte(`{"transcription":"olia"}`))
	}))
	defer server.Close()
	cl := Client{httpclient: server.Client(), transcribeURL: server.URL,
		uploadTimeout: time.Second, timeout: time.Second,
		backoff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 3)
		}}
	res, err := cl.Transcribe(test.Ctx(t), &api.UploadData{
		Files: map[string]io.Reader{api.PrmAudio: strings.NewReader("audio data")}})
	require.Nil(t, err)
	assert.Equal(t, "olia", res.Transcription)
	require.Equal(t, 2, len(bodies))
	// the retried attempt must resend the content, not a drained reader
	assert.Contains(t, bodies[0], "audio data")
	assert.Contains(t, bodies[1], "audio data")
}

func Test_Chat_OK(t *testing.T) {
	cl, _, tReq := initTestServer(t, map[string]testResp{
		"/chat": newTestR(200, `{"response":"Here are options","location_data":{"services":[{"name":"A","coordinates":{"lat":1,"lng":2},"map_ready":true,"type":"mechanic"}]}}`)})
	res, err := cl.SendChatTurn(test.Ctx(t), "s1", "find mechanics")
	require.Nil(t, err)
	assert.Equal(t, "Here are options", res.Response)
	require.NotNil(t, res.LocationData)
	require.Equal(t, 1, len(res.LocationData.Services))
	assert.True(t, res.LocationData.Services[0].MapReady)
	require.Equal(t, 1, len(*tReq))
	vals, err := url.ParseQuery((*tReq)[0].body)
	require.Nil(t, err)
	assert.Equal(t, "s1", vals.Get(api.PrmSessionID))
	assert.Equal(t, "find mechanics", vals.Get(api.PrmMessage))
}

func Test_Chat_NoSession(t *testing.T) {
	cl, _, tReq := initTestServer(t, map[string]testResp{})
	_, err := cl.SendChatTurn(test.Ctx(t), "", "olia")
	assert.NotNil(t, err)
	assert.Equal(t, 0, len(*tReq))
}

func Test_Chat_ServerError(t *testing.T) {
	cl, _, _ := initTestServer(t, map[string]testResp{"/chat": newTestR(500, `err`)})
	_, err := cl.SendChatTurn(test.Ctx(t), "s1", "olia")
	assert.ErrorIs(t, err, utils.ErrServer)
}

func Test_Chat_ParseError(t *testing.T) {
	cl, _, _ := initTestServer(t, map[string]testResp{"/chat": newTestR(200, `{olia`)})
	_, err := cl.SendChatTurn(test.Ctx(t), "s1", "olia")
	assert.ErrorIs(t, err, utils.ErrParse)
}
