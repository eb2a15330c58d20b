package devserver

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/respondr/respondr/internal/pkg/analyzer/api"
	"github.com/respondr/respondr/internal/pkg/test"
)

var (
	tData *Data
	tEcho *echo.Echo
)

func initTest(t *testing.T) {
	t.Helper()
	tData = &Data{Port: 8000, Sessions: NewSessionCache()}
	tEcho = initRoutes(tData)
}

func multipartReq(t *testing.T, path, field, fileName, content string, params map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, fileName)
	require.Nil(t, err)
	_, err = part.Write([]byte(content))
	require.Nil(t, err)
	for k, v := range params {
		require.Nil(t, writer.WriteField(k, v))
	}
	require.Nil(t, writer.Close())
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func formReq(path string, params map[string]string) *http.Request {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return req
}

func TestWrongPath(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodGet, "/invalid", nil)
	test.Code(t, tEcho, req, http.StatusNotFound)
}

func TestWrongMethod(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodGet, "/analyze", nil)
	test.Code(t, tEcho, req, http.StatusMethodNotAllowed)
}

func TestLive(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	resp := test.Code(t, tEcho, req, http.StatusOK)
	assert.Equal(t, `{"service":"OK"}`, strings.TrimSpace(resp.Body.String()))
}

func TestAnalyze(t *testing.T) {
	initTest(t)
	req := multipartReq(t, "/analyze", api.PrmVideo, "crash.mp4", "video data",
		map[string]string{api.PrmNote: "rear ended", api.PrmSessionID: api.SessionNew})
	resp := test.Code(t, tEcho, req, http.StatusOK)
	res := api.AnalyzeResponse{}
	require.Nil(t, json.Unmarshal(resp.Body.Bytes(), &res))
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, "high", res.Priority)
	require.NotNil(t, res.Analysis)
	require.NotNil(t, res.Analysis.FinalAssessment)
	assert.Equal(t, 2, res.Analysis.FinalAssessment.CarsInvolved)
	_, ok := tData.Sessions.Get(res.SessionID)
	assert.True(t, ok)
}

func TestAnalyze_KeepsProvidedID(t *testing.T) {
	initTest(t)
	req := multipartReq(t, "/analyze", api.PrmVideo, "crash.mp4", "video data",
		map[string]string{api.PrmSessionID: "olia-id"})
	resp := test.Code(t, tEcho, req, http.StatusOK)
	res := api.AnalyzeResponse{}
	require.Nil(t, json.Unmarshal(resp.Body.Bytes(), &res))
	assert.Equal(t, "olia-id", res.SessionID)
}

func TestAnalyze_NoFile(t *testing.T) {
	initTest(t)
	req := formReq("/analyze", map[string]string{api.PrmNote: "olia"})
	test.Code(t, tEcho, req, http.StatusBadRequest)
}

func TestAnalyze_ForcedFail(t *testing.T) {
	initTest(t)
	req := multipartReq(t, "/analyze", api.PrmVideo, "crash.mp4", "video data",
		map[string]string{prmFail: "true"})
	test.Code(t, tEcho, req, http.StatusInternalServerError)
}

func TestChat_ForcedFail(t *testing.T) {
	initTest(t)
	tData.Sessions.SetDefault("s1", &sessionData{})
	req := formReq("/chat", map[string]string{api.PrmSessionID: "s1", api.PrmMessage: "hi", prmFail: "1"})
	test.Code(t, tEcho, req, http.StatusInternalServerError)
}

func TestTranscribe(t *testing.T) {
	initTest(t)
	req := multipartReq(t, "/transcribe", api.PrmAudio, "note.webm", "audio data", nil)
	resp := test.Code(t, tEcho, req, http.StatusOK)
	res := api.TranscribeResponse{}
	require.Nil(t, json.Unmarshal(resp.Body.Bytes(), &res))
	assert.NotEmpty(t, res.Transcription)
}

func TestTranscribe_NoFile(t *testing.T) {
	initTest(t)
	req := formReq("/transcribe", nil)
	test.Code(t, tEcho, req, http.StatusBadRequest)
}

func TestChat(t *testing.T) {
	initTest(t)
	tData.Sessions.SetDefault("s1", &sessionData{})
	req := formReq("/chat", map[string]string{api.PrmSessionID: "s1", api.PrmMessage: "what now?"})
	resp := test.Code(t, tEcho, req, http.StatusOK)
	res := api.ChatResponse{}
	require.Nil(t, json.Unmarshal(resp.Body.Bytes(), &res))
	assert.NotEmpty(t, res.Response)
	assert.Nil(t, res.LocationData)
}

func TestChat_Location(t *testing.T) {
	initTest(t)
	tData.Sessions.SetDefault("s1", &sessionData{})
	req := formReq("/chat", map[string]string{api.PrmSessionID: "s1", api.PrmMessage: "find a mechanic"})
	resp := test.Code(t, tEcho, req, http.StatusOK)
	res := api.ChatResponse{}
	require.Nil(t, json.Unmarshal(resp.Body.Bytes(), &res))
	require.NotNil(t, res.LocationData)
	assert.NotEmpty(t, res.LocationData.Services)
}

func TestChat_UnknownSession(t *testing.T) {
	initTest(t)
	req := formReq("/chat", map[string]string{api.PrmSessionID: "olia", api.PrmMessage: "hi"})
	test.Code(t, tEcho, req, http.StatusNotFound)
}

func TestChat_MissingParams(t *testing.T) {
	initTest(t)
	tests := []struct {
		name   string
		params map[string]string
	}{
		{name: "No session", params: map[string]string{api.PrmMessage: "hi"}},
		{name: "No message", params: map[string]string{api.PrmSessionID: "s1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := formReq("/chat", tt.params)
			test.Code(t, tEcho, req, http.StatusBadRequest)
		})
	}
}

func TestAnalyze_HTTPRoundTrip(t *testing.T) {
	initTest(t)
	srv := httptest.NewServer(tEcho)
	defer srv.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(api.PrmVideo, "crash.mp4")
	require.Nil(t, err)
	_, err = part.Write([]byte("video data"))
	require.Nil(t, err)
	require.Nil(t, writer.Close())
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/analyze", body)
	require.Nil(t, err)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())

	resp := test.CheckCode(t, test.Invoke(t, srv.Client(), req), http.StatusOK)
	res := test.Decode[api.AnalyzeResponse](t, resp)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, "high", res.Priority)
}

func TestLive_HTTPRoundTrip(t *testing.T) {
	initTest(t)
	srv := httptest.NewServer(tEcho)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/live", nil)
	require.Nil(t, err)
	resp := test.CheckCode(t, test.Invoke(t, srv.Client(), req), http.StatusOK)
	assert.Equal(t, `{"service":"OK"}`, strings.TrimSpace(test.RStr(t, resp.Body)))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		data    *Data
		wantErr bool
	}{
		{name: "OK", data: &Data{Port: 8000, Sessions: NewSessionCache()}},
		{name: "No cache", data: &Data{Port: 8000}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
