package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/cenkalti/backoff/v4"

	"github.com/respondr/respondr/internal/pkg/analyzer/api"
	"github.com/respondr/respondr/internal/pkg/utils"
)

// ProgressFunc receives upload progress percent in [0, 100].
// Values are monotonically non-decreasing and always end on 100 (success) or 0 (failure).
type ProgressFunc func(percent int)

// Client communicates with the accident analysis backend
type Client struct {
	httpclient    *http.Client
	analyzeURL    string
	transcribeURL string
	chatURL       string
	uploadTimeout time.Duration
	timeout       time.Duration
	backoff       func() backoff.BackOff
}

// NewClient creates an analysis backend client
func NewClient(analyzeURL, transcribeURL, chatURL string) (*Client, error) {
	res := Client{}
	if analyzeURL == "" {
		return nil, fmt.Errorf("no analyzeURL")
	}
	if transcribeURL == "" {
		return nil, fmt.Errorf("no transcribeURL")
	}
	if chatURL == "" {
		return nil, fmt.Errorf("no chatURL")
	}
	res.analyzeURL = analyzeURL
	res.transcribeURL = transcribeURL
	res.chatURL = chatURL
	res.uploadTimeout = time.Minute * 10
	res.timeout = time.Second * 50
	res.httpclient = newHTTPClient()
	res.backoff = newSimpleBackoff
	return &res, nil
}

// Analyze uploads the accident video for analysis.
// It is never retried - a failure is surfaced to the caller as is.
// progress may be nil. Exactly one terminal progress event is emitted,
// 100 only after the response validated, so a bad payload can't flash success.
func (sp *Client) Analyze(ctx context.Context, data *api.UploadData, progress ProgressFunc) (*api.AnalyzeResponse, error) {
	failed := true
	defer func() {
		if progress != nil {
			if failed {
				progress(0)
			} else {
				progress(100)
			}
		}
	}()
	res := &api.AnalyzeResponse{}
	if err := sp.upload(ctx, sp.analyzeURL, data, progress, res); err != nil {
		return nil, err
	}
	if res.SessionID == "" {
		return nil, utils.NewErrBackend(utils.ErrParse, http.StatusOK, "", fmt.Errorf("no session_id in response"))
	}
	failed = false
	return res, nil
}

// Transcribe sends a short dictation audio and returns the recognized text.
// The call is cheap to repeat, so transient failures are retried with backoff.
// File content is snapshotted up front - every attempt sends fresh readers,
// a drained one must not go out again as an empty part.
func (sp *Client) Transcribe(ctx context.Context, data *api.UploadData) (*api.TranscribeResponse, error) {
	files := map[string][]byte{}
	for k, r := range data.Files {
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("can't read file '%s': %w", k, err)
		}
		files[k] = b
	}
	return goapp.InvokeWithBackoff(ctx, func() (*api.TranscribeResponse, bool, error) {
		attempt := &api.UploadData{Params: data.Params, Files: map[string]io.Reader{}}
		for k, b := range files {
			attempt.Files[k] = bytes.NewReader(b)
		}
		res := &api.TranscribeResponse{}
		err := sp.upload(ctx, sp.transcribeURL, attempt, nil, res)
		if err != nil {
			return nil, retryable(err), err
		}
		return res, false, nil
	}, sp.backoff())
}

// SendChatTurn posts one chat message for an existing session.
// sessionID must be a previously issued non-empty identifier.
func (sp *Client) SendChatTurn(ctx context.Context, sessionID, message string) (*api.ChatResponse, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("no sessionID")
	}
	form := url.Values{}
	form.Set(api.PrmSessionID, sessionID)
	form.Set(api.PrmMessage, message)

	ctx, cancelF := context.WithTimeout(ctx, sp.timeout)
	defer cancelF()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sp.chatURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, utils.NewErrBackend(utils.ErrNetwork, 0, "", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	goapp.Log.Info().Str("url", req.URL.String()).Str("ID", sessionID).Msg("chat turn")
	resp, err := sp.httpclient.Do(req)
	if err != nil {
		return nil, utils.NewErrBackend(utils.ErrNetwork, 0, "", fmt.Errorf("can't call: %w", err))
	}
	defer closeBody(resp)
	br, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, utils.NewErrBackend(utils.ErrNetwork, resp.StatusCode, "", fmt.Errorf("can't read body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, utils.NewErrBackend(utils.ErrServer, resp.StatusCode, string(br),
			fmt.Errorf("can't invoke '%s'", req.URL.String()))
	}
	res := &api.ChatResponse{}
	if err := json.Unmarshal(br, res); err != nil {
		return nil, utils.NewErrBackend(utils.ErrParse, resp.StatusCode, string(br), fmt.Errorf("can't decode response: %w", err))
	}
	return res, nil
}

const maxBodySize = 1 << 22

// upload performs one multipart POST reporting send progress up to 99,
// the terminal event stays with the caller
func (sp *Client) upload(ctx context.Context, urlStr string, data *api.UploadData, progress ProgressFunc, out interface{}) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for v, k := range data.Files {
		part, err := writer.CreateFormFile(v, v)
		if err != nil {
			return utils.NewErrBackend(utils.ErrNetwork, 0, "", fmt.Errorf("can't add file to request: %w", err))
		}
		if _, err = io.Copy(part, k); err != nil {
			return utils.NewErrBackend(utils.ErrNetwork, 0, "", fmt.Errorf("can't add file content to request: %w", err))
		}
	}
	for v, k := range data.Params {
		if err := writer.WriteField(v, k); err != nil {
			return utils.NewErrBackend(utils.ErrNetwork, 0, "", fmt.Errorf("can't add param: %w", err))
		}
	}
	writer.Close()

	pr := newProgressReader(body, int64(body.Len()), progress)
	ctx, cancelF := context.WithTimeout(ctx, sp.uploadTimeout)
	defer cancelF()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, pr)
	if err != nil {
		return utils.NewErrBackend(utils.ErrNetwork, 0, "", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	goapp.Log.Info().Str("url", req.URL.String()).Str("method", req.Method).Msg("call")
	resp, err := sp.httpclient.Do(req)
	if err != nil {
		return utils.NewErrBackend(utils.ErrNetwork, 0, "", fmt.Errorf("can't call: %w", err))
	}
	defer closeBody(resp)
	br, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return utils.NewErrBackend(utils.ErrNetwork, resp.StatusCode, "", fmt.Errorf("can't read body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return utils.NewErrBackend(utils.ErrServer, resp.StatusCode, string(br),
			fmt.Errorf("can't invoke '%s'", req.URL.String()))
	}
	if err := json.Unmarshal(br, out); err != nil {
		return utils.NewErrBackend(utils.ErrParse, resp.StatusCode, string(br), fmt.Errorf("can't decode response: %w", err))
	}
	return nil
}

// progressReader reports percent sent while the request body is consumed.
// Reported values never decrease and stop at 99 - the terminal event is the caller's.
type progressReader struct {
	r     io.Reader
	total int64
	sent  int64
	last  int
	fn    ProgressFunc
}

func newProgressReader(r io.Reader, total int64, fn ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, fn: fn}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 && pr.fn != nil && pr.total > 0 {
		pr.sent += int64(n)
		prc := int(pr.sent * 100 / pr.total)
		if prc > 99 {
			prc = 99
		}
		if prc > pr.last {
			pr.last = prc
			pr.fn(prc)
		}
	}
	return n, err
}

func retryable(err error) bool {
	be := &utils.ErrBackend{}
	if errors.As(err, &be) {
		if be.Kind == utils.ErrNetwork {
			return true
		}
		return goapp.IsRetryableCode(be.HTTPStatus)
	}
	return false
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10000))
	_ = resp.Body.Close()
}

func newHTTPClient() *http.Client {
	return &http.Client{Transport: newTransport()}
}

func newTransport() http.RoundTripper {
	// default roundripper is not well suited for our case
	// it has just 2 idle connections per host, so try to tune a bit
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxConnsPerHost = 100
	res.MaxIdleConns = 50
	res.MaxIdleConnsPerHost = 50
	res.IdleConnTimeout = 90 * time.Second
	return res
}

func newSimpleBackoff() backoff.BackOff {
	res := backoff.NewExponentialBackOff()
	return backoff.WithMaxRetries(res, 3)
}
