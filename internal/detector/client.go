package detector

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
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"crashanalytix-console/internal/model"
)

const (
	predictPath = "/predict"
	platePath   = "/detect-license-plate"
	listPath    = "/accidents"
	collagePath = "/collages"

	// FileField is the only form field the detector reads.
	FileField = "file"

	maxJSONBytes    = 16 << 20
	maxCollageBytes = 32 << 20
)

// Client talks to the remote detection service. It sends no auth headers and
// never retries.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "detector").Logger(),
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Predict uploads a video to /predict and returns the raw response.
func (c *Client) Predict(ctx context.Context, filename string, video io.Reader) (model.PredictResponse, error) {
	var out model.PredictResponse
	if err := c.upload(ctx, "predict", predictPath, filename, video, &out); err != nil {
		return model.PredictResponse{}, err
	}
	return out, nil
}

// DetectLicensePlate uploads a video to /detect-license-plate.
func (c *Client) DetectLicensePlate(ctx context.Context, filename string, video io.Reader) (model.PlateResponse, error) {
	var out model.PlateResponse
	if err := c.upload(ctx, "detect-license-plate", platePath, filename, video, &out); err != nil {
		return model.PlateResponse{}, err
	}
	return out, nil
}

// ListAccidents fetches persisted accidents. Ordering is decided by the
// service; sortBySeverity is passed through untouched.
func (c *Client) ListAccidents(ctx context.Context, sortBySeverity bool) ([]model.AccidentRecord, error) {
	query := url.Values{}
	query.Set("sortBySeverity", strconv.FormatBool(sortBySeverity))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+listPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, &TransportError{Op: "list-accidents", Err: err}
	}

	body, status, err := c.do(req, maxJSONBytes)
	if err != nil {
		return nil, &TransportError{Op: "list-accidents", StatusCode: status, Err: err}
	}

	records := []model.AccidentRecord{}
	if isEmptyBody(body) {
		return records, nil
	}
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, &TransportError{Op: "list-accidents", StatusCode: status, Err: fmt.Errorf("decode: %w", err)}
	}
	if records == nil {
		records = []model.AccidentRecord{}
	}
	for i := range records {
		records[i] = records[i].Normalized()
	}
	return records, nil
}

// GetAccident fetches one persisted accident. An empty response or a 404
// yields ErrNotFound; every other failure is a *TransportError.
func (c *Client) GetAccident(ctx context.Context, id string) (*model.AccidentRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+listPath+"/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, &TransportError{Op: "get-accident", Err: err}
	}

	body, status, err := c.do(req, maxJSONBytes)
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &TransportError{Op: "get-accident", StatusCode: status, Err: err}
	}
	if isEmptyBody(body) {
		return nil, ErrNotFound
	}

	var record model.AccidentRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, &TransportError{Op: "get-accident", StatusCode: status, Err: fmt.Errorf("decode: %w", err)}
	}
	record = record.Normalized()
	if record.ID == "" {
		record.ID = id
	}
	return &record, nil
}

// CollageURL is the public address of an accident snapshot collage.
func (c *Client) CollageURL(id string) string {
	return c.baseURL + path.Join(collagePath, url.PathEscape(id)+".jpg")
}

// CollageExists probes the snapshot collage with a HEAD request.
func (c *Client) CollageExists(ctx context.Context, id string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.CollageURL(id), nil)
	if err != nil {
		return false, &TransportError{Op: "probe-collage", Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, &TransportError{Op: "probe-collage", Err: err}
	}
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, &TransportError{Op: "probe-collage", StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
}

// FetchCollage downloads the snapshot collage bytes.
func (c *Client) FetchCollage(ctx context.Context, id string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.CollageURL(id), nil)
	if err != nil {
		return nil, &TransportError{Op: "fetch-collage", Err: err}
	}
	body, status, err := c.do(req, maxCollageBytes)
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &TransportError{Op: "fetch-collage", StatusCode: status, Err: err}
	}
	return body, nil
}

func (c *Client) upload(ctx context.Context, op, endpoint, filename string, video io.Reader, out any) error {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		part, err := form.CreateFormFile(FileField, filename)
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, video); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(form.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	body, status, err := c.do(req, maxJSONBytes)
	_ = pr.Close()
	if err != nil {
		return &TransportError{Op: op, StatusCode: status, Err: err}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Op: op, StatusCode: status, Err: fmt.Errorf("decode: %w", err)}
	}

	c.log.Debug().Str("op", op).Str("file", filename).Int("status", status).Msg("detector call completed")
	return nil
}

// do executes req and returns the body of a 2xx response. For other
// statuses the status code is returned alongside an error.
func (c *Client) do(req *http.Request, limit int64) ([]byte, int, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, resp.StatusCode, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet(body))
	}
	return body, resp.StatusCode, nil
}

func isEmptyBody(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}"))
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
