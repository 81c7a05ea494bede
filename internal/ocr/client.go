package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ClientConfig for the Vision REST client.
type ClientConfig struct {
	Endpoint string // e.g. https://<region>.api.cognitive.microsoft.com
	APIKey   string
	Timeout  time.Duration // per-request HTTP timeout
}

// restClient talks to a Vision-style OCR REST service. It exposes every call
// shape the invoker knows about; the deployed API version decides which of
// them actually answer, the rest surface as shape mismatches.
type restClient struct {
	cfg    ClientConfig
	http   *http.Client
	logger *zap.Logger
}

func NewRESTClient(cfg ClientConfig, logger *zap.Logger) Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &restClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

const (
	analyzePath = "/computervision/imageanalysis:analyze?api-version=2023-10-01&features=read"
	readPath    = "/vision/v3.2/read/analyze"
)

// analyzeResponse is the synchronous image-analysis result shape.
type analyzeResponse struct {
	ReadResult struct {
		Blocks []struct {
			Lines []struct {
				Text string `json:"text"`
			} `json:"lines"`
		} `json:"blocks"`
	} `json:"readResult"`
}

// readOperationResponse is the asynchronous read operation result shape.
type readOperationResponse struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		ReadResults []struct {
			Lines []struct {
				Text string `json:"text"`
			} `json:"lines"`
		} `json:"readResults"`
	} `json:"analyzeResult"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *restClient) AnalyzeBytes(ctx context.Context, data []byte, contentType string) (*Result, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	body, err := c.post(ctx, c.cfg.Endpoint+analyzePath, contentType, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return decodeAnalyze(body)
}

func (c *restClient) AnalyzeStream(ctx context.Context, r io.Reader, contentType string) (*Result, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	body, err := c.post(ctx, c.cfg.Endpoint+analyzePath, contentType, r)
	if err != nil {
		return nil, err
	}
	return decodeAnalyze(body)
}

func (c *restClient) AnalyzeURL(ctx context.Context, imageURL string) (*Result, error) {
	payload, _ := json.Marshal(map[string]string{"url": imageURL})
	body, err := c.post(ctx, c.cfg.Endpoint+analyzePath, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	return decodeAnalyze(body)
}

func decodeAnalyze(body []byte) (*Result, error) {
	var resp analyzeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode analyze response: %v", ErrUnavailable, err)
	}
	res := &Result{}
	for _, b := range resp.ReadResult.Blocks {
		for _, l := range b.Lines {
			res.Lines = append(res.Lines, l.Text)
		}
	}
	return res, nil
}

func (c *restClient) SubmitRead(ctx context.Context, in Input) (string, error) {
	var (
		contentType string
		payload     io.Reader
	)
	if in.URL != "" {
		b, _ := json.Marshal(map[string]string{"url": in.URL})
		contentType, payload = "application/json", bytes.NewReader(b)
	} else {
		contentType, payload = "application/octet-stream", bytes.NewReader(in.Bytes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+readPath, payload)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return "", classifyStatus(resp.StatusCode, raw)
	}
	opLocation := resp.Header.Get("Operation-Location")
	if opLocation == "" {
		return "", fmt.Errorf("%w: submit accepted without Operation-Location", ErrUnavailable)
	}
	return opLocation, nil
}

func (c *restClient) PollRead(ctx context.Context, operationID string) (*Operation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationID, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build poll request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, raw)
	}

	var op readOperationResponse
	if err := json.Unmarshal(raw, &op); err != nil {
		return nil, fmt.Errorf("%w: decode poll response: %v", ErrUnavailable, err)
	}
	out := &Operation{Status: op.Status}
	if op.Status == OpFailed {
		out.Detail = op.Error.Code + ": " + op.Error.Message
	}
	for _, page := range op.AnalyzeResult.ReadResults {
		for _, l := range page.Lines {
			out.Lines = append(out.Lines, l.Text)
		}
	}
	return out, nil
}

func (c *restClient) post(ctx context.Context, url, contentType string, body io.Reader) ([]byte, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	c.logger.Debug("ocr.http.response",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, raw)
	}
	return raw, nil
}

// classifyStatus separates call-shape mismatches from genuine remote faults.
// Routes that the deployed API version does not serve come back 404/405;
// argument-shape complaints come back 400 with an InvalidRequest-family code.
func classifyStatus(status int, raw []byte) error {
	switch status {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return ErrShapeMismatch
	case http.StatusBadRequest:
		var e struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		switch e.Error.Code {
		case "InvalidRequest", "NotSupportedFeature", "NotSupportedImage", "BadArgument":
			return ErrShapeMismatch
		}
		return &RemoteError{Status: status, Code: e.Error.Code, Message: e.Error.Message}
	default:
		var e struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		return &RemoteError{Status: status, Code: e.Error.Code, Message: e.Error.Message}
	}
}
