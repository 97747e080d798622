package execution

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Request struct {
	SourceCode string
	LanguageID int
	Stdin      string
}

type Status struct {
	ID          int    `json:"id"          example:"3"`
	Description string `json:"description" example:"Accepted"`
}

// Result carries decoded outputs; absent streams stay nil.
type Result struct {
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Status        Status  `json:"status"`
	Time          *string `json:"time"   example:"0.002"`
	Memory        *int64  `json:"memory" example:"3200"`
}

var (
	ErrInvalidRequest = errors.New("code and language_id are required")
	ErrTimeout        = errors.New("code execution timed out")
	ErrNoToken        = errors.New("failed to get submission token")
	ErrUpstream       = errors.New("execution backend error")
)

type IExecutionService interface {
	Execute(ctx context.Context, req Request) (*Result, error)
}

type Options struct {
	BaseURL      string
	APIKey       string
	APIHost      string
	PollAttempts int
	PollDelay    time.Duration
	Client       *http.Client
}

type executionService struct {
	opts   Options
	client *http.Client
}

var _ IExecutionService = (*executionService)(nil)

// NewExecutionService talks to a Judge0 compatible submissions API.
func NewExecutionService(opts Options) IExecutionService {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = 15
	}
	if opts.PollDelay <= 0 {
		opts.PollDelay = 1500 * time.Millisecond
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &executionService{opts: opts, client: client}
}

type submission struct {
	LanguageID int    `json:"language_id"`
	SourceCode string `json:"source_code"`
	Stdin      string `json:"stdin"`
}

// Status ids 1 and 2 are "In Queue" and "Processing"; anything above is final.
const lastPendingStatus = 2

// Execute submits the program and polls until it reaches a final status.
func (svc *executionService) Execute(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.SourceCode) == "" || req.LanguageID <= 0 {
		return nil, ErrInvalidRequest
	}

	token, err := svc.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("execution.submitted", zap.String("token", token), zap.Int("language", req.LanguageID))

	for attempt := 1; attempt <= svc.opts.PollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(svc.opts.PollDelay):
		}

		res, err := svc.poll(ctx, token)
		if err != nil {
			return nil, err
		}
		zap.L().Debug("execution.poll",
			zap.Int("attempt", attempt),
			zap.String("status", res.Status.Description))
		if res.Status.ID > lastPendingStatus {
			return decode(res)
		}
	}
	return nil, ErrTimeout
}

func (svc *executionService) submit(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(submission{
		LanguageID: req.LanguageID,
		SourceCode: base64.StdEncoding.EncodeToString([]byte(req.SourceCode)),
		Stdin:      base64.StdEncoding.EncodeToString([]byte(req.Stdin)),
	})
	if err != nil {
		return "", err
	}

	endpoint := svc.opts.BaseURL + "/submissions?base64_encoded=true&wait=false"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var out struct {
		Token string `json:"token"`
	}
	if err := svc.do(httpReq, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", ErrNoToken
	}
	return out.Token, nil
}

func (svc *executionService) poll(ctx context.Context, token string) (*Result, error) {
	endpoint := fmt.Sprintf("%s/submissions/%s?base64_encoded=true&fields=*",
		svc.opts.BaseURL, url.PathEscape(token))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	if err := svc.do(httpReq, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (svc *executionService) do(req *http.Request, into any) error {
	if svc.opts.APIKey != "" {
		req.Header.Set("X-RapidAPI-Key", svc.opts.APIKey)
	}
	if svc.opts.APIHost != "" {
		req.Header.Set("X-RapidAPI-Host", svc.opts.APIHost)
	}

	resp, err := svc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	return nil
}

func decode(res *Result) (*Result, error) {
	for _, field := range []**string{&res.Stdout, &res.Stderr, &res.CompileOutput} {
		if *field == nil || **field == "" {
			*field = nil
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(**field, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("%w: decode output: %v", ErrUpstream, err)
		}
		s := string(raw)
		*field = &s
	}
	return res, nil
}
