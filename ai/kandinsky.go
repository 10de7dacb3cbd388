package ai

import (
	"Kotofey/core"
	"Kotofey/lib/sl"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

const (
	pipelinesPath = "/key/api/v1/pipelines"
	runPath       = "/key/api/v1/pipeline/run"
	statusPath    = "/key/api/v1/pipeline/status/"

	pipelineTypeText2Image = "TEXT2IMAGE"

	statusInitial    = "INITIAL"
	statusProcessing = "PROCESSING"
	statusDone       = "DONE"
	statusFail       = "FAIL"

	imagePromptFormat = "Красивый кот породы %s, фотореалистичное изображение, высокое качество"

	defaultPollInterval = 5 * time.Second
	kandinskyTimeout    = 30 * time.Second
)

// Kandinsky drives the async image backend: discover a text-to-image
// pipeline, submit a job, poll until terminal, decode the result. A job
// lives only for the duration of one GenerateImage call.
type Kandinsky struct {
	conf         *core.Config
	log          *slog.Logger
	client       *http.Client
	pollInterval time.Duration
}

type pipeline struct {
	Id     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type runParams struct {
	Type           string         `json:"type"`
	GenerateParams generateParams `json:"generateParams"`
}

type generateParams struct {
	Query string `json:"query"`
}

type runResult struct {
	UUID       string `json:"uuid"`
	Status     string `json:"status"`
	StatusTime int    `json:"status_time"`
}

type jobStatus struct {
	UUID             string     `json:"uuid"`
	Status           string     `json:"status"`
	ErrorDescription string     `json:"errorDescription"`
	Result           *jobResult `json:"result"`
}

type jobResult struct {
	Files    []string `json:"files"`
	Censored bool     `json:"censored"`
}

func NewKandinsky(conf *core.Config, log *slog.Logger) *Kandinsky {
	return &Kandinsky{
		conf:         conf,
		log:          log.With(sl.Module("kandinsky")),
		client:       &http.Client{Timeout: kandinskyTimeout},
		pollInterval: defaultPollInterval,
	}
}

// Available reports whether the backend keys are configured. Without them
// the bot still runs, only image generation degrades.
func (k *Kandinsky) Available() bool {
	return k.conf.Kandinsky.ApiKey != "" && k.conf.Kandinsky.SecretKey != ""
}

func (k *Kandinsky) GenerateImage(ctx context.Context, breed string) ([]byte, error) {
	if !k.Available() {
		return nil, &core.GenerationError{Err: fmt.Errorf("backend keys are not configured")}
	}

	pipelines, err := k.pipelines(ctx)
	if err != nil {
		return nil, &core.GenerationError{Err: err}
	}
	if len(pipelines) == 0 {
		return nil, &core.GenerationError{Err: fmt.Errorf("no %s pipeline available", pipelineTypeText2Image)}
	}
	// first offered pipeline, no ranking
	p := pipelines[0]
	k.log.Info("using pipeline", slog.String("name", p.Name))

	run, err := k.run(ctx, p.Id, fmt.Sprintf(imagePromptFormat, breed))
	if err != nil {
		return nil, &core.GenerationError{Err: err}
	}
	k.log.Info("generation started", slog.String("uuid", run.UUID))

	return k.waitForCompletion(ctx, run)
}

// waitForCompletion polls the job on the backend-suggested cadence until a
// terminal status, bounded by a wall-clock budget.
func (k *Kandinsky) waitForCompletion(ctx context.Context, run *runResult) ([]byte, error) {
	budget := k.conf.Kandinsky.PollBudget
	deadline := time.Now().Add(budget)

	delay := time.Duration(run.StatusTime) * time.Second
	if delay <= 0 {
		delay = k.pollInterval
	}

	for {
		select {
		case <-ctx.Done():
			return nil, &core.GenerationError{Err: ctx.Err()}
		case <-time.After(delay):
		}

		status, err := k.status(ctx, run.UUID)
		if err != nil {
			return nil, &core.GenerationError{Err: err}
		}

		switch status.Status {
		case statusDone:
			return k.decode(status)
		case statusInitial, statusProcessing:
			if time.Now().After(deadline) {
				return nil, &core.TimeoutError{JobID: run.UUID, Budget: budget}
			}
		default:
			err := fmt.Errorf("%s", status.ErrorDescription)
			return nil, &core.GenerationError{Status: status.Status, Err: err}
		}
	}
}

func (k *Kandinsky) decode(status *jobStatus) ([]byte, error) {
	if status.Result == nil || len(status.Result.Files) == 0 {
		return nil, &core.GenerationError{Status: status.Status, Err: fmt.Errorf("no images generated")}
	}
	data, err := base64.StdEncoding.DecodeString(status.Result.Files[0])
	if err != nil {
		return nil, &core.GenerationError{Status: status.Status, Err: fmt.Errorf("decoding image: %w", err)}
	}
	return data, nil
}

func (k *Kandinsky) pipelines(ctx context.Context) ([]pipeline, error) {
	url := fmt.Sprintf("%s%s?type=%s", k.conf.Kandinsky.BaseURL, pipelinesPath, pipelineTypeText2Image)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	var list []pipeline
	if err := k.send(req, &list); err != nil {
		return nil, fmt.Errorf("listing pipelines: %w", err)
	}
	return list, nil
}

func (k *Kandinsky) run(ctx context.Context, pipelineId, prompt string) (*runResult, error) {
	params := runParams{
		Type:           "GENERATE",
		GenerateParams: generateParams{Query: prompt},
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshalling params: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	// the backend requires the params part to be application/json
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="params"`)
	header.Set("Content-Type", "application/json")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(paramsJSON); err != nil {
		return nil, err
	}
	if err := writer.WriteField("pipeline_id", pipelineId); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", k.conf.Kandinsky.BaseURL+runPath, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var run runResult
	if err := k.send(req, &run); err != nil {
		return nil, fmt.Errorf("submitting job: %w", err)
	}
	if run.UUID == "" {
		return nil, fmt.Errorf("submitting job: response has no uuid")
	}
	return &run, nil
}

func (k *Kandinsky) status(ctx context.Context, uuid string) (*jobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", k.conf.Kandinsky.BaseURL+statusPath+uuid, nil)
	if err != nil {
		return nil, err
	}

	var status jobStatus
	if err := k.send(req, &status); err != nil {
		return nil, fmt.Errorf("checking job %s: %w", uuid, err)
	}
	return &status, nil
}

func (k *Kandinsky) send(req *http.Request, out any) error {
	req.Header.Set("X-Key", fmt.Sprintf("Key %s", k.conf.Kandinsky.ApiKey))
	req.Header.Set("X-Secret", fmt.Sprintf("Secret %s", k.conf.Kandinsky.SecretKey))

	resp, err := k.client.Do(req)
	if err != nil {
		return err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			k.log.Error("closing response body", sl.Err(err))
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
