package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-media-proxy/internal/config"
	"tg-media-proxy/internal/metrics"
	"tg-media-proxy/internal/model"
)

// ErrFileNotFound is returned for any failed lookup. Transport details are
// wrapped for logging but never change the classification.
var ErrFileNotFound = errors.New("file not found")

// maxLookupBytes caps getFile response bodies.
const maxLookupBytes = 1 << 20

// FileLocator resolves media references through the Bot API getFile method.
type FileLocator struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewFileLocator creates a FileLocator bounded by telegram.resolve_timeout_seconds.
// The metrics parameter is optional.
func NewFileLocator(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *FileLocator {
	return &FileLocator{
		token:   cfg.Telegram.BotToken,
		baseURL: cfg.Telegram.APIBaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Telegram.ResolveTimeout(),
		},
		logger:  logger.With("component", "file_locator"),
		metrics: m,
	}
}

// Resolve looks up ref and returns its current download location.
// Every failure, including transport errors, is reported as ErrFileNotFound.
// There are no retries.
func (l *FileLocator) Resolve(ctx context.Context, ref model.MediaReference) (model.ResolvedLocation, error) {
	start := time.Now()
	loc, err := l.lookup(ctx, ref)

	result := "ok"
	if err != nil {
		result = "not_found"
	}
	if l.metrics != nil {
		l.metrics.ResolveDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		return model.ResolvedLocation{}, fmt.Errorf("%w: %w", ErrFileNotFound, err)
	}
	return loc, nil
}

func (l *FileLocator) lookup(ctx context.Context, ref model.MediaReference) (model.ResolvedLocation, error) {
	if ref == "" {
		return model.ResolvedLocation{}, errors.New("empty media reference")
	}

	q := url.Values{"file_id": {string(ref)}}
	endpoint := fmt.Sprintf("%s/bot%s/getFile?%s", l.baseURL, l.token, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return model.ResolvedLocation{}, fmt.Errorf("build getFile request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return model.ResolvedLocation{}, fmt.Errorf("getFile request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.ResolvedLocation{}, fmt.Errorf("getFile status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLookupBytes))
	if err != nil {
		return model.ResolvedLocation{}, fmt.Errorf("read getFile response: %w", err)
	}

	var apiResp tgbotapi.APIResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return model.ResolvedLocation{}, fmt.Errorf("decode getFile response: %w", err)
	}
	if !apiResp.Ok {
		return model.ResolvedLocation{}, fmt.Errorf("getFile: %s (code %d)", apiResp.Description, apiResp.ErrorCode)
	}

	var file tgbotapi.File
	if err := json.Unmarshal(apiResp.Result, &file); err != nil {
		return model.ResolvedLocation{}, fmt.Errorf("decode getFile result: %w", err)
	}
	if file.FilePath == "" {
		return model.ResolvedLocation{}, errors.New("getFile returned no file_path")
	}

	l.logger.Debug("resolved file", "file_path", file.FilePath, "file_size", file.FileSize)

	return model.ResolvedLocation{
		URL:      l.FileURL(file.FilePath),
		FilePath: file.FilePath,
		FileSize: int64(file.FileSize),
	}, nil
}

// FileURL returns the download URL for a file path returned by getFile.
func (l *FileLocator) FileURL(filePath string) string {
	return fmt.Sprintf("%s/file/bot%s/%s", l.baseURL, l.token, filePath)
}
