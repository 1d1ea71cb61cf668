package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RequestEvent is the audit record of one provider call.
type RequestEvent struct {
	UserID       string
	Provider     string
	Model        string
	Purpose      string
	SchemaName   string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	StopReason   string
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// EventRecorder persists RequestEvents.
type EventRecorder interface {
	RecordLLMRequest(ctx context.Context, ev RequestEvent) error
}

// LoggingProvider is a decorator that logs every LLM request and, when a
// recorder is set, stores it as an event.
type LoggingProvider struct {
	inner    Provider
	recorder EventRecorder
	log      *zap.Logger

	// provider names the backend on recorded events; defaults to the model ID.
	provider string
}

// WithLogging wraps a Provider with request logging. recorder may be nil.
func WithLogging(p Provider, recorder EventRecorder, log *zap.Logger) Provider {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingProvider{inner: p, recorder: recorder, log: log.Named("llm")}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)

	ev := RequestEvent{
		UserID:      LearnerFrom(ctx),
		Provider:    l.providerName(),
		Model:       l.inner.ModelID(),
		Purpose:     purpose,
		LatencyMs:   time.Since(start).Milliseconds(),
		Success:     err == nil,
		RequestBody: serializeRequest(req),
	}
	if req.Schema != nil {
		ev.SchemaName = req.Schema.Name
	}
	if resp != nil {
		ev.StopReason = resp.StopReason
		ev.InputTokens = resp.Usage.InputTokens
		ev.OutputTokens = resp.Usage.OutputTokens
		ev.Model = resp.Model
		ev.ResponseBody = string(resp.Content)
	}

	fields := []zap.Field{
		zap.String("purpose", purpose),
		zap.String("user_id", LearnerFrom(ctx)),
		zap.String("model", ev.Model),
		zap.Int64("latency_ms", ev.LatencyMs),
		zap.Int("input_tokens", ev.InputTokens),
		zap.Int("output_tokens", ev.OutputTokens),
	}
	if ev.StopReason != "" && ev.StopReason != "end" {
		fields = append(fields, zap.String("stop_reason", ev.StopReason))
	}
	if err != nil {
		ev.ErrorMessage = err.Error()
		l.log.Warn("llm request failed", append(fields, zap.Error(err))...)
	} else {
		l.log.Debug("llm request", fields...)
	}

	if l.recorder != nil {
		if recErr := l.recorder.RecordLLMRequest(ctx, ev); recErr != nil {
			l.log.Warn("failed to record llm request event", zap.Error(recErr))
		}
	}

	return resp, err
}

func (l *LoggingProvider) providerName() string {
	if l.provider != "" {
		return l.provider
	}
	return l.inner.ModelID()
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

// serializeRequest builds a readable representation of the LLM request.
// Image payloads are summarized, not inlined.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n", m.Role)
		b.WriteString(m.Content)
		for _, img := range m.Images {
			fmt.Fprintf(&b, "\n<image %s, %d bytes base64>", img.MIMEType, len(img.Base64))
		}
		b.WriteString("\n\n")
	}

	if req.Schema != nil {
		schemaDef, err := json.Marshal(req.Schema.Definition)
		if err == nil {
			fmt.Fprintf(&b, "[schema: %s]\n", req.Schema.Name)
			b.Write(schemaDef)
			b.WriteString("\n")
		}
	}

	return b.String()
}
