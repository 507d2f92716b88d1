package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"recruitcrm-mcp/internal/recruitcrm"
	"recruitcrm-mcp/internal/telemetry"
)

// ErrUnknownTool is the message of every result for a name outside the catalog.
const ErrUnknownTool = "unknown tool"

// Doer issues one CRM request. *recruitcrm.Client implements it.
type Doer interface {
	Do(ctx context.Context, req recruitcrm.Request) (*recruitcrm.Response, error)
}

// Dispatcher resolves tool names against the catalog and forwards calls to the CRM.
// It holds no mutable state and is safe for concurrent use.
type Dispatcher struct {
	catalog *Catalog
	client  Doer
	logger  *zap.Logger
	metrics telemetry.Metrics
}

// NewDispatcher wires a dispatcher. A nil logger or metrics sink falls back to a no-op.
func NewDispatcher(catalog *Catalog, client Doer, logger *zap.Logger, metrics telemetry.Metrics) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Dispatcher{
		catalog: catalog,
		client:  client,
		logger:  logger.Named("dispatcher"),
		metrics: metrics,
	}
}

// Catalog returns the tool table the dispatcher serves.
func (d *Dispatcher) Catalog() *Catalog { return d.catalog }

// Invoke runs one tool call. Every failure is reported in the Result; Invoke never panics on bad input.
func (d *Dispatcher) Invoke(ctx context.Context, inv Invocation) Result {
	start := time.Now()
	res := d.invoke(ctx, inv)
	elapsed := time.Since(start)

	label := inv.Tool
	if _, ok := d.catalog.Lookup(inv.Tool); !ok {
		label = "unknown"
	}
	d.metrics.ObserveInvocation(label, res.Outcome(), elapsed)

	fields := []zap.Field{
		zap.String("invocation_id", inv.ID),
		zap.String("tool", inv.Tool),
		zap.String("outcome", res.Outcome()),
		zap.Duration("elapsed", elapsed),
	}
	if res.Status != 0 {
		fields = append(fields, zap.Int("status", res.Status))
	}
	if res.Success {
		d.logger.Info("tool invocation completed", fields...)
	} else {
		d.logger.Warn("tool invocation failed", append(fields, zap.String("error", res.Error))...)
	}
	return res
}

func (d *Dispatcher) invoke(ctx context.Context, inv Invocation) Result {
	def, ok := d.catalog.Lookup(inv.Tool)
	if !ok {
		return failure(KindInvalidRequest, fmt.Sprintf("%s: %q", ErrUnknownTool, inv.Tool))
	}
	req, err := BuildRequest(def, inv.Arguments)
	if err != nil {
		return failure(KindInvalidRequest, err.Error())
	}

	resp, err := d.client.Do(ctx, req)
	if err != nil {
		var te *recruitcrm.TransportError
		if errors.As(err, &te) && te.Timeout() {
			return failure(KindTransport, "transport failure calling recruitcrm: request timed out")
		}
		return failure(KindTransport, "transport failure calling recruitcrm: "+transportCause(err))
	}

	if !resp.OK() {
		payload, _ := json.Marshal(upstreamError{Status: resp.StatusCode, Body: bodyValue(resp.Body)})
		return Result{
			Success: false,
			Kind:    KindUpstream,
			Status:  resp.StatusCode,
			Payload: payload,
			Error:   fmt.Sprintf("recruitcrm returned status %d: %s", resp.StatusCode, string(resp.Body)),
		}
	}

	payload := json.RawMessage(resp.Body)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	} else if !json.Valid(payload) {
		// relay non-JSON bodies as a JSON string so the envelope stays well formed
		payload, _ = json.Marshal(string(resp.Body))
	}
	return Result{Success: true, Status: resp.StatusCode, Payload: payload}
}

type upstreamError struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

func bodyValue(body []byte) json.RawMessage {
	if len(body) > 0 && json.Valid(body) {
		return body
	}
	raw, _ := json.Marshal(string(body))
	return raw
}

func transportCause(err error) string {
	var te *recruitcrm.TransportError
	if errors.As(err, &te) {
		return te.Err.Error()
	}
	return err.Error()
}

func failure(kind Kind, msg string) Result {
	return Result{Success: false, Kind: kind, Error: msg}
}
