package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/geocoder89/visionhub/internal/actorctx"
	"github.com/geocoder89/visionhub/internal/domain/user"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestClassifyDBErr(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&pgconn.PgError{Code: "23505"}, "unique_violation"},
		{fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "40P01"}), "deadlock"},
		{&pgconn.PgError{Code: "22P02"}, "pg_22P02"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("connection refused"), "connection"},
		{errors.New("weird"), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyDBErr(tt.err), tt.err.Error())
	}
}

func TestObserve_NilPromRunsFn(t *testing.T) {
	var p *Prom
	boom := errors.New("boom")

	assert.ErrorIs(t, p.ObserveDB("op", func() error { return boom }), boom)
	assert.NoError(t, p.ObserveUpstream("jwks", func() error { return nil }))
	p.CountMetadataCache("hit")
}

func TestObserveUpstream_CountsErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewProm(reg)

	require.NoError(t, p.ObserveUpstream("metadata", func() error { return nil }))
	err := p.ObserveUpstream("metadata", func() error { return context.DeadlineExceeded })
	require.ErrorIs(t, err, context.DeadlineExceeded)

	families, err := reg.Gather()
	require.NoError(t, err)

	var errorsTotal float64
	statuses := map[string]bool{}
	for _, mf := range families {
		switch mf.GetName() {
		case "visionhub_upstream_errors_total":
			for _, m := range mf.GetMetric() {
				errorsTotal += m.GetCounter().GetValue()
			}
		case "visionhub_upstream_request_duration_seconds":
			for _, m := range mf.GetMetric() {
				for _, l := range m.GetLabel() {
					if l.GetName() == "status" {
						statuses[l.GetValue()] = true
					}
				}
			}
		}
	}

	assert.Equal(t, 1.0, errorsTotal)
	assert.Equal(t, map[string]bool{"ok": true, "timeout": true}, statuses)
}

func TestLogger_AddsTraceAndActor(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "prod")

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})

	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = actorctx.WithUser(ctx, user.User{ExternalID: "ext-1"})

	log.InfoContext(ctx, "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", rec["trace_id"])
	assert.Equal(t, "0102030405060708", rec["span_id"])
	assert.Equal(t, "ext-1", rec["actor"])
}

func TestLogger_DebugOnlyInDev(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "prod").Debug("quiet")
	assert.Zero(t, buf.Len())

	newLogger(&buf, "dev").Debug("loud")
	assert.Contains(t, buf.String(), "loud")
}
