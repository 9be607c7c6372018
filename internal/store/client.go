// Package store is the HTTP client for the external hosted record store.
//
// The store is an Airtable-shaped REST service: tables hold rows of loosely
// typed fields, lists are filtered with a formula expression, creates post a
// records envelope, and updates patch a single row by its opaque id. This
// package owns the wire format; typed decoding of rows lives in records.go so
// malformed store data fails fast at the boundary instead of leaking
// map lookups into services.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vouchsafe/internal/platform/config"
	"vouchsafe/internal/platform/metrics"
)

// Record is one row as the store returns it: an opaque id plus a field map.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Error is a non-2xx response from the store, carrying the raw body so the
// caller can decide whether it is fatal or a plain miss.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("record store returned %d: %s", e.Status, e.Body)
}

// Client performs authenticated calls against one record-store base.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewClient builds a client from explicit configuration. The HTTP client
// carries the configured timeout so no store call can block unbounded; the
// per-request context adds the tighter request deadline on top.
func NewClient(cfg config.Store, m *metrics.Metrics) *Client {
	return &Client{
		baseURL: cfg.BaseURL + "/" + cfg.BaseID,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		metrics: m,
		tracer:  otel.Tracer("vouchsafe/internal/store"),
	}
}

type recordsEnvelope struct {
	Records []Record `json:"records"`
}

// Find lists the rows of table matching the filter formula.
func (c *Client) Find(ctx context.Context, table, formula string) ([]Record, error) {
	ctx, span := c.tracer.Start(ctx, "store.find",
		trace.WithAttributes(attribute.String("store.table", table)))
	defer span.End()

	u := c.baseURL + "/" + url.PathEscape(table)
	if formula != "" {
		u += "?filterByFormula=" + url.QueryEscape(formula)
	}

	var envelope recordsEnvelope
	if err := c.do(ctx, http.MethodGet, "find", table, u, nil, &envelope); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return envelope.Records, nil
}

// Create inserts one row and returns it as the store stored it, including
// any store-assigned fields (row id, autonumber reference).
func (c *Client) Create(ctx context.Context, table string, fields map[string]any) (Record, error) {
	ctx, span := c.tracer.Start(ctx, "store.create",
		trace.WithAttributes(attribute.String("store.table", table)))
	defer span.End()

	body := recordsEnvelope{Records: []Record{{Fields: fields}}}
	u := c.baseURL + "/" + url.PathEscape(table)

	var envelope recordsEnvelope
	if err := c.do(ctx, http.MethodPost, "create", table, u, body, &envelope); err != nil {
		span.RecordError(err)
		return Record{}, err
	}
	if len(envelope.Records) == 0 {
		err := fmt.Errorf("store create returned no records")
		span.RecordError(err)
		return Record{}, err
	}
	return envelope.Records[0], nil
}

// Update patches the fields of one row by its opaque id.
func (c *Client) Update(ctx context.Context, table, recordID string, fields map[string]any) (Record, error) {
	ctx, span := c.tracer.Start(ctx, "store.update",
		trace.WithAttributes(attribute.String("store.table", table)))
	defer span.End()

	u := c.baseURL + "/" + url.PathEscape(table) + "/" + url.PathEscape(recordID)
	body := Record{Fields: fields}

	var updated Record
	if err := c.do(ctx, http.MethodPatch, "update", table, u, body, &updated); err != nil {
		span.RecordError(err)
		return Record{}, err
	}
	return updated, nil
}

func (c *Client) do(ctx context.Context, method, operation, table, url string, body, out any) error {
	start := time.Now()
	defer func() {
		c.metrics.ObserveStoreCall(operation, table, time.Since(start))
	}()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", operation, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("store %s: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read store %s response: %w", operation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Status: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode store %s response: %w", operation, err)
	}
	return nil
}
