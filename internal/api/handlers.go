package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/citegraph/layoutd/pkg/buildinfo"
	"github.com/citegraph/layoutd/pkg/cache"
	"github.com/citegraph/layoutd/pkg/errors"
	"github.com/citegraph/layoutd/pkg/graph"
	"github.com/citegraph/layoutd/pkg/layout"
	"github.com/citegraph/layoutd/pkg/observability"
)

type ctxKey int

const requestIDKey ctxKey = 0

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// layoutRequest is the POST /v1/layout body. Options override the server
// defaults field-group by field-group; an absent options object uses the
// defaults unchanged.
type layoutRequest struct {
	Edges   []graph.Edge    `json:"edges"`
	Options *layout.Options `json:"options,omitempty"`
}

// layoutResponse is the POST /v1/layout reply.
type layoutResponse struct {
	Success   bool                `json:"success"`
	Cached    bool                `json:"cached"`
	GraphHash string              `json:"graph_hash"`
	Positions []layout.Position   `json:"positions"`
	EdgePaths []layout.EdgePath   `json:"edge_paths"`
	Layers    map[string]int      `json:"layers"`
	Stats     layout.ComputeStats `json:"stats"`
	Metadata  layout.Metadata     `json:"metadata"`
}

type errorResponse struct {
	Success      bool   `json:"success"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	RequestID    string `json:"request_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req layoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "decoding request body"))
		return
	}

	edges := req.Edges
	if len(edges) == 0 {
		var err error
		edges, err = s.loadAllEdges(ctx)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	opts := s.defaultOpts
	if req.Options != nil {
		opts = mergeOptions(s.defaultOpts, *req.Options)
	}

	graphHash := edgeSetHash(edges)
	key := s.keyer.LayoutKey(graphHash, layoutKeyOpts(opts))

	if data, hit, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("cache read failed", "error", err)
	} else if hit {
		observability.Cache().OnCacheHit(ctx, "layout")
		var resp layoutResponse
		if err := json.Unmarshal(data, &resp); err == nil {
			resp.Cached = true
			writeJSON(w, http.StatusOK, resp)
			return
		}
		s.logger.Warn("discarding corrupt cache entry", "key", key)
		_ = s.cache.Delete(ctx, key)
	} else {
		observability.Cache().OnCacheMiss(ctx, "layout")
	}

	result, err := s.engine.Compute(ctx, edges, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := layoutResponse{
		Success:   true,
		GraphHash: graphHash,
		Positions: result.Positions,
		EdgePaths: result.EdgePaths,
		Layers:    result.Layers,
		Stats:     result.Stats,
		Metadata:  result.Metadata,
	}

	if data, err := json.Marshal(resp); err == nil {
		if err := s.cache.Set(ctx, key, data, cache.LayoutTTL); err != nil {
			s.logger.Warn("cache write failed", "error", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "layout", len(data))
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "decoding request body"))
		return
	}
	if len(req.Edges) == 0 {
		s.writeError(w, r, errors.New(errors.ErrCodeEmptyGraph, "stats request has no edges"))
		return
	}

	b := graph.NewBuilder()
	for _, e := range req.Edges {
		if e.Source == "" || e.Target == "" || e.Source == e.Target {
			continue
		}
		if err := b.AddEdge(e.Source, e.Target, e.Weight); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if b.EdgeCount() == 0 {
		s.writeError(w, r, errors.New(errors.ErrCodeEmptyGraph, "no usable edges"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"graph_hash": edgeSetHash(req.Edges),
		"stats":      b.Build().Stats(),
	})
}

// loadAllEdges drains the configured edge source for requests that carry
// no edges of their own.
func (s *Server) loadAllEdges(ctx context.Context) ([]graph.Edge, error) {
	if s.source == nil {
		return nil, errors.New(errors.ErrCodeEmptyGraph,
			"request has no edges and no edge source is configured")
	}

	total, err := s.source.CountEdges(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, errors.New(errors.ErrCodeEmptyGraph, "edge source is empty")
	}

	batchSize := s.batchSize
	if batchSize < 1 {
		batchSize = 10000
	}
	edges := make([]graph.Edge, 0, total)
	for offset := int64(0); offset < total; offset += batchSize {
		batch, err := s.source.LoadEdgesBatch(ctx, batchSize, offset)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		edges = append(edges, batch...)
	}
	return edges, nil
}

// edgeSetHash produces a content hash independent of edge order.
func edgeSetHash(edges []graph.Edge) string {
	sorted := make([]graph.Edge, len(edges))
	copy(sorted, edges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Source != sorted[j].Source {
			return sorted[i].Source < sorted[j].Source
		}
		return sorted[i].Target < sorted[j].Target
	})
	data, _ := json.Marshal(sorted)
	return cache.Hash(data)
}

// layoutKeyOpts projects the options that change the output into the
// cache key.
func layoutKeyOpts(opts layout.Options) cache.LayoutKeyOpts {
	return cache.LayoutKeyOpts{
		Algorithm:         opts.Algorithm,
		BlockWidth:        opts.Placement.BlockWidth,
		BlockHeight:       opts.Placement.BlockHeight,
		HorizontalGap:     opts.Placement.HorizontalGap,
		VerticalGap:       opts.Placement.VerticalGap,
		UsePolylines:      opts.Routing.UsePolylines,
		PolylineThreshold: opts.Routing.PolylineThreshold,
		CompactLayout:     opts.Optimize.CompactLayout,
	}
}

// mergeOptions fills zero-valued request fields from the server defaults.
// Geometry and routing come as groups: a request that sets any placement
// field owns the whole placement block.
func mergeOptions(defaults, req layout.Options) layout.Options {
	merged := req
	if merged.Algorithm == "" {
		merged.Algorithm = defaults.Algorithm
	}
	if merged.Workers < 1 {
		merged.Workers = defaults.Workers
	}
	if merged.Placement == (layout.Config{}) {
		merged.Placement = defaults.Placement
	}
	if merged.Optimize == (layout.OptimizeOptions{}) {
		merged.Optimize = defaults.Optimize
	}
	if merged.Routing == (layout.RoutingOptions{}) {
		merged.Routing = defaults.Routing
	}
	return merged
}

// writeError maps error codes to HTTP statuses and writes the error
// envelope.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeEmptyGraph:
		status = http.StatusBadRequest
	case errors.ErrCodeCyclicGraph:
		status = http.StatusUnprocessableEntity
	case errors.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	case errors.ErrCodeDataSource:
		status = http.StatusBadGateway
	}

	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{
		ErrorCode:    string(errors.GetCode(err)),
		ErrorMessage: errors.UserMessage(err),
		RequestID:    requestIDFrom(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
