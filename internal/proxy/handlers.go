package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"fabricmcp/internal/api"
	"fabricmcp/internal/mcperr"
	"fabricmcp/internal/upstream"
	"fabricmcp/pkg/logging"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// slicePageSize is the page size used when walking the caller's full slice
// listing.
const slicePageSize = 200

// wrap attaches a correlation ID to one tool invocation and logs entry and
// failure. Handler errors are rendered as the uniform error envelope; the
// protocol-level error return stays nil so clients always get a result.
func (s *Server) wrap(name string, h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		call := uuid.NewString()[:8]
		logging.Debug("Proxy", "[%s] tool %s invoked", call, name)
		result, err := h(ctx, request)
		if err != nil {
			logging.Warn("Proxy", "[%s] tool %s failed: %v", call, name, err)
			return failure(err), nil
		}
		return result, nil
	}
}

// failure renders any error as the uniform envelope. Errors outside the
// taxonomy become upstream_server_error with a generic message; their text
// may carry internals and is not surfaced.
func failure(err error) *mcp.CallToolResult {
	var e *mcperr.Error
	if !errors.As(err, &e) {
		e = mcperr.New(mcperr.CodeUpstreamServer, "internal error")
	}
	return mcp.NewToolResultError(e.JSON())
}

// textResult marshals v and returns it as the tool's text content.
func textResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, mcperr.New(mcperr.CodeUpstreamServer, "failed to encode result")
	}
	return mcp.NewToolResultText(string(data)), nil
}

// requireBearer extracts the caller's bearer token, failing with unauthorized
// before anything else runs.
func requireBearer(ctx context.Context) (string, error) {
	bearer := BearerFromContext(ctx)
	if bearer == "" {
		return "", mcperr.Unauthorized("")
	}
	return bearer, nil
}

// noteBearer records an observed credential with the lifecycle manager and
// the background cache.
func (s *Server) noteBearer(bearer string) {
	if bearer == "" {
		return
	}
	if s.deps.Tokens != nil {
		s.deps.Tokens.Observe(bearer)
	}
	if s.deps.TokenSink != nil {
		s.deps.TokenSink.NoteToken(bearer)
	}
}

// handleInventoryQuery builds the handler for one inventory collection.
// Inventory reads do not require a credential: the cached snapshot is public
// data, and a live fallback without a bearer gets the public view.
func (s *Server) handleInventoryQuery(name string, collection api.Collection) server.ToolHandlerFunc {
	return s.wrap(name, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req := api.QueryRequest{
			Limit:  request.GetInt("limit", 0),
			Offset: request.GetInt("offset", 0),
		}
		if raw, ok := request.GetArguments()["filters"]; ok && raw != nil {
			filters, ok := raw.(map[string]any)
			if !ok {
				return nil, mcperr.ClientError("filters must be an object")
			}
			req.Filters = filters
		}
		if field := request.GetString("sort_field", ""); field != "" {
			req.Sort = &api.SortSpec{
				Field:     field,
				Direction: request.GetString("sort_direction", ""),
			}
		} else if request.GetString("sort_direction", "") != "" {
			return nil, mcperr.ClientError("sort_direction requires sort_field")
		}

		bearer := BearerFromContext(ctx)
		s.noteBearer(bearer)

		result, err := s.deps.Query.Query(ctx, collection, req, bearer)
		if err != nil {
			return nil, err
		}

		payload := map[string]any{
			"data":        result.Records,
			"source":      result.Source,
			"captured_at": result.CapturedAt,
		}
		if result.Truncated {
			payload["truncated"] = true
			payload["limit"] = result.Limit
		}
		return textResult(payload)
	})
}

// handleQuerySlices lists the caller's slices as a map keyed by slice name.
// When two slices share a name, later entries get a -<id8> suffix so none
// are silently dropped.
func (s *Server) handleQuerySlices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bearer, err := requireBearer(ctx)
	if err != nil {
		return nil, err
	}
	s.noteBearer(bearer)

	if sliceID := request.GetString("slice_id", ""); sliceID != "" {
		record, err := s.deps.Directory.GetSlice(ctx, bearer, sliceID, request.GetBool("as_self", true))
		if err != nil {
			return nil, err
		}
		return textResult(map[string]any{keyFor(record, map[string]bool{}): record})
	}

	q := upstream.SliceQuery{
		Name:   request.GetString("name", ""),
		States: splitStates(request.GetString("include_states", "")),
		AsSelf: request.GetBool("as_self", true),
		Limit:  slicePageSize,
	}
	exclude := map[string]bool{}
	for _, st := range splitStates(request.GetString("exclude_states", "")) {
		exclude[st] = true
	}

	out := map[string]api.Record{}
	taken := map[string]bool{}
	for {
		page, hasMore, err := s.deps.Directory.ListSlices(ctx, bearer, q)
		if err != nil {
			return nil, err
		}
		for _, record := range page {
			if state, _ := record["state"].(string); exclude[state] {
				continue
			}
			out[keyFor(record, taken)] = record
		}
		if !hasMore || len(page) == 0 {
			break
		}
		q.Offset += len(page)
	}
	return textResult(out)
}

// keyFor picks the map key for one slice record: the slice name, or the name
// plus the first eight characters of the slice ID when the name is taken.
func keyFor(record api.Record, taken map[string]bool) string {
	name, _ := record["name"].(string)
	if name == "" {
		name = "unnamed"
	}
	key := name
	if taken[key] {
		if id, _ := record["slice_id"].(string); id != "" {
			if len(id) > 8 {
				id = id[:8]
			}
			key = name + "-" + id
		}
	}
	taken[key] = true
	return key
}

// splitStates parses a comma-separated state list, dropping empty entries.
func splitStates(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *Server) handleGetSlivers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bearer, err := requireBearer(ctx)
	if err != nil {
		return nil, err
	}
	s.noteBearer(bearer)

	sliceID, err := request.RequireString("slice_id")
	if err != nil {
		return nil, mcperr.ClientError("slice_id is required")
	}
	slivers, err := s.deps.Directory.ListSlivers(ctx, bearer, sliceID, true)
	if err != nil {
		return nil, err
	}
	return textResult(map[string]any{"data": slivers})
}

func (s *Server) handleCreateSlice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bearer, err := requireBearer(ctx)
	if err != nil {
		return nil, err
	}
	s.noteBearer(bearer)

	req := upstream.CreateSliceRequest{
		Name:           request.GetString("name", ""),
		GraphModel:     request.GetString("graph_model", ""),
		SSHKeys:        request.GetStringSlice("ssh_keys", nil),
		LifetimeDays:   request.GetInt("lifetime_days", 0),
		LeaseStartTime: request.GetString("lease_start_time", ""),
		LeaseEndTime:   request.GetString("lease_end_time", ""),
	}
	slivers, err := s.deps.Writer.Create(ctx, bearer, req)
	if err != nil {
		return nil, err
	}
	return textResult(map[string]any{"data": slivers})
}

func (s *Server) handleModifySlice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bearer, err := requireBearer(ctx)
	if err != nil {
		return nil, err
	}
	s.noteBearer(bearer)

	slivers, err := s.deps.Writer.Modify(ctx, bearer,
		request.GetString("slice_id", ""),
		request.GetString("graph_model", ""))
	if err != nil {
		return nil, err
	}
	return textResult(map[string]any{"data": slivers})
}

func (s *Server) handleAcceptModify(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bearer, err := requireBearer(ctx)
	if err != nil {
		return nil, err
	}
	s.noteBearer(bearer)

	record, err := s.deps.Writer.AcceptModify(ctx, bearer, request.GetString("slice_id", ""))
	if err != nil {
		return nil, err
	}
	return textResult(map[string]any{"data": record})
}

func (s *Server) handleRenewSlice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bearer, err := requireBearer(ctx)
	if err != nil {
		return nil, err
	}
	s.noteBearer(bearer)

	sliceID := request.GetString("slice_id", "")
	if err := s.deps.Writer.Renew(ctx, bearer, sliceID, request.GetString("lease_end_time", "")); err != nil {
		return nil, err
	}
	return textResult(map[string]any{"status": "renewed", "slice_id": sliceID})
}

func (s *Server) handleDeleteSlice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bearer, err := requireBearer(ctx)
	if err != nil {
		return nil, err
	}
	s.noteBearer(bearer)

	sliceID := request.GetString("slice_id", "")
	if err := s.deps.Writer.Delete(ctx, bearer, sliceID); err != nil {
		return nil, err
	}
	return textResult(map[string]any{"status": "deleting", "slice_id": sliceID})
}

func (s *Server) handleShowMyProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bearer, err := requireBearer(ctx)
	if err != nil {
		return nil, err
	}
	s.noteBearer(bearer)

	projects, err := s.deps.Directory.GetProjects(ctx, bearer,
		request.GetString("project_name", ""),
		request.GetString("project_id", ""),
		"")
	if err != nil {
		return nil, err
	}
	return textResult(map[string]any{"data": projects})
}

func (s *Server) handleListProjectUsers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bearer, err := requireBearer(ctx)
	if err != nil {
		return nil, err
	}
	s.noteBearer(bearer)

	projectUUID, err := request.RequireString("project_uuid")
	if err != nil {
		return nil, mcperr.ClientError("project_uuid is required")
	}
	users, err := s.deps.Directory.ListProjectUsers(ctx, bearer, projectUUID)
	if err != nil {
		return nil, err
	}
	return textResult(map[string]any{"data": users})
}

func (s *Server) handleGetUserKeys(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bearer, err := requireBearer(ctx)
	if err != nil {
		return nil, err
	}
	s.noteBearer(bearer)

	userUUID, err := request.RequireString("user_uuid")
	if err != nil {
		return nil, mcperr.ClientError("user_uuid is required")
	}
	keyType := request.GetString("key_type", "sliver")
	if keyType != "sliver" && keyType != "bastion" {
		return nil, mcperr.ClientError("key_type must be \"sliver\" or \"bastion\", got %q", keyType)
	}
	keys, err := s.deps.Directory.GetUserKeys(ctx, bearer, userUUID, keyType)
	if err != nil {
		return nil, err
	}
	return textResult(map[string]any{"data": keys})
}

// poa forwards one operational action against a sliver.
func (s *Server) poa(ctx context.Context, bearer, sliverID, operation string, vars map[string]any) (*mcp.CallToolResult, error) {
	result, err := s.deps.Writer.POA(ctx, bearer, upstream.POARequest{
		SliverID:  sliverID,
		Operation: operation,
		Vars:      vars,
	})
	if err != nil {
		return nil, err
	}
	return textResult(map[string]any{"data": result})
}

func (s *Server) handleAddPublicKey(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bearer, err := requireBearer(ctx)
	if err != nil {
		return nil, err
	}
	s.noteBearer(bearer)

	key := request.GetString("ssh_key", "")
	if key == "" {
		return nil, mcperr.ClientError("ssh_key is required")
	}
	return s.poa(ctx, bearer, request.GetString("sliver_id", ""), "addkey", map[string]any{"keys": []string{key}})
}

func (s *Server) handleRemovePublicKey(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bearer, err := requireBearer(ctx)
	if err != nil {
		return nil, err
	}
	s.noteBearer(bearer)

	key := request.GetString("ssh_key", "")
	if key == "" {
		return nil, mcperr.ClientError("ssh_key is required")
	}
	return s.poa(ctx, bearer, request.GetString("sliver_id", ""), "removekey", map[string]any{"keys": []string{key}})
}

func (s *Server) handleOSReboot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bearer, err := requireBearer(ctx)
	if err != nil {
		return nil, err
	}
	s.noteBearer(bearer)

	return s.poa(ctx, bearer, request.GetString("sliver_id", ""), "reboot", nil)
}
