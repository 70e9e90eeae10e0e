package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fabricmcp/internal/api"
	"fabricmcp/internal/mcperr"
	"fabricmcp/internal/token"
	"fabricmcp/pkg/logging"
)

// DefaultCallTimeout bounds every upstream call when the caller's context
// carries no earlier deadline.
const DefaultCallTimeout = 30 * time.Second

// HTTPClient talks to the orchestrator, core-API, and credential-manager
// services over their REST interfaces. It implements Client and
// token.CredentialClient.
type HTTPClient struct {
	orchestratorBase string
	coreAPIBase      string
	credmgrBase      string

	httpClient *http.Client
	timeout    time.Duration
}

// HTTPClientConfig configures an HTTPClient. Hosts are given without scheme;
// HTTPS is assumed the way the deployment fronts these services.
type HTTPClientConfig struct {
	OrchestratorHost string
	CoreAPIHost      string
	CredmgrHost      string
	Timeout          time.Duration
}

// NewHTTPClient creates a client for the configured service hosts.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &HTTPClient{
		orchestratorBase: "https://" + cfg.OrchestratorHost,
		coreAPIBase:      "https://" + cfg.CoreAPIHost,
		credmgrBase:      "https://" + cfg.CredmgrHost,
		httpClient:       &http.Client{Timeout: timeout},
		timeout:          timeout,
	}
}

// envelope is the uniform response wrapper of the upstream services.
type envelope struct {
	Data []api.Record `json:"data"`
}

// do issues one request and decodes the enveloped response into out (when
// non-nil). Timeouts become upstream_timeout; non-2xx statuses map onto the
// taxonomy without exposing the upstream body.
func (c *HTTPClient) do(ctx context.Context, method, rawURL, bearer string, body any, out *envelope, operation string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return mcperr.ClientError("invalid payload for %s: %v", operation, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return mcperr.ClientError("invalid request for %s: %v", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return mcperr.UpstreamTimeout("no response for %s within %s", operation, c.timeout)
		}
		return mcperr.New(mcperr.CodeUpstreamServer, "upstream unreachable for %s", operation)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused; the body itself is never
		// surfaced to callers.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return mcperr.FromStatus(resp.StatusCode, operation)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return mcperr.New(mcperr.CodeUpstreamServer, "undecodable response for %s", operation)
		}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// collectionPath maps a cached collection to its resource endpoint.
func collectionPath(c api.Collection) string {
	switch c {
	case api.CollectionSites:
		return "/resources/sites"
	case api.CollectionHosts:
		return "/resources/hosts"
	case api.CollectionFacilityPorts:
		return "/resources/facility-ports"
	default:
		return "/resources/links"
	}
}

// FetchPage implements Client.
func (c *HTTPClient) FetchPage(ctx context.Context, collection api.Collection, bearer string, offset, limit int) ([]api.Record, bool, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var env envelope
	op := "fetch-" + string(collection)
	if err := c.do(ctx, http.MethodGet, c.orchestratorBase+collectionPath(collection)+"?"+q.Encode(), bearer, nil, &env, op); err != nil {
		return nil, false, err
	}
	return env.Data, len(env.Data) == limit, nil
}

// ListSlices implements Client.
func (c *HTTPClient) ListSlices(ctx context.Context, bearer string, sq SliceQuery) ([]api.Record, bool, error) {
	q := url.Values{}
	q.Set("as_self", strconv.FormatBool(sq.AsSelf))
	q.Set("limit", strconv.Itoa(sq.Limit))
	q.Set("offset", strconv.Itoa(sq.Offset))
	if len(sq.States) > 0 {
		q.Set("states", strings.Join(sq.States, ","))
	}
	if sq.Name != "" {
		q.Set("name", sq.Name)
	}

	var env envelope
	if err := c.do(ctx, http.MethodGet, c.orchestratorBase+"/slices?"+q.Encode(), bearer, nil, &env, "list-slices"); err != nil {
		return nil, false, err
	}
	return env.Data, sq.Limit > 0 && len(env.Data) == sq.Limit, nil
}

// GetSlice implements Client.
func (c *HTTPClient) GetSlice(ctx context.Context, bearer, sliceID string, asSelf bool) (api.Record, error) {
	q := url.Values{}
	q.Set("as_self", strconv.FormatBool(asSelf))
	q.Set("graph_format", "GRAPHML")

	var env envelope
	if err := c.do(ctx, http.MethodGet, c.orchestratorBase+"/slices/"+url.PathEscape(sliceID)+"?"+q.Encode(), bearer, nil, &env, "get-slice"); err != nil {
		return nil, err
	}
	if len(env.Data) == 0 {
		return nil, mcperr.New(mcperr.CodeUpstreamClient, "slice %s not found", sliceID)
	}
	return env.Data[0], nil
}

// ListSlivers implements Client.
func (c *HTTPClient) ListSlivers(ctx context.Context, bearer, sliceID string, asSelf bool) ([]api.Record, error) {
	q := url.Values{}
	q.Set("slice_id", sliceID)
	q.Set("as_self", strconv.FormatBool(asSelf))

	var env envelope
	if err := c.do(ctx, http.MethodGet, c.orchestratorBase+"/slivers?"+q.Encode(), bearer, nil, &env, "list-slivers"); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// CreateSlice implements Client.
func (c *HTTPClient) CreateSlice(ctx context.Context, bearer string, req CreateSliceRequest) ([]api.Record, error) {
	q := url.Values{}
	q.Set("name", req.Name)
	if req.LifetimeDays > 0 {
		q.Set("lifetime", strconv.Itoa(req.LifetimeDays))
	}
	if req.LeaseStartTime != "" {
		q.Set("lease_start_time", req.LeaseStartTime)
	}
	if req.LeaseEndTime != "" {
		q.Set("lease_end_time", req.LeaseEndTime)
	}

	body := map[string]any{
		"graph_model": req.GraphModel,
		"ssh_keys":    req.SSHKeys,
	}
	var env envelope
	if err := c.do(ctx, http.MethodPost, c.orchestratorBase+"/slices/creates?"+q.Encode(), bearer, body, &env, "create-slice"); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// ModifySlice implements Client.
func (c *HTTPClient) ModifySlice(ctx context.Context, bearer, sliceID, graphModel string) ([]api.Record, error) {
	body := map[string]any{"graph_model": graphModel}
	var env envelope
	if err := c.do(ctx, http.MethodPut, c.orchestratorBase+"/slices/modify/"+url.PathEscape(sliceID), bearer, body, &env, "modify-slice"); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// AcceptModify implements Client.
func (c *HTTPClient) AcceptModify(ctx context.Context, bearer, sliceID string) (api.Record, error) {
	var env envelope
	if err := c.do(ctx, http.MethodPost, c.orchestratorBase+"/slices/modify/"+url.PathEscape(sliceID)+"/accept", bearer, nil, &env, "accept-modify"); err != nil {
		return nil, err
	}
	if len(env.Data) == 0 {
		return api.Record{}, nil
	}
	return env.Data[0], nil
}

// RenewSlice implements Client.
func (c *HTTPClient) RenewSlice(ctx context.Context, bearer, sliceID, leaseEndTime string) error {
	q := url.Values{}
	q.Set("lease_end_time", leaseEndTime)
	return c.do(ctx, http.MethodPost, c.orchestratorBase+"/slices/renew/"+url.PathEscape(sliceID)+"?"+q.Encode(), bearer, nil, nil, "renew-slice")
}

// DeleteSlice implements Client.
func (c *HTTPClient) DeleteSlice(ctx context.Context, bearer, sliceID string) error {
	return c.do(ctx, http.MethodDelete, c.orchestratorBase+"/slices/delete/"+url.PathEscape(sliceID), bearer, nil, nil, "delete-slice")
}

// POA implements Client.
func (c *HTTPClient) POA(ctx context.Context, bearer string, req POARequest) ([]api.Record, error) {
	body := map[string]any{"operation": req.Operation}
	if len(req.Vars) > 0 {
		body["vars"] = req.Vars
	}
	var env envelope
	if err := c.do(ctx, http.MethodPost, c.orchestratorBase+"/poas/create/"+url.PathEscape(req.SliverID), bearer, body, &env, "poa-"+req.Operation); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// GetProjects implements Client.
func (c *HTTPClient) GetProjects(ctx context.Context, bearer, projectName, projectID, userUUID string) ([]api.Record, error) {
	q := url.Values{}
	if projectName != "" {
		q.Set("project_name", projectName)
	}
	if projectID != "" {
		q.Set("project_id", projectID)
	}
	if userUUID != "" {
		q.Set("uuid", userUUID)
	}
	var env envelope
	if err := c.do(ctx, http.MethodGet, c.coreAPIBase+"/projects?"+q.Encode(), bearer, nil, &env, "get-projects"); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// ListProjectUsers implements Client.
func (c *HTTPClient) ListProjectUsers(ctx context.Context, bearer, projectUUID string) ([]api.Record, error) {
	var env envelope
	if err := c.do(ctx, http.MethodGet, c.coreAPIBase+"/projects/"+url.PathEscape(projectUUID)+"/members", bearer, nil, &env, "list-project-users"); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// GetUserKeys implements Client.
func (c *HTTPClient) GetUserKeys(ctx context.Context, bearer, userUUID, keyType string) ([]api.Record, error) {
	q := url.Values{}
	if keyType != "" {
		q.Set("type", keyType)
	}
	var env envelope
	if err := c.do(ctx, http.MethodGet, c.coreAPIBase+"/people/"+url.PathEscape(userUUID)+"/keys?"+q.Encode(), bearer, nil, &env, "get-user-keys"); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// refreshResponse is the credential-manager's token refresh response.
type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// RefreshCredential implements token.CredentialClient against the
// credential-manager service.
func (c *HTTPClient) RefreshCredential(ctx context.Context, refreshToken string) (token.Credential, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return token.Credential{}, "", mcperr.New(mcperr.CodeUpstreamServer, "cannot encode refresh request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.credmgrBase+"/tokens/refresh", bytes.NewReader(body))
	if err != nil {
		return token.Credential{}, "", mcperr.New(mcperr.CodeUpstreamServer, "cannot build refresh request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return token.Credential{}, "", mcperr.UpstreamTimeout("credential refresh timed out after %s", c.timeout)
		}
		return token.Credential{}, "", mcperr.New(mcperr.CodeUpstreamServer, "credential manager unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return token.Credential{}, "", mcperr.Unauthorized("credential refresh rejected")
		}
		return token.Credential{}, "", mcperr.FromStatus(resp.StatusCode, "refresh-credential")
	}

	var rr refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil || rr.IDToken == "" {
		return token.Credential{}, "", mcperr.New(mcperr.CodeUpstreamServer, "undecodable refresh response")
	}

	cred := token.Credential{Token: token.NewRedacted(rr.IDToken)}
	if rr.ExpiresAt > 0 {
		cred.ExpiresAt = time.Unix(rr.ExpiresAt, 0)
	}
	logging.Debug("Upstream", "credential refresh succeeded")
	return cred, rr.RefreshToken, nil
}

var _ Client = (*HTTPClient)(nil)
var _ token.CredentialClient = (*HTTPClient)(nil)

// baseURLOverride rewires the client onto test servers. Kept unexported;
// only the package tests use it.
func (c *HTTPClient) baseURLOverride(orchestrator, coreAPI, credmgr string) {
	if orchestrator != "" {
		c.orchestratorBase = orchestrator
	}
	if coreAPI != "" {
		c.coreAPIBase = coreAPI
	}
	if credmgr != "" {
		c.credmgrBase = credmgr
	}
}
