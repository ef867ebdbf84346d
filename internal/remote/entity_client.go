package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/erauner12/tasksync/internal/model"
	"github.com/erauner12/tasksync/internal/syncx"
)

// maxErrorBody caps how much of an error response is kept in StatusError.
const maxErrorBody = 512

// EntityClient performs create/update/delete against one resource collection.
type EntityClient struct {
	http     *HTTPClient
	basePath string // e.g. "/tasks"
}

// NewEntityClient creates a client for resource, e.g. "tasks" or "events".
func NewEntityClient(httpClient *HTTPClient, resource string) *EntityClient {
	return &EntityClient{
		http:     httpClient,
		basePath: "/" + resource,
	}
}

// Create posts body and returns the server-assigned id.
func (c *EntityClient) Create(ctx context.Context, body any) (string, error) {
	resp, err := c.send(ctx, http.MethodPost, c.basePath, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "create", c.basePath); err != nil {
		return "", err
	}

	var decoded map[string]any
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode create response: %w", err)
	}

	created, err := syncx.ExtractCreated(decoded)
	if err != nil {
		return "", err
	}
	return created.ServerID, nil
}

// Update replaces the resource identified by serverID with body.
func (c *EntityClient) Update(ctx context.Context, serverID string, body any) error {
	path := c.itemPath(serverID)
	resp, err := c.send(ctx, http.MethodPut, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, "update", path)
}

// Delete removes the resource identified by serverID.
func (c *EntityClient) Delete(ctx context.Context, serverID string) error {
	path := c.itemPath(serverID)
	resp, err := c.send(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, "delete", path)
}

func (c *EntityClient) itemPath(serverID string) string {
	return c.basePath + "/" + url.PathEscape(serverID)
}

func (c *EntityClient) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.http.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.http.Do(ctx, req)
}

func checkStatus(resp *http.Response, op, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Op: op, Path: path, Code: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
}

// API routes operations to the collection of each record kind.
type API struct {
	tasks  *EntityClient
	events *EntityClient
}

// NewAPI builds the task and event clients over one HTTPClient.
func NewAPI(httpClient *HTTPClient) *API {
	return &API{
		tasks:  NewEntityClient(httpClient, model.KindTask.Plural()),
		events: NewEntityClient(httpClient, model.KindEvent.Plural()),
	}
}

func (a *API) collection(kind model.Kind) (*EntityClient, error) {
	switch kind {
	case model.KindTask:
		return a.tasks, nil
	case model.KindEvent:
		return a.events, nil
	}
	return nil, fmt.Errorf("no remote collection for kind %q", kind)
}

// Create posts payload to the collection of kind.
func (a *API) Create(ctx context.Context, kind model.Kind, payload model.Payload) (string, error) {
	c, err := a.collection(kind)
	if err != nil {
		return "", err
	}
	body, err := payload.Body()
	if err != nil {
		return "", err
	}
	return c.Create(ctx, body)
}

// Update replaces the remote record serverID of kind.
func (a *API) Update(ctx context.Context, kind model.Kind, serverID string, payload model.Payload) error {
	c, err := a.collection(kind)
	if err != nil {
		return err
	}
	body, err := payload.Body()
	if err != nil {
		return err
	}
	return c.Update(ctx, serverID, body)
}

// Delete removes the remote record serverID of kind.
func (a *API) Delete(ctx context.Context, kind model.Kind, serverID string) error {
	c, err := a.collection(kind)
	if err != nil {
		return err
	}
	return c.Delete(ctx, serverID)
}
