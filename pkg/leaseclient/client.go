// Package leaseclient is the HTTP SDK for the document lease server. UI
// backends acquire on document open, run the heartbeat while the editor is
// mounted, and release on close.
package leaseclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	headerHolderID   = "X-Holder-ID"
	headerHolderName = "X-Holder-Name"
)

type Client struct {
	baseURL string
	holder  Holder
	http    *http.Client
}

func New(baseURL string, holder Holder, hc *http.Client) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		holder:  holder,
		http:    hc,
	}
}

// Acquire enters the holder into the document's queue (or refreshes an
// existing entry) and returns the resulting lease view. IsOwnLock is true
// only when the queue was empty or the holder already sits at position 1.
func (c *Client) Acquire(ctx context.Context, documentType, documentID string) (LeaseInfo, error) {
	var out LeaseInfo
	err := c.do(ctx, http.MethodPost, c.docPath(documentType, documentID)+"/acquire", &out)
	return out, err
}

// Release drops the holder's queue entry. Idempotent: releasing a lease
// that already expired is success.
func (c *Client) Release(ctx context.Context, documentType, documentID string) error {
	return c.do(ctx, http.MethodPost, c.docPath(documentType, documentID)+"/release", nil)
}

// Refresh is one heartbeat. Most callers use StartHeartbeat instead.
func (c *Client) Refresh(ctx context.Context, documentType, documentID string) error {
	return c.do(ctx, http.MethodPost, c.docPath(documentType, documentID)+"/refresh", nil)
}

// Status reports the document's lease state without entering the queue.
func (c *Client) Status(ctx context.Context, documentType, documentID string) (LeaseInfo, error) {
	var out LeaseInfo
	err := c.do(ctx, http.MethodGet, c.docPath(documentType, documentID), &out)
	return out, err
}

func (c *Client) docPath(documentType, documentID string) string {
	return fmt.Sprintf("%s/v1/documents/%s/%s", c.baseURL, documentType, documentID)
}

func (c *Client) do(ctx context.Context, method, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(nil))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerHolderID, c.holder.ID)
	req.Header.Set(headerHolderName, c.holder.Name)

	rsp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer rsp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(rsp.Body, 1<<20))

	switch rsp.StatusCode {
	case http.StatusOK:
		if out != nil && len(body) > 0 {
			return json.Unmarshal(body, out)
		}
		return nil
	case http.StatusUnauthorized:
		return ErrUnauthenticated
	case http.StatusServiceUnavailable:
		return ErrStoreUnavailable
	default:
		return &UnexpectedStatusError{
			Method: method,
			Path:   url,
			Code:   rsp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}
}
