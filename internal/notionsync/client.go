package notionsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jomei/notionapi"
)

const maxRequestElapsed = 30 * time.Second

// NotionClient implements NotionService with the notionapi SDK. Rate-limited
// and server-side failures are retried with exponential backoff.
type NotionClient struct {
	client     *notionapi.Client
	newBackOff func() backoff.BackOff
}

var _ NotionService = (*NotionClient)(nil)

// NewNotionClient creates a new NotionClient with the provided integration token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{
		client: notionapi.NewClient(notionapi.Token(token)),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = maxRequestElapsed
			return b
		},
	}
}

// retryable reports whether a Notion API error is worth another attempt.
func retryable(err error) bool {
	var apiErr *notionapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
}

func (n *NotionClient) retry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(n.newBackOff(), ctx))
}

// CreatePage creates a new page in a Notion database with the given properties.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	}

	var page *notionapi.Page
	err := n.retry(ctx, func() (err error) {
		page, err = n.client.Page.Create(ctx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}
	return page, nil
}

// UpdatePage updates an existing Notion page with the given properties.
func (n *NotionClient) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageUpdateRequest{
		Properties: properties,
	}

	var page *notionapi.Page
	err := n.retry(ctx, func() (err error) {
		page, err = n.client.Page.Update(ctx, notionapi.PageID(pageID), req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("UpdatePage: %w", err)
	}
	return page, nil
}

// QueryDatabase queries a Notion database with the given filter.
func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	var resp *notionapi.DatabaseQueryResponse
	err := n.retry(ctx, func() (err error) {
		resp, err = n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: %w", err)
	}
	return resp, nil
}

// DeletePage archives a Notion page by setting its archived property to true.
func (n *NotionClient) DeletePage(ctx context.Context, pageID string) error {
	req := &notionapi.PageUpdateRequest{
		Archived: true,
	}

	err := n.retry(ctx, func() error {
		_, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), req)
		return err
	})
	if err != nil {
		return fmt.Errorf("DeletePage: %w", err)
	}
	return nil
}
