// internal/clients/catalog_client.go
package clients

import (
	"context"
	"net/http"
	"net/url"

	"loandesk/internal/catalog"
)

type CatalogClient struct {
	base
}

var _ catalog.Service = (*CatalogClient)(nil)

func NewCatalogClient(baseURL string, hc *http.Client) *CatalogClient {
	return &CatalogClient{base: newBase(baseURL, hc)}
}

var catalogErrors = byStatus(map[int]error{
	http.StatusBadRequest: catalog.ErrInvalidItem,
	http.StatusNotFound:   catalog.ErrItemNotFound,
	http.StatusConflict:   catalog.ErrItemExists,
})

func (c *CatalogClient) AddItem(ctx context.Context, isbn, title string) (*catalog.Item, error) {
	req := struct {
		ISBN  string `json:"isbn"`
		Title string `json:"title"`
	}{isbn, title}

	var item catalog.Item
	if err := c.do(ctx, http.MethodPost, "/items", req, &item, http.StatusCreated, catalogErrors); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *CatalogClient) GetItem(ctx context.Context, isbn string) (*catalog.Item, error) {
	var item catalog.Item
	if err := c.do(ctx, http.MethodGet, "/items/"+url.PathEscape(isbn), nil, &item, http.StatusOK, catalogErrors); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *CatalogClient) ListItems(ctx context.Context) ([]catalog.Item, error) {
	var items []catalog.Item
	if err := c.do(ctx, http.MethodGet, "/items", nil, &items, http.StatusOK, catalogErrors); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *CatalogClient) RetitleItem(ctx context.Context, isbn, title string) (*catalog.Item, error) {
	req := struct {
		Title string `json:"title"`
	}{title}

	var item catalog.Item
	if err := c.do(ctx, http.MethodPatch, "/items/"+url.PathEscape(isbn), req, &item, http.StatusOK, catalogErrors); err != nil {
		return nil, err
	}
	return &item, nil
}
