// Package webflow implements the content platform adapter for the Webflow
// Data API v2.
package webflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/hoanghai1803/pressroom/internal/providers"
	"github.com/hoanghai1803/pressroom/internal/transform"
)

// DefaultBaseURL is the Webflow API root.
const DefaultBaseURL = "https://api.webflow.com"

const maxResponseBytes = 4 << 20

// Options configures clients created by the adapter.
type Options struct {
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Transport is the base round tripper under the bearer token transport.
	// nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 15 * time.Second
	}
	return o
}

// Client talks to the Webflow API with one token.
type Client struct {
	opts Options
	http *http.Client
}

// NewClient creates a Client that authenticates every call with token.
func NewClient(opts Options, token string) *Client {
	opts = opts.withDefaults()
	return &Client{
		opts: opts,
		http: &http.Client{
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
				Base:   opts.Transport,
			},
		},
	}
}

// Page is a static page of a site.
type Page struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
	Draft bool   `json:"draft"`
}

type apiSite struct {
	ID            string     `json:"id"`
	DisplayName   string     `json:"displayName"`
	ShortName     string     `json:"shortName"`
	LastPublished *time.Time `json:"lastPublished"`
	CustomDomains []struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"customDomains"`
}

func (s apiSite) toSite() providers.Site {
	site := providers.Site{
		ID:            s.ID,
		Name:          s.DisplayName,
		ShortName:     s.ShortName,
		LastPublished: s.LastPublished,
	}
	if len(s.CustomDomains) > 0 && s.CustomDomains[0].URL != "" {
		site.Domain = s.CustomDomains[0].URL
	} else if s.ShortName != "" {
		site.Domain = s.ShortName + ".webflow.io"
	}
	return site
}

type apiField struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	DisplayName string `json:"displayName"`
	Type        string `json:"type"`
	IsRequired  bool   `json:"isRequired"`
}

type apiCollection struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
	Slug        string     `json:"slug"`
	Fields      []apiField `json:"fields"`
}

func (c apiCollection) toCollection(siteID string) providers.Collection {
	col := providers.Collection{
		ID:     c.ID,
		SiteID: siteID,
		Name:   c.DisplayName,
		Slug:   c.Slug,
	}
	for _, f := range c.Fields {
		col.Fields = append(col.Fields, providers.Field{
			ID:          f.ID,
			Slug:        f.Slug,
			DisplayName: f.DisplayName,
			Type:        FieldType(f.Type),
			Required:    f.IsRequired,
		})
	}
	return col
}

// Item is a collection item as returned by the API.
type Item struct {
	ID            string         `json:"id"`
	IsDraft       bool           `json:"isDraft"`
	IsArchived    bool           `json:"isArchived"`
	LastUpdated   *time.Time     `json:"lastUpdated"`
	LastPublished *time.Time     `json:"lastPublished"`
	FieldData     map[string]any `json:"fieldData"`
}

func (it *Item) stringField(slug string) string {
	s, _ := it.FieldData[slug].(string)
	return s
}

// FieldType maps a Webflow field type to the platform-neutral enumeration.
// Unknown types map to text.
func FieldType(webflowType string) transform.FieldType {
	switch webflowType {
	case "PlainText":
		return transform.FieldText
	case "RichText":
		return transform.FieldRichText
	case "Image", "MultiImage":
		return transform.FieldImage
	case "DateTime":
		return transform.FieldDate
	case "Number":
		return transform.FieldNumber
	case "Switch":
		return transform.FieldBoolean
	case "Option":
		return transform.FieldOption
	case "File":
		return transform.FieldFile
	case "Link", "VideoLink", "Email", "Phone":
		return transform.FieldLink
	case "Reference", "MultiReference":
		return transform.FieldReference
	default:
		return transform.FieldText
	}
}

// Sites lists every site the token can access.
func (c *Client) Sites(ctx context.Context) ([]providers.Site, error) {
	var resp struct {
		Sites []apiSite `json:"sites"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/sites", nil, &resp); err != nil {
		return nil, err
	}

	sites := make([]providers.Site, 0, len(resp.Sites))
	for _, s := range resp.Sites {
		sites = append(sites, s.toSite())
	}
	return sites, nil
}

// Site fetches one site.
func (c *Client) Site(ctx context.Context, siteID string) (*providers.Site, error) {
	var resp apiSite
	if err := c.do(ctx, http.MethodGet, "/v2/sites/"+siteID, nil, &resp); err != nil {
		return nil, err
	}
	site := resp.toSite()
	return &site, nil
}

// Collections lists the collections of a site without their fields.
func (c *Client) Collections(ctx context.Context, siteID string) ([]providers.Collection, error) {
	var resp struct {
		Collections []apiCollection `json:"collections"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/sites/"+siteID+"/collections", nil, &resp); err != nil {
		return nil, err
	}

	cols := make([]providers.Collection, 0, len(resp.Collections))
	for _, col := range resp.Collections {
		cols = append(cols, col.toCollection(siteID))
	}
	return cols, nil
}

// Collection fetches a collection with its field schema.
func (c *Client) Collection(ctx context.Context, collectionID string) (*providers.Collection, error) {
	var resp apiCollection
	if err := c.do(ctx, http.MethodGet, "/v2/collections/"+collectionID, nil, &resp); err != nil {
		return nil, err
	}
	col := resp.toCollection("")
	return &col, nil
}

// Pages lists the static pages of a site.
func (c *Client) Pages(ctx context.Context, siteID string) ([]Page, error) {
	var resp struct {
		Pages []Page `json:"pages"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/sites/"+siteID+"/pages", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Pages, nil
}

// Item fetches one collection item.
func (c *Client) Item(ctx context.Context, collectionID, itemID string) (*Item, error) {
	var item Item
	if err := c.do(ctx, http.MethodGet, itemPath(collectionID, itemID), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

type itemRequest struct {
	FieldData map[string]any `json:"fieldData"`
	IsDraft   bool           `json:"isDraft"`
}

// CreateItem creates a collection item. It is not idempotent.
func (c *Client) CreateItem(ctx context.Context, collectionID string, fieldData map[string]any, isDraft bool) (*Item, error) {
	var item Item
	body := itemRequest{FieldData: fieldData, IsDraft: isDraft}
	if err := c.do(ctx, http.MethodPost, "/v2/collections/"+collectionID+"/items", body, &item); err != nil {
		return nil, err
	}
	if item.ID == "" {
		return nil, fmt.Errorf("create item: response has no item id")
	}
	return &item, nil
}

// UpdateItem patches a collection item.
func (c *Client) UpdateItem(ctx context.Context, collectionID, itemID string, fieldData map[string]any, isDraft bool) (*Item, error) {
	var item Item
	body := itemRequest{FieldData: fieldData, IsDraft: isDraft}
	if err := c.do(ctx, http.MethodPatch, itemPath(collectionID, itemID), body, &item); err != nil {
		return nil, err
	}
	if item.ID == "" {
		item.ID = itemID
	}
	return &item, nil
}

// DeleteItem removes a collection item.
func (c *Client) DeleteItem(ctx context.Context, collectionID, itemID string) error {
	return c.do(ctx, http.MethodDelete, itemPath(collectionID, itemID), nil, nil)
}

// PublishSite publishes the site so that the given items go live.
func (c *Client) PublishSite(ctx context.Context, siteID string, itemIDs []string) error {
	body := struct {
		ItemIDs                   []string `json:"itemIds,omitempty"`
		PublishToWebflowSubdomain bool     `json:"publishToWebflowSubdomain"`
	}{
		ItemIDs:                   itemIDs,
		PublishToWebflowSubdomain: true,
	}
	return c.do(ctx, http.MethodPost, "/v2/sites/"+siteID+"/publish", body, nil)
}

func itemPath(collectionID, itemID string) string {
	return "/v2/collections/" + collectionID + "/items/" + itemID
}

// do performs one API call with a per-call timeout. Reads use the read
// timeout, everything else the write timeout. Transport failures are
// returned as *providers.ConnectionError and non-2xx responses as
// *providers.APIError.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	timeout := c.opts.WriteTimeout
	if method == http.MethodGet {
		timeout = c.opts.ReadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	slog.Debug("calling Webflow API", "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return &providers.ConnectionError{Platform: providers.PlatformWebflow, Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &providers.ConnectionError{Platform: providers.PlatformWebflow, Op: method + " " + path, Err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &providers.APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}
