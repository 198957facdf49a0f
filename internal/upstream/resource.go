package upstream

import "context"

// Resource binds a Client to one endpoint and one caller, so a table editor
// can use it as its Store.
type Resource struct {
	client   *Client
	endpoint string
	creds    Credentials
}

// Resource returns the resource at endpoint as seen by creds.
func (c *Client) Resource(endpoint string, creds Credentials) *Resource {
	return &Resource{client: c, endpoint: endpoint, creds: creds}
}

// Fetch returns every row of the resource.
func (r *Resource) Fetch(ctx context.Context) ([]map[string]string, error) {
	return r.client.Fetch(ctx, r.endpoint, r.creds)
}

// Replace overwrites the resource with rows.
func (r *Resource) Replace(ctx context.Context, rows []map[string]string) error {
	return r.client.Replace(ctx, r.endpoint, r.creds, rows)
}
