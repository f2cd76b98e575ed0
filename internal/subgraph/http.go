package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/samsarahq/go/oops"
	"golang.org/x/net/http2"
)

// HTTPClient executes subgraph requests as GraphQL-over-HTTP/2 POSTs,
// grounded on federation/http.go's POST-body shape ({query,
// variables}) generalized from the teacher's single-gateway
// httpHandler into an outbound client used once per subgraph.
type HTTPClient struct {
	subgraph   string
	url        string
	httpClient *http.Client
}

// NewHTTPClient builds an HTTPClient for one subgraph's URL, with its
// transport configured for HTTP/2.
func NewHTTPClient(subgraphName, url string) (*HTTPClient, error) {
	transport := &http.Transport{}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, oops.Wrapf(err, "configuring http2 transport for subgraph %s", subgraphName)
	}
	return &HTTPClient{
		subgraph:   subgraphName,
		url:        url,
		httpClient: &http.Client{Transport: transport},
	}, nil
}

type httpRequestBody struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type httpResponseBody struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// Execute implements Client.
func (c *HTTPClient) Execute(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(httpRequestBody{Query: req.Query, Variables: req.Variables})
	if err != nil {
		return Response{}, oops.Wrapf(err, "marshaling subgraph %s request", c.subgraph)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, oops.Wrapf(err, "building subgraph %s request", c.subgraph)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, oops.Wrapf(err, "executing subgraph %s request", c.subgraph)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Response{}, oops.Errorf("subgraph %s returned HTTP %d", c.subgraph, resp.StatusCode)
	}

	var decoded httpResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Response{}, oops.Wrapf(err, "decoding subgraph %s response", c.subgraph)
	}

	return Response{Data: decoded.Data, Errors: decoded.Errors}, nil
}
