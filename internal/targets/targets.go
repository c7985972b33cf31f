// Package targets resolves where files are uploaded.
package targets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"text/template"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/wandb/chunkup/internal/chunkupload"
	"github.com/wandb/chunkup/internal/filetransfer"
)

// TemplateResolver expands a URL template for each file.
//
// The template is a text/template over TemplateData, for example
// "s3://bucket/uploads/{{.Name}}".
type TemplateResolver struct {
	tmpl *template.Template
}

// TemplateData is the data available to target templates.
type TemplateData struct {
	Name        string
	Size        int64
	ContentType string
	Payload     any
}

func NewTemplateResolver(pattern string) (*TemplateResolver, error) {
	if pattern == "" {
		return nil, errors.New("targets: empty target template")
	}

	tmpl, err := template.New("target").
		Option("missingkey=error").
		Funcs(template.FuncMap{"pathEscape": url.PathEscape}).
		Parse(pattern)
	if err != nil {
		return nil, fmt.Errorf("targets: parsing target template: %v", err)
	}

	return &TemplateResolver{tmpl: tmpl}, nil
}

// ResolveTarget implements chunkupload.TargetResolver.
func (r *TemplateResolver) ResolveTarget(
	_ context.Context,
	item chunkupload.FileItem,
) (string, error) {
	var target strings.Builder

	err := r.tmpl.Execute(&target, TemplateData{
		Name:        item.File.Name(),
		Size:        item.File.Size(),
		ContentType: item.File.ContentType(),
		Payload:     item.Payload,
	})
	if err != nil {
		return "", fmt.Errorf("targets: expanding template: %v", err)
	}

	return target.String(), nil
}

// EndpointResolver asks an HTTP endpoint for a signed upload URL.
//
// It sends GET <endpoint>?name=<name>&size=<size> and expects a JSON body
// of the form {"url": "..."}.
type EndpointResolver struct {
	client   *retryablehttp.Client
	endpoint *url.URL
}

type endpointResponse struct {
	URL string `json:"url"`
}

func NewEndpointResolver(
	client *retryablehttp.Client,
	endpoint string,
) (*EndpointResolver, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.New("targets: invalid sign endpoint")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("targets: sign endpoint scheme %q is not HTTP", u.Scheme)
	}

	return &EndpointResolver{client: client, endpoint: u}, nil
}

// ResolveTarget implements chunkupload.TargetResolver.
func (r *EndpointResolver) ResolveTarget(
	ctx context.Context,
	item chunkupload.FileItem,
) (string, error) {
	u := *r.endpoint
	query := u.Query()
	query.Set("name", item.File.Name())
	query.Set("size", strconv.FormatInt(item.File.Size(), 10))
	u.RawQuery = query.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf(
			"targets: requesting upload URL: %w",
			filetransfer.NewRequestError(http.MethodGet, &u, err),
		)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("targets: requesting upload URL: %s", resp.Status)
	}

	var body endpointResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("targets: decoding upload URL: %v", err)
	}
	if body.URL == "" {
		return "", errors.New("targets: sign endpoint returned no URL")
	}

	return body.URL, nil
}
