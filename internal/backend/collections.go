package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/valpere/playconv/internal/ctxlog"
	"github.com/valpere/playconv/internal/dialect"
)

// Guidance is a short document ingested into a retrieval collection.
type Guidance struct {
	Collection string
	Content    string
}

// DefaultGuidance returns one guidance document per dialect.
func DefaultGuidance() []Guidance {
	return []Guidance{
		{
			Collection: dialect.A.Collection(),
			Content: `Chef is a Ruby-based configuration management tool.
Resources like cookbook_file, template, package, and service define system state.
Attributes are accessed using node['attribute'].
Convert Chef logic into Ansible tasks using modules like copy, template, apt, yum, and service.`,
		},
		{
			Collection: dialect.B.Collection(),
			Content: `Puppet uses a declarative DSL for defining system configuration.
Classes and resources are defined using class, package {}, and file {} syntax.
Variables use $, and the format is key => value.
Convert Puppet resources to Ansible modules like package, file, copy, and template.`,
		},
	}
}

// Bootstrapper registers retrieval collections and ingests guidance. It is
// a one-time setup step; conversions only read collection names.
type Bootstrapper struct {
	client *http.Client
}

func NewBootstrapper(client *http.Client) *Bootstrapper {
	return &Bootstrapper{client: defaultClient(client)}
}

// Bootstrap registers every collection in docs that does not exist yet and
// inserts its guidance. It returns the collections it created.
func (b *Bootstrapper) Bootstrap(ctx context.Context, cfg Config, docs []Guidance) ([]string, error) {
	log := ctxlog.FromContext(ctx)
	base := versioned(cfg.Endpoint)

	existing, err := b.list(ctx, base, cfg.Credential)
	if err != nil {
		return nil, err
	}

	var created []string
	for _, doc := range docs {
		if existing[doc.Collection] {
			log.Info("collection already exists", "collection", doc.Collection)
			continue
		}
		register := map[string]any{
			"vector_db_id":        doc.Collection,
			"embedding_model":     "all-MiniLM-L6-v2",
			"embedding_dimension": 384,
			"provider_id":         "faiss",
		}
		if err := b.post(ctx, base+"/vector-dbs", cfg.Credential, register); err != nil {
			return created, fmt.Errorf("register %s: %w", doc.Collection, err)
		}
		insert := map[string]any{
			"vector_db_id":         doc.Collection,
			"chunk_size_in_tokens": 512,
			"documents": []map[string]any{{
				"document_id": doc.Collection + "-guidance",
				"content":     doc.Content,
				"mime_type":   "text/plain",
				"metadata":    map[string]any{},
			}},
		}
		if err := b.post(ctx, base+"/tool-runtime/rag-tool/insert", cfg.Credential, insert); err != nil {
			return created, fmt.Errorf("ingest %s: %w", doc.Collection, err)
		}
		log.Info("collection created", "collection", doc.Collection)
		created = append(created, doc.Collection)
	}
	return created, nil
}

func (b *Bootstrapper) list(ctx context.Context, base, credential string) (map[string]bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/vector-dbs", nil)
	if err != nil {
		return nil, err
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, transportError("list collections", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var out struct {
		Data []struct {
			Identifier         string `json:"identifier"`
			ProviderResourceID string `json:"provider_resource_id"`
		} `json:"data"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(out.Data))
	for _, v := range out.Data {
		existing[v.Identifier] = true
		existing[v.ProviderResourceID] = true
	}
	return existing, nil
}

func (b *Bootstrapper) post(ctx context.Context, url, credential string, body any) error {
	resp, err := postJSON(ctx, b.client, url, credential, body, false)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
