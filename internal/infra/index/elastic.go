package index

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/totegamma/logbook/internal/domain"
	"github.com/totegamma/logbook/internal/search"
	"github.com/totegamma/logbook/internal/usecase"
)

var tracer = otel.Tracer("index")

//go:embed mapping.json
var mapping []byte

// ElasticIndex stores log documents in an Elasticsearch index.
type ElasticIndex struct {
	es    *elasticsearch.Client
	index string
}

func NewElasticIndex(es *elasticsearch.Client, index string) *ElasticIndex {
	if index == "" {
		index = search.DefaultIndex
	}
	return &ElasticIndex{es: es, index: index}
}

// EnsureIndex creates the log index with its nested mapping if it does not exist yet.
func (e *ElasticIndex) EnsureIndex(ctx context.Context) error {
	res, err := e.es.Indices.Exists([]string{e.index}, e.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "check index")
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = e.es.Indices.Create(
		e.index,
		e.es.Indices.Create.WithContext(ctx),
		e.es.Indices.Create.WithBody(bytes.NewReader(mapping)),
	)
	if err != nil {
		return errors.Wrap(err, "create index")
	}
	defer res.Body.Close()
	return responseError(res, "create index")
}

func (e *ElasticIndex) Index(ctx context.Context, log domain.Log) error {
	ctx, span := tracer.Start(ctx, "Index.Elastic.Index", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.Int64("id", log.ID))

	body, err := json.Marshal(log)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "marshal log")
	}

	res, err := e.es.Create(
		e.index,
		docID(log.ID),
		bytes.NewReader(body),
		e.es.Create.WithContext(ctx),
		e.es.Create.WithRefresh("wait_for"),
	)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "create document")
	}
	defer res.Body.Close()

	if err := responseError(res, "create document"); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

type getResponse struct {
	Found  bool       `json:"found"`
	Source domain.Log `json:"_source"`
}

func (e *ElasticIndex) Get(ctx context.Context, id int64) (domain.Log, error) {
	ctx, span := tracer.Start(ctx, "Index.Elastic.Get", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.Int64("id", id))

	res, err := e.es.Get(e.index, docID(id), e.es.Get.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		return domain.Log{}, errors.Wrap(err, "get document")
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return domain.Log{}, domain.NotFoundError{Resource: "log"}
	}
	if err := responseError(res, "get document"); err != nil {
		span.RecordError(err)
		return domain.Log{}, err
	}

	var doc getResponse
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		span.RecordError(err)
		return domain.Log{}, errors.Wrap(err, "decode document")
	}
	if !doc.Found {
		return domain.Log{}, domain.NotFoundError{Resource: "log"}
	}
	return doc.Source, nil
}

type searchResponse struct {
	TimedOut bool `json:"timed_out"`
	Hits     struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source domain.Log `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *ElasticIndex) Search(ctx context.Context, req search.Request) (domain.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Index.Elastic.Search")
	defer span.End()

	if req.Query == nil {
		req.Query = search.MatchAllQuery{}
	}
	index := req.Index
	if index == "" {
		index = e.index
	}

	body, err := json.Marshal(req.Source())
	if err != nil {
		span.RecordError(err)
		return domain.SearchResult{}, errors.Wrap(err, "marshal query")
	}

	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(index),
		e.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		span.RecordError(err)
		return domain.SearchResult{}, errors.Wrap(err, "search")
	}
	defer res.Body.Close()

	if err := responseError(res, "search"); err != nil {
		span.RecordError(err)
		return domain.SearchResult{}, err
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		span.RecordError(err)
		return domain.SearchResult{}, errors.Wrap(err, "decode search response")
	}
	if parsed.TimedOut {
		err := errors.Wrapf(context.DeadlineExceeded, "search timed out after %s", req.Timeout)
		span.RecordError(err)
		return domain.SearchResult{}, err
	}

	result := domain.SearchResult{
		HitCount: parsed.Hits.Total.Value,
		Logs:     make([]domain.Log, 0, len(parsed.Hits.Hits)),
	}
	for _, h := range parsed.Hits.Hits {
		result.Logs = append(result.Logs, h.Source)
	}
	span.SetAttributes(attribute.Int64("hits", result.HitCount))
	return result, nil
}

func (e *ElasticIndex) Update(ctx context.Context, id int64, partial map[string]any) error {
	ctx, span := tracer.Start(ctx, "Index.Elastic.Update")
	defer span.End()

	body, err := json.Marshal(map[string]any{"doc": partial})
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "marshal partial document")
	}

	res, err := e.es.Update(
		e.index,
		docID(id),
		bytes.NewReader(body),
		e.es.Update.WithContext(ctx),
		e.es.Update.WithRefresh("wait_for"),
	)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "update document")
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return domain.NotFoundError{Resource: "log"}
	}
	return responseError(res, "update document")
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func responseError(res *esapi.Response, op string) error {
	if !res.IsError() {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return errors.Errorf("%s: %s: %s", op, res.Status(), bytes.TrimSpace(detail))
}

var _ usecase.DocumentIndex = (*ElasticIndex)(nil)
