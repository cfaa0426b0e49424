package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// QueryExecutor runs one Cypher statement.
type QueryExecutor interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error)
}

type MemgraphDriver struct {
	Driver neo4j.DriverWithContext
}

var newBoltDriver = func(uri, username, password string) (neo4j.DriverWithContext, error) {
	return neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
}

func NewMemgraphDriver(ctx context.Context, uri, username, password string) (*MemgraphDriver, error) {
	driver, err := newBoltDriver(uri, username, password)
	if err != nil {
		return nil, eris.Wrapf(err, "create driver for %s", uri)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		if cerr := driver.Close(ctx); cerr != nil {
			return nil, eris.Wrapf(err, "connect to %s (close: %v)", uri, cerr)
		}
		return nil, eris.Wrapf(err, "connect to %s", uri)
	}

	return &MemgraphDriver{Driver: driver}, nil
}

func (d *MemgraphDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *MemgraphDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, eris.Wrap(err, "failed to execute query")
	}
	return *result, nil
}

// jsonSuffix marks properties holding JSON-encoded nested values; graph
// properties cannot hold maps.
const jsonSuffix = "__json"

// MemgraphRepository stores records as :Record nodes over Bolt. It works
// against Memgraph and Neo4j.
type MemgraphRepository struct {
	Exec   QueryExecutor
	closer func(context.Context) error
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	lastSeq int64
}

func NewMemgraphRepository(exec QueryExecutor, logger *zap.Logger) *MemgraphRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &MemgraphRepository{Exec: exec, logger: logger, now: time.Now}
	if c, ok := exec.(interface{ Close(context.Context) error }); ok {
		r.closer = c.Close
	}
	return r
}

func (r *MemgraphRepository) BuildIndices(ctx context.Context) error {
	queries := []string{
		"CREATE INDEX ON :Record(id);",
		"CREATE INDEX ON :Record(classification);",
		"CREATE INDEX ON :Record(ingested_at);",
	}

	for _, q := range queries {
		if _, err := r.Exec.ExecuteQuery(ctx, q, nil); err != nil {
			// usually the index already exists
			r.logger.Warn("memgraph: failed to create index", zap.String("query", q), zap.Error(err))
		}
	}
	return nil
}

func (r *MemgraphRepository) FetchAll(ctx context.Context, f Filter) ([]Document, error) {
	var (
		where  []string
		params = map[string]interface{}{}
	)
	if f.HasExtractedFields {
		where = append(where, "r."+KeyExtractedFields+jsonSuffix+" IS NOT NULL")
	}
	if f.ExcludeDuplicates {
		where = append(where, "coalesce(r."+KeyIsDuplicate+", false) = false")
	}
	if f.Classification != "" {
		where = append(where, "r."+KeyClassification+" = $classification")
		params["classification"] = f.Classification
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	res, err := r.Exec.ExecuteQuery(ctx, fmt.Sprintf(FetchRecordsQuery, clause), params)
	if err != nil {
		return nil, eris.Wrap(err, "fetch records")
	}

	out := make([]Document, 0, len(res.Records))
	for _, rec := range res.Records {
		raw, ok := rec.Get("props")
		if !ok {
			continue
		}
		props, ok := raw.(map[string]any)
		if !ok {
			return nil, eris.Errorf("unexpected record properties %T", raw)
		}
		d, err := fromProperties(props)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *MemgraphRepository) UpdatePartial(ctx context.Context, id string, set map[string]any) error {
	props, err := toProperties(set)
	if err != nil {
		return eris.Wrapf(err, "update %s", id)
	}
	res, err := r.Exec.ExecuteQuery(ctx, UpdateRecordQuery, map[string]interface{}{
		"id":    id,
		"props": props,
	})
	if err != nil {
		return eris.Wrapf(err, "update %s", id)
	}
	if len(res.Records) == 0 {
		return eris.Wrapf(ErrNotFound, "update %s", id)
	}
	return nil
}

func (r *MemgraphRepository) Upsert(ctx context.Context, d Document) error {
	id := d.ID()
	if id == "" {
		return eris.New("upsert: document has no _id")
	}
	props, err := toProperties(d)
	if err != nil {
		return eris.Wrapf(err, "upsert %s", id)
	}
	_, err = r.Exec.ExecuteQuery(ctx, UpsertRecordQuery, map[string]interface{}{
		"id":          id,
		"ingested_at": r.nextSeq(),
		"props":       props,
	})
	return eris.Wrapf(err, "upsert %s", id)
}

// nextSeq is a strictly increasing ingestion stamp, nanoseconds since epoch.
func (r *MemgraphRepository) nextSeq() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq := r.now().UnixNano()
	if seq <= r.lastSeq {
		seq = r.lastSeq + 1
	}
	r.lastSeq = seq
	return seq
}

func (r *MemgraphRepository) Close(ctx context.Context) error {
	if r.closer == nil {
		return nil
	}
	return r.closer(ctx)
}

// toProperties flattens a document for SET +=. Nested maps and non-string
// lists are JSON-encoded under key+jsonSuffix; nil clears both forms.
func toProperties(set map[string]any) (map[string]any, error) {
	props := make(map[string]any, len(set)*2)
	for k, v := range set {
		if k == KeyID {
			continue
		}
		switch val := v.(type) {
		case nil:
			props[k] = nil
			props[k+jsonSuffix] = nil
		case string, bool, int, int64, float64, []string:
			props[k] = val
			props[k+jsonSuffix] = nil
		default:
			data, err := json.Marshal(val)
			if err != nil {
				return nil, eris.Wrapf(err, "encode %s", k)
			}
			props[k] = nil
			props[k+jsonSuffix] = string(data)
		}
	}
	return props, nil
}

func fromProperties(props map[string]any) (Document, error) {
	d := Document{}
	for k, v := range props {
		switch {
		case k == "id":
			d[KeyID] = v
		case k == "ingested_at":
		case strings.HasSuffix(k, jsonSuffix):
			s, ok := v.(string)
			if !ok {
				continue
			}
			var decoded any
			if err := json.Unmarshal([]byte(s), &decoded); err != nil {
				return nil, eris.Wrapf(err, "decode %s", k)
			}
			d[strings.TrimSuffix(k, jsonSuffix)] = decoded
		default:
			d[k] = v
		}
	}
	return d, nil
}
