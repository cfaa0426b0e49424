package driver

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type MockExecutor struct {
	Queries    []string
	Params     []map[string]interface{}
	MockResult neo4j.EagerResult
	Err        error
}

func (m *MockExecutor) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.Queries = append(m.Queries, query)
	m.Params = append(m.Params, params)
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	return m.MockResult, nil
}

func (m *MockExecutor) LastQuery() string {
	return m.Queries[len(m.Queries)-1]
}

func (m *MockExecutor) LastParams() map[string]interface{} {
	return m.Params[len(m.Params)-1]
}
