package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/minio/minio-go/v7"

	"github.com/flowcore/taskrunner/internal/httppipeline"
)

// runHTTP implements the "http"/"webhook" action types: a fetch with
// method/headers/body through the shared pipeline client, returning its
// parsed response. forceMethod overrides config["method"] (used for
// webhook, which is POST-shaped http per spec.md §4.8). config["maxRetries"]
// overrides the pipeline's default retry budget for this action.
func (e *Executor) runHTTP(ctx context.Context, config map[string]any, forceMethod string) (map[string]any, error) {
	if e.http == nil {
		return nil, fmt.Errorf("scheduler: http action: no pipeline client configured")
	}

	url, _ := config["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("scheduler: http action: missing %q", "url")
	}

	method := forceMethod
	if method == "" {
		method, _ = config["method"].(string)
		if method == "" {
			method = "GET"
		}
	}

	opts := httppipeline.Options{Method: method, URL: url}
	if mr, ok := config["maxRetries"].(float64); ok {
		cfg := httppipeline.DefaultRetryConfig()
		cfg.MaxRetries = int(mr)
		opts.RetryConfig = &cfg
	}
	if h, ok := config["headers"].(map[string]any); ok {
		opts.Headers = make(map[string]string, len(h))
		for k, v := range h {
			opts.Headers[k] = fmt.Sprintf("%v", v)
		}
	}
	if body, ok := config["body"]; ok {
		opts.Data = body
	}

	result := e.http.Do(ctx, opts)
	if !result.Success {
		return nil, result.AsError()
	}

	return map[string]any{
		"status": result.Status,
		"data":   result.Data,
	}, nil
}

// runFile implements the "file" action type against object storage:
// config carries {"operation": "get"|"put", "bucket", "key", and "body" for
// put}.
func (e *Executor) runFile(ctx context.Context, config map[string]any) (map[string]any, error) {
	if e.minio == nil {
		return nil, fmt.Errorf("scheduler: file action: no object store configured")
	}

	bucket, _ := config["bucket"].(string)
	key, _ := config["key"].(string)
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("scheduler: file action: %q and %q are required", "bucket", "key")
	}

	operation, _ := config["operation"].(string)
	switch operation {
	case "put":
		body, _ := config["body"].(string)
		reader := bytes.NewReader([]byte(body))
		info, err := e.minio.PutObject(ctx, bucket, key, reader, int64(len(body)), minio.PutObjectOptions{})
		if err != nil {
			return nil, fmt.Errorf("scheduler: file action put: %w", err)
		}
		return map[string]any{"status": "ok", "bucket": bucket, "key": key, "size": info.Size}, nil

	case "get", "":
		obj, err := e.minio.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return nil, fmt.Errorf("scheduler: file action get: %w", err)
		}
		defer obj.Close()
		data, err := io.ReadAll(obj)
		if err != nil {
			return nil, fmt.Errorf("scheduler: file action get: read: %w", err)
		}
		return map[string]any{"status": "ok", "bucket": bucket, "key": key, "body": string(data)}, nil

	default:
		return nil, fmt.Errorf("scheduler: file action: unknown operation %q", operation)
	}
}

// runDatabase implements the "database" action type: a parameterized query
// against a Postgres DSN, returning the result rows.
func (e *Executor) runDatabase(ctx context.Context, config map[string]any) (map[string]any, error) {
	dsn, _ := config["dsn"].(string)
	query, _ := config["query"].(string)
	if dsn == "" || query == "" {
		return nil, fmt.Errorf("scheduler: database action: %q and %q are required", "dsn", "query")
	}

	var args []any
	if raw, ok := config["args"].([]any); ok {
		args = raw
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("scheduler: database action: connect: %w", err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scheduler: database action: query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var result []map[string]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scheduler: database action: read row: %w", err)
		}
		record := make(map[string]any, len(fields))
		for i, f := range fields {
			record[string(f.Name)] = vals[i]
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scheduler: database action: %w", err)
	}

	return map[string]any{"status": "ok", "rowCount": len(result), "rows": result}, nil
}
