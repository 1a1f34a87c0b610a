package telemetry

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type startKey struct{ plugin string }

// registerAround installs before/after hooks on every GORM processor under
// the "<plugin>:" prefix. The before hook stamps the start time on the
// statement context; after receives the elapsed time and the SQL verb. When
// ahead is set, each after hook is ordered before the hook named
// ahead+"<processor>", e.g. "otel:after:" to run while otelgorm's span is open.
func registerAround(db *gorm.DB, plugin, ahead string, after func(db *gorm.DB, op string, elapsed time.Duration)) error {
	key := startKey{plugin}
	before := func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		db.Statement.Context = context.WithValue(ctx, key, time.Now())
	}
	afterFor := func(op string) func(*gorm.DB) {
		return func(db *gorm.DB) {
			var elapsed time.Duration
			if db.Statement.Context != nil {
				if start, ok := db.Statement.Context.Value(key).(time.Time); ok {
					elapsed = time.Since(start)
				}
			}
			verb := op
			if verb == "" {
				verb = detectOperationType(db.Statement.SQL.String())
			}
			after(db, verb, elapsed)
		}
	}
	// gorm ignores ordering against a callback name that is not registered
	aheadOf := func(processor string) string {
		if ahead == "" {
			return ""
		}
		return ahead + processor
	}

	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register(plugin+":before_create", before),
		cb.Query().Before("gorm:query").Register(plugin+":before_query", before),
		cb.Update().Before("gorm:update").Register(plugin+":before_update", before),
		cb.Delete().Before("gorm:delete").Register(plugin+":before_delete", before),
		cb.Row().Before("gorm:row").Register(plugin+":before_row", before),
		cb.Raw().Before("gorm:raw").Register(plugin+":before_raw", before),
		cb.Create().After("gorm:create").Before(aheadOf("create")).Register(plugin+":after_create", afterFor("INSERT")),
		cb.Query().After("gorm:query").Before(aheadOf("query")).Register(plugin+":after_query", afterFor("SELECT")),
		cb.Update().After("gorm:update").Before(aheadOf("update")).Register(plugin+":after_update", afterFor("UPDATE")),
		cb.Delete().After("gorm:delete").Before(aheadOf("delete")).Register(plugin+":after_delete", afterFor("DELETE")),
		cb.Row().After("gorm:row").Before(aheadOf("row")).Register(plugin+":after_row", afterFor("")),
		cb.Raw().After("gorm:raw").Before(aheadOf("raw")).Register(plugin+":after_raw", afterFor("")),
	)
}

func detectOperationType(sql string) string {
	i := 0
	for i < len(sql) && (sql[i] == ' ' || sql[i] == '\n' || sql[i] == '\t') {
		i++
	}
	j := i
	for j < len(sql) && sql[j] != ' ' && sql[j] != '\n' && sql[j] != '\t' && sql[j] != '(' {
		j++
	}
	switch verb := upper(sql[i:j]); verb {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return verb
	default:
		return "OTHER"
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}
