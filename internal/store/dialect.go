package store

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// dialect captures the few places the supported databases disagree.
type dialect struct {
	name       string
	driver     string
	primaryKey string
	float      string
	text       string
	returning  bool
	numbered   bool // $1, $2 placeholders
	dupMarkers []string
}

var dialects = map[string]dialect{
	"sqlite": {
		name:       "sqlite",
		driver:     "sqlite",
		primaryKey: "INTEGER PRIMARY KEY AUTOINCREMENT",
		float:      "REAL",
		text:       "TEXT",
		dupMarkers: []string{"UNIQUE constraint failed"},
	},
	"postgres": {
		name:       "postgres",
		driver:     "postgres",
		primaryKey: "SERIAL PRIMARY KEY",
		float:      "DOUBLE PRECISION",
		text:       "TEXT",
		returning:  true,
		numbered:   true,
		dupMarkers: []string{"duplicate key value", "23505"},
	},
	"mysql": {
		name:       "mysql",
		driver:     "mysql",
		primaryKey: "BIGINT PRIMARY KEY AUTO_INCREMENT",
		float:      "DOUBLE",
		text:       "TEXT",
		dupMarkers: []string{"Duplicate entry", "1062"},
	},
}

func lookupDialect(name string) (dialect, error) {
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database driver %q", name)
	}
	return d, nil
}

// rebind rewrites ? placeholders into $n for databases that need it.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ddl fills the {{pk}}, {{float}} and {{text}} tokens of a schema statement.
func (d dialect) ddl(stmt string) string {
	return strings.NewReplacer(
		"{{pk}}", d.primaryKey,
		"{{float}}", d.float,
		"{{text}}", d.text,
	).Replace(stmt)
}

func (d dialect) isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	e := err.Error()
	for _, m := range d.dupMarkers {
		if strings.Contains(e, m) {
			return true
		}
	}
	return false
}
