package evaluator

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// Database connection cache, keyed by driver:dsn
var (
	dbConnectionsMu sync.Mutex
	dbConnections   = make(map[string]*DBConnection)
)

// sqlDrivers maps the names accepted by db-open to database/sql driver names.
var sqlDrivers = map[string]string{
	"sqlite":   "sqlite",
	"sqlite3":  "sqlite",
	"postgres": "postgres",
	"mysql":    "mysql",
}

func registerDatabaseBuiltins() {
	registerBuiltin("db-open", builtinDBOpen)
	registerBuiltin("db-exec", builtinDBExec)
	registerBuiltin("db-query", builtinDBQuery)
	registerBuiltin("db-close", builtinDBClose)
	registerBuiltin("db-drivers", builtinDBDrivers)
}

func builtinDBOpen(env *Environment, args ...Object) Object {
	if len(args) != 2 {
		return newArityError(env, "db-open", len(args), 2)
	}
	driver := Text(args[0])
	dsn := Text(args[1])
	sqlDriver, ok := sqlDrivers[driver]
	if !ok {
		return newError(env, "DB-0001", map[string]any{"Driver": driver})
	}

	key := driver + ":" + dsn
	dbConnectionsMu.Lock()
	defer dbConnectionsMu.Unlock()

	if conn, ok := dbConnections[key]; ok && !conn.closed {
		return conn
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return newError(env, "DB-0002", map[string]any{"Driver": driver, "Err": err.Error()})
	}
	if sqlDriver == "sqlite" {
		// Every pooled connection to :memory: would be a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxIdleTime(5 * time.Minute)
	}
	if err := db.PingContext(env.Context()); err != nil {
		db.Close()
		return newError(env, "DB-0002", map[string]any{"Driver": driver, "Err": err.Error()})
	}

	conn := &DBConnection{DB: db, Driver: driver, DSN: dsn}
	dbConnections[key] = conn
	return conn
}

func connectionArg(env *Environment, fn string, obj Object) (*DBConnection, bool) {
	conn, ok := obj.(*DBConnection)
	if !ok {
		newTypeError(env, fn, "a Connection", obj)
		return nil, false
	}
	if conn.closed {
		newError(env, "DB-0003", nil)
		return nil, false
	}
	return conn, true
}

// sqlParams converts bound values to driver arguments.
func sqlParams(args []Object) []any {
	params := make([]any, len(args))
	for i, a := range args {
		switch a := a.(type) {
		case *Integer:
			params[i] = a.Value
		case *Float:
			params[i] = a.Value
		case *Boolean:
			params[i] = a.Value
		case *None:
			params[i] = nil
		default:
			params[i] = Text(a)
		}
	}
	return params
}

func builtinDBExec(env *Environment, args ...Object) Object {
	if len(args) < 2 {
		return newArityErrorMin(env, "db-exec", len(args), 2)
	}
	conn, ok := connectionArg(env, "db-exec", args[0])
	if !ok {
		return &Error{}
	}
	result, err := conn.DB.ExecContext(env.Context(), Text(args[1]), sqlParams(args[2:])...)
	if err != nil {
		return newError(env, "DB-0002", map[string]any{"Driver": conn.Driver, "Err": err.Error()})
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return newError(env, "DB-0002", map[string]any{"Driver": conn.Driver, "Err": err.Error()})
	}
	return &Integer{Value: affected}
}

func builtinDBQuery(env *Environment, args ...Object) Object {
	if len(args) < 2 {
		return newArityErrorMin(env, "db-query", len(args), 2)
	}
	conn, ok := connectionArg(env, "db-query", args[0])
	if !ok {
		return &Error{}
	}
	rows, err := conn.DB.QueryContext(env.Context(), Text(args[1]), sqlParams(args[2:])...)
	if err != nil {
		return newError(env, "DB-0002", map[string]any{"Driver": conn.Driver, "Err": err.Error()})
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return newError(env, "DB-0002", map[string]any{"Driver": conn.Driver, "Err": err.Error()})
	}

	var results []Object
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return newError(env, "DB-0002", map[string]any{"Driver": conn.Driver, "Err": err.Error()})
		}
		row := NewDict()
		for i, col := range columns {
			row.Set(col, sqlValueToObject(values[i]))
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return newError(env, "DB-0002", map[string]any{"Driver": conn.Driver, "Err": err.Error()})
	}
	return &List{Elements: results}
}

func sqlValueToObject(v any) Object {
	switch v := v.(type) {
	case nil:
		return NONE
	case int64:
		return &Integer{Value: v}
	case int32:
		return &Integer{Value: int64(v)}
	case float64:
		return &Float{Value: v}
	case float32:
		return &Float{Value: float64(v)}
	case bool:
		return nativeBool(v)
	case []byte:
		return &String{Value: string(v)}
	case string:
		return &String{Value: v}
	case time.Time:
		return &String{Value: v.Format(time.RFC3339)}
	default:
		return &String{Value: fmt.Sprint(v)}
	}
}

func builtinDBClose(env *Environment, args ...Object) Object {
	if len(args) != 1 {
		return newArityError(env, "db-close", len(args), 1)
	}
	conn, ok := connectionArg(env, "db-close", args[0])
	if !ok {
		return &Error{}
	}
	dbConnectionsMu.Lock()
	delete(dbConnections, conn.Driver+":"+conn.DSN)
	dbConnectionsMu.Unlock()

	conn.closed = true
	if err := conn.DB.Close(); err != nil {
		return newError(env, "DB-0002", map[string]any{"Driver": conn.Driver, "Err": err.Error()})
	}
	return TRUE
}

func builtinDBDrivers(env *Environment, args ...Object) Object {
	names := make([]string, 0, len(sqlDrivers))
	for name := range sqlDrivers {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Object, len(names))
	for i, n := range names {
		out[i] = &String{Value: n}
	}
	return &List{Elements: out}
}
