package roster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"asistencia/internal/store"
)

// execFunc runs one insert attempt. Injectable so the retry loop is testable
// without a live database.
type execFunc func(ctx context.Context, query string, args []any) error

var errNoColumnsLeft = errors.New("no insertable columns left")

// insertAdaptive inserts fields into table, dropping any column the storage
// schema reports as unknown and retrying with the rest. The deployed schema
// can lag the scraped field set, so this is a load-bearing compatibility shim,
// not an incidental error path.
func insertAdaptive(ctx context.Context, table string, fields map[string]any, exec execFunc) error {
	for {
		if len(fields) == 0 {
			return errNoColumnsLeft
		}
		cols := make([]string, 0, len(fields))
		for c := range fields {
			cols = append(cols, c)
		}
		sort.Strings(cols)

		marks := make([]string, len(cols))
		args := make([]any, len(cols))
		for i, c := range cols {
			marks[i] = "$" + strconv.Itoa(i+1)
			args[i] = fields[c]
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			table, strings.Join(cols, ", "), strings.Join(marks, ", "))

		err := exec(ctx, query, args)
		if err == nil {
			return nil
		}
		col, ok := store.UndefinedColumn(err)
		if !ok {
			return err
		}
		if _, present := fields[col]; !present {
			return err
		}
		log.Printf("schema drift: %s has no column %q, retrying insert without it", table, col)
		delete(fields, col)
	}
}
