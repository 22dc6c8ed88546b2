package lookup

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/geocoder89/visionhub/internal/cache"
	"github.com/geocoder89/visionhub/internal/utils"
)

var ErrUnknownTable = errors.New("unknown lookup table")

// tableFiles maps public table names to files under the lookup dir.
var tableFiles = map[string]string{
	"skills":   "skills.csv",
	"programs": "education_programs.csv",
}

type Table struct {
	Name    string              `json:"name"`
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"items"`
}

type Store struct {
	dir   string
	cache *cache.Cache[Table]
}

func NewStore(dir string, ttl time.Duration) *Store {
	return &Store{dir: dir, cache: cache.New[Table](ttl)}
}

// Load returns the parsed table, reading the file at most once per TTL.
func (s *Store) Load(name string) (Table, error) {
	file, ok := tableFiles[name]
	if !ok {
		return Table{}, ErrUnknownTable
	}

	return s.cache.GetOrLoad(utils.BuildLookupCacheKey(name), func() (Table, error) {
		return s.readFile(name, file)
	})
}

func (s *Store) readFile(name, file string) (Table, error) {
	f, err := os.Open(filepath.Join(s.dir, file))
	if err != nil {
		return Table{}, fmt.Errorf("open lookup %s: %w", name, err)
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return Table{}, fmt.Errorf("parse lookup %s: %w", name, err)
	}
	t.Name = name

	return t, nil
}

// Parse reads a header row followed by records. The delimiter is taken from
// the header: semicolon or tab when present, comma otherwise.
func Parse(r io.Reader) (Table, error) {
	br := bufio.NewReader(r)

	head, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return Table{}, err
	}
	firstLine := string(head)
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}

	cr := csv.NewReader(br)
	cr.Comma = detectDelimiter(firstLine)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Table{Columns: []string{}, Rows: []map[string]string{}}, nil
	}
	if err != nil {
		return Table{}, err
	}

	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := make([]map[string]string, 0)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, err
		}
		if blank(rec) {
			continue
		}

		row := make(map[string]string, len(cols))
		for i, c := range cols {
			if i < len(rec) {
				row[c] = strings.TrimSpace(rec[i])
			} else {
				row[c] = ""
			}
		}
		rows = append(rows, row)
	}

	return Table{Columns: cols, Rows: rows}, nil
}

func detectDelimiter(header string) rune {
	best, bestCount := ',', strings.Count(header, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(header, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Filter keeps rows whose first column contains q, ignoring case.
func (t Table) Filter(q string) Table {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" || len(t.Columns) == 0 {
		return t
	}

	first := t.Columns[0]
	out := make([]map[string]string, 0)
	for _, row := range t.Rows {
		if strings.Contains(strings.ToLower(row[first]), q) {
			out = append(out, row)
		}
	}

	t.Rows = out
	return t
}
