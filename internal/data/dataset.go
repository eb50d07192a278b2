// Package data provides in-memory datasets and the CSV loader used to feed
// a model.
package data

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
)

var (
	// ErrEmpty is returned when a source holds no data rows.
	ErrEmpty = errors.New("data: no rows")
	// ErrMalformed is returned for ragged rows and unparsable values.
	ErrMalformed = errors.New("data: malformed input")
)

// Provider is a row-indexed source of training samples.
type Provider interface {
	// Size returns the number of rows.
	Size() int
	// Entry returns the whole i-th row.
	Entry(i int) []float64
	// Trainset returns the feature columns of the i-th row.
	Trainset(i int) []float64
	// Labels returns the label columns of the i-th row.
	Labels(i int) []float64
}

// Dataset is a table of rows where a fixed set of columns holds labels and
// every other column is a feature.
type Dataset struct {
	rows      [][]float64
	labelCols []int
	isLabel   map[int]bool
}

var _ Provider = (*Dataset)(nil)

// New creates a dataset over rows. labelCols are column indices; they are
// deduplicated and sorted. Every row must have the same width.
func New(rows [][]float64, labelCols []int) (*Dataset, error) {
	d := &Dataset{rows: rows, isLabel: map[int]bool{}}
	width := 0
	if len(rows) > 0 {
		width = len(rows[0])
	}
	for i, r := range rows {
		if len(r) != width {
			return nil, errors.Wrapf(ErrMalformed, "row %d has %d columns, want %d", i, len(r), width)
		}
	}
	for _, c := range labelCols {
		if c < 0 || (width > 0 && c >= width) {
			return nil, errors.Wrapf(ErrMalformed, "label column %d out of %d", c, width)
		}
		if !d.isLabel[c] {
			d.isLabel[c] = true
			d.labelCols = append(d.labelCols, c)
		}
	}
	sort.Ints(d.labelCols)
	return d, nil
}

// LoadCSV reads numeric rows from r. labelCols selects the label columns;
// hasHeader skips the first record.
func LoadCSV(r io.Reader, labelCols []int, hasHeader bool) (*Dataset, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read csv")
	}
	if hasHeader && len(records) > 0 {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}

	rows := make([][]float64, len(records))
	for i, rec := range records {
		row := make([]float64, len(rec))
		for j, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(ErrMalformed, "row %d, col %d: %v", i, j, err)
			}
			row[j] = v
		}
		rows[i] = row
	}
	return New(rows, labelCols)
}

func (d *Dataset) Size() int { return len(d.rows) }

// FeatureSize returns the number of feature columns.
func (d *Dataset) FeatureSize() int {
	if len(d.rows) == 0 {
		return 0
	}
	return len(d.rows[0]) - len(d.labelCols)
}

// LabelColumns returns the sorted label column indices.
func (d *Dataset) LabelColumns() []int { return append([]int(nil), d.labelCols...) }

func (d *Dataset) Entry(i int) []float64 { return d.rows[i] }

func (d *Dataset) Trainset(i int) []float64 {
	out := make([]float64, 0, d.FeatureSize())
	for j, v := range d.rows[i] {
		if !d.isLabel[j] {
			out = append(out, v)
		}
	}
	return out
}

func (d *Dataset) Labels(i int) []float64 {
	out := make([]float64, len(d.labelCols))
	for k, c := range d.labelCols {
		out[k] = d.rows[i][c]
	}
	return out
}

// Normalize rescales every feature column to [0, 1] with min-max scaling.
// Constant columns become 0. Label columns are left untouched.
func (d *Dataset) Normalize() {
	if len(d.rows) == 0 {
		return
	}
	width := len(d.rows[0])
	for j := 0; j < width; j++ {
		if d.isLabel[j] {
			continue
		}
		lo, hi := d.rows[0][j], d.rows[0][j]
		for _, r := range d.rows {
			lo = min(lo, r[j])
			hi = max(hi, r[j])
		}
		diff := hi - lo
		for _, r := range d.rows {
			if diff != 0 {
				r[j] = (r[j] - lo) / diff
			} else {
				r[j] = 0
			}
		}
	}
}

// Split cuts the dataset at ratio (0 to 1) into a training and a test set
// sharing the underlying rows.
func (d *Dataset) Split(ratio float64) (*Dataset, *Dataset) {
	idx := int(float64(len(d.rows)) * ratio)
	idx = max(0, min(idx, len(d.rows)))
	return d.sub(d.rows[:idx]), d.sub(d.rows[idx:])
}

func (d *Dataset) sub(rows [][]float64) *Dataset {
	return &Dataset{rows: rows, labelCols: d.labelCols, isLabel: d.isLabel}
}

// Shuffle permutes the rows in place.
func (d *Dataset) Shuffle(rng *dlmath.RNG) {
	rng.Shuffle(len(d.rows), func(i, j int) {
		d.rows[i], d.rows[j] = d.rows[j], d.rows[i]
	})
}
