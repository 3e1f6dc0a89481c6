package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"londonsqft/server/internal/csvparse"
	"londonsqft/server/internal/models"
	"londonsqft/server/internal/normalize"
	"londonsqft/server/internal/postcode"
)

// Positions in a price paid row. The file has no header.
const (
	colPrice    = 1
	colDate     = 2
	colPostcode = 3
	colType     = 4
	colPAON     = 7
	colSAON     = 8
	colStreet   = 9
)

// ErrOutsideArea marks a well-formed row whose postcode is not in the allow list
var ErrOutsideArea = errors.New("postcode outside allowed areas")

type TransactionReader struct {
	london *postcode.AllowList
	logger *logrus.Logger
}

func NewTransactionReader(london *postcode.AllowList, logger *logrus.Logger) *TransactionReader {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &TransactionReader{london: london, logger: logger}
}

// ParseRow converts one price paid row. Errors wrap csvparse.ErrMalformedRow
// or ErrOutsideArea.
func (r *TransactionReader) ParseRow(fields []string) (models.TransactionRecord, error) {
	var rec models.TransactionRecord
	if len(fields) <= colPostcode {
		return rec, fmt.Errorf("%w: %d fields", csvparse.ErrMalformedRow, len(fields))
	}

	price, err := strconv.ParseInt(csvparse.Field(fields, colPrice), 10, 64)
	if err != nil || price <= 0 {
		return rec, fmt.Errorf("%w: price %q", csvparse.ErrMalformedRow, csvparse.Field(fields, colPrice))
	}

	pc := postcode.Canonical(csvparse.Field(fields, colPostcode))
	if pc == "" {
		return rec, fmt.Errorf("%w: missing postcode", csvparse.ErrMalformedRow)
	}
	if !r.london.Contains(pc) {
		return rec, ErrOutsideArea
	}
	if !postcode.Valid(pc) {
		return rec, fmt.Errorf("%w: postcode %q", csvparse.ErrMalformedRow, pc)
	}
	district, _ := postcode.District(pc)

	date := csvparse.Field(fields, colDate)
	if len(date) > 10 {
		date = date[:10]
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return rec, fmt.Errorf("%w: date %q", csvparse.ErrMalformedRow, date)
	}

	category, _ := models.CategoryFromCode(strings.ToUpper(csvparse.Field(fields, colType)))
	saon := csvparse.Field(fields, colSAON)
	paon := csvparse.Field(fields, colPAON)
	street := csvparse.Field(fields, colStreet)

	return models.TransactionRecord{
		Price:             price,
		TransactionDate:   date,
		Postcode:          pc,
		District:          district,
		Category:          category,
		PAON:              paon,
		SAON:              saon,
		Street:            street,
		NormalizedAddress: normalize.Join(saon, paon, street),
	}, nil
}

// Read streams every row of src through ParseRow and hands accepted records to
// emit. An error from emit stops the read.
func (r *TransactionReader) Read(src io.Reader, emit func(models.TransactionRecord) error) (Counts, error) {
	var counts Counts
	scanner := csvparse.NewScanner(src, ',')
	for scanner.Next() {
		counts.Read++
		rec, err := r.ParseRow(scanner.Fields())
		switch {
		case errors.Is(err, ErrOutsideArea):
			counts.Filtered++
			continue
		case err != nil:
			counts.Malformed++
			r.logger.WithFields(logrus.Fields{
				"line":  scanner.Line(),
				"error": err.Error(),
			}).Debug("Skipping transaction row")
			continue
		}
		if err := emit(rec); err != nil {
			return counts, err
		}
		counts.Accepted++
	}
	if err := scanner.Err(); err != nil {
		return counts, fmt.Errorf("failed to read transactions: %w", err)
	}
	return counts, nil
}

// ReadFile opens path and reads it with Read
func (r *TransactionReader) ReadFile(path string, emit func(models.TransactionRecord) error) (Counts, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Counts{}, &MissingInputFileError{Path: path}
	}
	if err != nil {
		return Counts{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	counts, err := r.Read(f, emit)
	if err != nil {
		return counts, fmt.Errorf("%s: %w", path, err)
	}
	return counts, nil
}
