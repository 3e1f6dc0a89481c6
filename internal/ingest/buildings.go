package ingest

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"londonsqft/server/internal/csvparse"
	"londonsqft/server/internal/models"
	"londonsqft/server/internal/normalize"
	"londonsqft/server/internal/postcode"
)

// Certificate columns
const (
	ColPostcode       = "POSTCODE"
	ColAddress1       = "ADDRESS1"
	ColAddress2       = "ADDRESS2"
	ColAddress3       = "ADDRESS3"
	ColFloorArea      = "TOTAL_FLOOR_AREA"
	ColPropertyType   = "PROPERTY_TYPE"
	ColLodgementDate  = "LODGEMENT_DATE"
	ColBuiltForm      = "BUILT_FORM"
	ColUPRN           = "UPRN"
	certificatesEntry = "certificates.csv"
)

var requiredBuildingColumns = []string{
	ColPostcode, ColAddress1, ColAddress2, ColAddress3,
	ColFloorArea, ColPropertyType, ColLodgementDate,
}

type BuildingReader struct {
	london       *postcode.AllowList
	maxFloorArea float64
	logger       *logrus.Logger
}

func NewBuildingReader(london *postcode.AllowList, maxFloorArea float64, logger *logrus.Logger) *BuildingReader {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &BuildingReader{london: london, maxFloorArea: maxFloorArea, logger: logger}
}

// BuildingCategory maps a certificate property type and built form onto the
// shared categories. Houses without a recognised built form become other.
func BuildingCategory(propertyType, builtForm string) models.PropertyCategory {
	switch strings.ToLower(strings.TrimSpace(propertyType)) {
	case "flat", "maisonette":
		return models.CategoryFlat
	case "house", "bungalow":
		form := strings.ToLower(strings.TrimSpace(builtForm))
		switch {
		case form == "detached":
			return models.CategoryDetached
		case form == "semi-detached":
			return models.CategorySemiDetached
		case strings.HasSuffix(form, "terrace"):
			return models.CategoryTerraced
		}
	}
	return models.CategoryOther
}

// parseLodgementDate accepts a bare date or a date followed by a time
func parseLodgementDate(s string) (time.Time, error) {
	if len(s) > 10 {
		s = s[:10]
	}
	return time.Parse("2006-01-02", s)
}

type buildingColumns struct {
	maxIndex  int
	postcode  int
	address   [3]int
	floorArea int
	propType  int
	lodgement int
	builtForm int
	uprn      int
}

func resolveBuildingColumns(columns []string) (*buildingColumns, error) {
	h, err := csvparse.ResolveHeader(columns, requiredBuildingColumns...)
	if err != nil {
		return nil, err
	}
	c := &buildingColumns{
		postcode:  h.Index(ColPostcode),
		address:   [3]int{h.Index(ColAddress1), h.Index(ColAddress2), h.Index(ColAddress3)},
		floorArea: h.Index(ColFloorArea),
		propType:  h.Index(ColPropertyType),
		lodgement: h.Index(ColLodgementDate),
		builtForm: h.Index(ColBuiltForm),
		uprn:      h.Index(ColUPRN),
	}
	for _, name := range requiredBuildingColumns {
		if i := h.Index(name); i > c.maxIndex {
			c.maxIndex = i
		}
	}
	return c, nil
}

func (r *BuildingReader) parseRow(cols *buildingColumns, fields []string) (models.BuildingRecord, error) {
	var rec models.BuildingRecord
	if len(fields) <= cols.maxIndex {
		return rec, fmt.Errorf("%w: %d fields, need %d", csvparse.ErrMalformedRow, len(fields), cols.maxIndex+1)
	}

	pc := postcode.Canonical(csvparse.Field(fields, cols.postcode))
	if pc == "" {
		return rec, fmt.Errorf("%w: missing postcode", csvparse.ErrMalformedRow)
	}
	if !r.london.Contains(pc) {
		return rec, ErrOutsideArea
	}

	raw := csvparse.Field(fields, cols.floorArea)
	area, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return rec, fmt.Errorf("%w: floor area %q", csvparse.ErrMalformedRow, raw)
	}
	if area <= 0 || area > r.maxFloorArea {
		return rec, fmt.Errorf("%w: floor area %v out of range", csvparse.ErrMalformedRow, area)
	}

	lodged, err := parseLodgementDate(csvparse.Field(fields, cols.lodgement))
	if err != nil {
		return rec, fmt.Errorf("%w: lodgement date %q", csvparse.ErrMalformedRow, csvparse.Field(fields, cols.lodgement))
	}

	address := normalize.Join(
		csvparse.Field(fields, cols.address[0]),
		csvparse.Field(fields, cols.address[1]),
		csvparse.Field(fields, cols.address[2]),
	)
	if address == "" {
		return rec, fmt.Errorf("%w: empty address", csvparse.ErrMalformedRow)
	}

	propType := csvparse.Field(fields, cols.propType)
	return models.BuildingRecord{
		Postcode:          pc,
		NormalizedAddress: address,
		FloorAreaSqM:      area,
		Category:          BuildingCategory(propType, csvparse.Field(fields, cols.builtForm)),
		PropertyType:      propType,
		CertificateDate:   lodged,
		ExternalID:        csvparse.Field(fields, cols.uprn),
	}, nil
}

// Read parses a header-led certificates file. source names the file in errors.
func (r *BuildingReader) Read(src io.Reader, source string, emit func(models.BuildingRecord) error) (Counts, error) {
	var counts Counts
	scanner := csvparse.NewScanner(src, ',')
	var header []string
	if scanner.Next() {
		header = scanner.Fields()
	} else if err := scanner.Err(); err != nil {
		return counts, fmt.Errorf("%s: failed to read header: %w", source, err)
	}

	cols, err := resolveBuildingColumns(header)
	if err != nil {
		var missing *csvparse.MissingRequiredColumnError
		if errors.As(err, &missing) {
			missing.Source = source
		}
		return counts, err
	}

	for scanner.Next() {
		counts.Read++
		rec, err := r.parseRow(cols, scanner.Fields())
		switch {
		case errors.Is(err, ErrOutsideArea):
			counts.Filtered++
			continue
		case err != nil:
			counts.Malformed++
			r.logger.WithFields(logrus.Fields{
				"source": source,
				"line":   scanner.Line(),
				"error":  err.Error(),
			}).Debug("Skipping certificate row")
			continue
		}
		if err := emit(rec); err != nil {
			return counts, err
		}
		counts.Accepted++
	}
	if err := scanner.Err(); err != nil {
		return counts, fmt.Errorf("%s: failed to read certificates: %w", source, err)
	}
	return counts, nil
}

// ReadFile reads a plain csv file or the certificates.csv member of a zip
// archive as published per local authority.
func (r *BuildingReader) ReadFile(p string, emit func(models.BuildingRecord) error) (Counts, error) {
	if strings.EqualFold(filepath.Ext(p), ".zip") {
		return r.readZip(p, emit)
	}

	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return Counts{}, &MissingInputFileError{Path: p}
	}
	if err != nil {
		return Counts{}, fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer f.Close()
	return r.Read(f, p, emit)
}

func (r *BuildingReader) readZip(p string, emit func(models.BuildingRecord) error) (Counts, error) {
	archive, err := zip.OpenReader(p)
	if errors.Is(err, os.ErrNotExist) {
		return Counts{}, &MissingInputFileError{Path: p}
	}
	if err != nil {
		return Counts{}, fmt.Errorf("failed to open archive %s: %w", p, err)
	}
	defer archive.Close()

	for _, member := range archive.File {
		if !strings.EqualFold(path.Base(member.Name), certificatesEntry) {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			return Counts{}, fmt.Errorf("failed to open %s in %s: %w", member.Name, p, err)
		}
		defer rc.Close()
		return r.Read(rc, p+"!"+member.Name, emit)
	}
	return Counts{}, &MissingInputFileError{Path: p + "!" + certificatesEntry}
}
