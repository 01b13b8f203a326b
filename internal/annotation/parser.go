// Package annotation parses HPO disease-phenotype annotation files (phenotype.hpoa).
package annotation

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/kailas-cloud/phenodex/internal/domain"
)

// Column positions in phenotype.hpoa.
const (
	colDatabaseID = 0
	colName       = 1
	colQualifier  = 2
	colPhenotype  = 3
	colFrequency  = 7

	minColumns = 8
)

// qualifierNot marks a phenotype explicitly absent in the disease.
const qualifierNot = "NOT"

var headerTokens = []string{"database_id", "disease_name", "qualifier", "hpo_id"}

// record is one retained annotation line.
type record struct {
	diseaseID string
	name      string
	qualifier string
	phenotype string
	frequency string
}

// Parser turns annotation text into disease → phenotype tables.
type Parser struct {
	remap Remapper
}

// NewParser creates a parser. A nil remap leaves phenotype IDs untouched.
func NewParser(remap Remapper) *Parser {
	if remap == nil {
		remap = Identity
	}
	return &Parser{remap: remap}
}

// Parse builds the plain table: sorted, duplicate-free phenotypes per disease,
// last disease name wins. NOT-qualified and malformed lines are skipped.
func (p *Parser) Parse(r io.Reader) (*domain.Annotations, error) {
	type acc struct {
		name       string
		phenotypes map[string]struct{}
	}
	byID := make(map[string]*acc)
	var order []string

	err := p.scan(r, func(rec record) {
		a, ok := byID[rec.diseaseID]
		if !ok {
			a = &acc{phenotypes: make(map[string]struct{})}
			byID[rec.diseaseID] = a
			order = append(order, rec.diseaseID)
		}
		a.name = rec.name
		a.phenotypes[rec.phenotype] = struct{}{}
	})
	if err != nil {
		return nil, err
	}

	diseases := make([]domain.Disease, 0, len(order))
	for _, id := range order {
		a := byID[id]
		hps := make([]string, 0, len(a.phenotypes))
		for hp := range a.phenotypes {
			hps = append(hps, hp)
		}
		sort.Strings(hps)
		diseases = append(diseases, domain.Disease{ID: id, Name: a.name, Phenotypes: hps})
	}
	return domain.NewAnnotations(diseases), nil
}

// ParseWeighted builds the weighted table: phenotype → frequency proportion per
// disease. A repeated disease+phenotype pair keeps the last proportion seen.
func (p *Parser) ParseWeighted(r io.Reader) (*domain.WeightedAnnotations, error) {
	byID := make(map[string]*domain.WeightedDisease)
	var order []string

	err := p.scan(r, func(rec record) {
		d, ok := byID[rec.diseaseID]
		if !ok {
			d = &domain.WeightedDisease{ID: rec.diseaseID, Weights: make(map[string]float64)}
			byID[rec.diseaseID] = d
			order = append(order, rec.diseaseID)
		}
		d.Name = rec.name
		d.Weights[rec.phenotype] = Proportion(rec.frequency)
	})
	if err != nil {
		return nil, err
	}

	diseases := make([]domain.WeightedDisease, 0, len(order))
	for _, id := range order {
		diseases = append(diseases, *byID[id])
	}
	return domain.NewWeightedAnnotations(diseases), nil
}

// scan feeds every retained, non-negated record to fn.
func (p *Parser) scan(r io.Reader, fn func(record)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	headerFound := false
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, "#") {
			continue
		}
		if isHeader(line) {
			headerFound = true
			continue
		}
		if !headerFound {
			continue
		}

		rec, ok := p.parseLine(line)
		if !ok || rec.qualifier == qualifierNot {
			continue
		}
		fn(rec)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan annotations: %w", err)
	}
	return nil
}

func (p *Parser) parseLine(line string) (record, bool) {
	parts := strings.Split(line, "\t")
	if len(parts) < minColumns {
		return record{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	rec := record{
		diseaseID: parts[colDatabaseID],
		name:      parts[colName],
		qualifier: parts[colQualifier],
		phenotype: p.remap.Remap(parts[colPhenotype]),
		frequency: parts[colFrequency],
	}
	if rec.diseaseID == "" || rec.phenotype == "" {
		return record{}, false
	}
	return rec, true
}

func isHeader(line string) bool {
	for _, tok := range headerTokens {
		if !strings.Contains(line, tok) {
			return false
		}
	}
	return true
}
